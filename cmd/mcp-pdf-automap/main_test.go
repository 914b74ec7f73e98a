package main

import (
	"bytes"
	"io"
	"log"
	"os"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-automap/internal/config"
)

const testVersion = "1.2.3"

func TestPrintVersion(t *testing.T) {
	oldVersion, oldBuildTime, oldGitCommit := version, buildTime, gitCommit
	defer func() {
		version, buildTime, gitCommit = oldVersion, oldBuildTime, oldGitCommit
	}()

	version = testVersion
	buildTime = "2025-06-01_10:30:00"
	gitCommit = "abc123"

	var buf bytes.Buffer
	printVersion(&buf)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{
		"MCP PDF AutoMap",
		"Version: " + testVersion,
		"Build Time: 2025-06-01_10:30:00",
		"Git Commit: abc123",
		"Built with: " + runtime.Version(),
	}, lines)
}

func TestSetupLogging(t *testing.T) {
	defer log.SetOutput(os.Stderr)
	defer log.SetFlags(log.LstdFlags)

	tests := []struct {
		name      string
		mode      string
		logLevel  string
		wantOut   io.Writer
		wantFlags int
	}{
		{"stdio quiet", config.ModeStdio, "info", io.Discard, log.LstdFlags},
		{"stdio debug", config.ModeStdio, "debug", os.Stderr, log.LstdFlags},
		{"server", config.ModeServer, "info", os.Stderr, log.LstdFlags | log.Lshortfile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log.SetFlags(log.LstdFlags)
			cfg := config.DefaultConfig()
			cfg.Mode = tt.mode
			cfg.LogLevel = tt.logLevel

			setupLogging(cfg)
			assert.Equal(t, tt.wantOut, log.Writer())
			assert.Equal(t, tt.wantFlags, log.Flags())
		})
	}
}

func TestRun_Errors(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("PDF_AUTOMAP_APIKEY", "")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad flag", []string{"--nope"}, "failed to load configuration"},
		{"bad mode", []string{"--mode=tcp"}, "mode must be either"},
		{"remote without key", []string{"--mapper=remote", "--dir", t.TempDir()}, "API key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRun_Version(t *testing.T) {
	assert.NoError(t, run([]string{"--version"}))
}
