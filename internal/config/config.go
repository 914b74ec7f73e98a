package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Mapper constants
	MapperRemote = "remote"
	MapperRules  = "rules"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB
	DefaultModel       = "claude-sonnet-4-20250514"
	DefaultMaxTokens   = 8000
	DefaultAPIURL      = "https://api.anthropic.com/v1/messages"

	// EnvPrefix is prepended to every environment variable, e.g. PDF_AUTOMAP_PORT
	EnvPrefix = "PDF_AUTOMAP"
)

// Config holds all configuration for the PDF automap server and CLI
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// PDF configuration
	PDFDirectory string
	MaxFileSize  int64 // Maximum PDF file size in bytes

	// Mapping service configuration
	Mapper    string // "remote" or "rules"
	APIKey    string
	Model     string
	MaxTokens int
	APIURL    string

	// Template store; empty disables it
	DBPath string

	// Application configuration
	Version    string
	ServerName string
	LogLevel   string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:         ModeStdio,
		Host:         DefaultHost,
		Port:         DefaultPort,
		PDFDirectory: currentDir,
		MaxFileSize:  DefaultMaxFileSize,
		Mapper:       MapperRemote,
		Model:        DefaultModel,
		MaxTokens:    DefaultMaxTokens,
		APIURL:       DefaultAPIURL,
		Version:      "1.0.0",
		ServerName:   "mcp-pdf-automap",
		LogLevel:     DefaultLogLevel,
	}
}

// LoadFromFlags parses the process arguments and returns a validated configuration
func LoadFromFlags() (*Config, error) {
	return LoadFromArgs(os.Args[0], os.Args[1:])
}

// LoadFromArgs parses args with a fresh flag set, layering flags over PDF_AUTOMAP_* environment
// variables over defaults, and validates the result including the mapper settings
func LoadFromArgs(program string, args []string) (*Config, error) {
	if err := checkVersionFlag(args); err != nil {
		return nil, err
	}

	fs := pflag.NewFlagSet(program, pflag.ContinueOnError)
	RegisterFlags(fs, DefaultConfig())
	fs.Usage = usage(fs, program)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := FromFlagSet(fs)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateMapper(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// RegisterFlags defines every configuration flag on fs
func RegisterFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP/SSE server")
	fs.String("host", cfg.Host, "Server host address (server mode only)")
	fs.Int("port", cfg.Port, "Server port (server mode only)")
	fs.String("dir", cfg.PDFDirectory, "Directory containing PDF files")
	fs.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	fs.String("mapper", cfg.Mapper, "Field mapper: 'remote' for the Anthropic API, 'rules' for offline name rules")
	fs.String("apikey", cfg.APIKey, "Anthropic API key (defaults to ANTHROPIC_API_KEY)")
	fs.String("model", cfg.Model, "Model used by the remote mapper")
	fs.Int("maxtokens", cfg.MaxTokens, "Response token budget of the remote mapper")
	fs.String("apiurl", cfg.APIURL, "Messages endpoint of the remote mapper")
	fs.String("db", cfg.DBPath, "SQLite file for saved mapping templates (empty disables templates)")
}

// FromFlagSet resolves the configuration from an already parsed flag set. It validates the
// general settings but not the mapper, so commands that never map can run without an API key.
func FromFlagSet(fs *pflag.FlagSet) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	setDefaults(v, cfg)
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	populateConfig(v, cfg)

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	if cfg.PDFDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.PDFDirectory); err == nil {
			cfg.PDFDirectory = expandedPath
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("mode", cfg.Mode)
	v.SetDefault("host", cfg.Host)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("dir", cfg.PDFDirectory)
	v.SetDefault("loglevel", cfg.LogLevel)
	v.SetDefault("maxfilesize", cfg.MaxFileSize)
	v.SetDefault("mapper", cfg.Mapper)
	v.SetDefault("apikey", cfg.APIKey)
	v.SetDefault("model", cfg.Model)
	v.SetDefault("maxtokens", cfg.MaxTokens)
	v.SetDefault("apiurl", cfg.APIURL)
	v.SetDefault("db", cfg.DBPath)
}

func populateConfig(v *viper.Viper, cfg *Config) {
	cfg.Mode = v.GetString("mode")
	cfg.Host = v.GetString("host")
	cfg.Port = v.GetInt("port")
	cfg.PDFDirectory = v.GetString("dir")
	cfg.LogLevel = v.GetString("loglevel")
	cfg.MaxFileSize = v.GetInt64("maxfilesize")
	cfg.Mapper = v.GetString("mapper")
	cfg.APIKey = v.GetString("apikey")
	cfg.Model = v.GetString("model")
	cfg.MaxTokens = v.GetInt("maxtokens")
	cfg.APIURL = v.GetString("apiurl")
	cfg.DBPath = v.GetString("db")
}

func usage(fs *pflag.FlagSet, program string) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", program)
		fmt.Fprintf(os.Stderr, "\nMCP PDF AutoMap - maps PDF form fields onto employee data over the Model Context Protocol\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --dir=/path/to/forms                    # stdio mode\n", program)
		fmt.Fprintf(os.Stderr, "  %s --mapper=rules --dir=/path/to/forms     # offline mapping\n", program)
		fmt.Fprintf(os.Stderr, "  %s --mode=server --db=templates.db         # SSE server with templates\n", program)
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  PDF_AUTOMAP_MODE, PDF_AUTOMAP_HOST, PDF_AUTOMAP_PORT, PDF_AUTOMAP_DIR,\n")
		fmt.Fprintf(os.Stderr, "  PDF_AUTOMAP_LOGLEVEL, PDF_AUTOMAP_MAXFILESIZE, PDF_AUTOMAP_MAPPER,\n")
		fmt.Fprintf(os.Stderr, "  PDF_AUTOMAP_APIKEY (or ANTHROPIC_API_KEY), PDF_AUTOMAP_MODEL,\n")
		fmt.Fprintf(os.Stderr, "  PDF_AUTOMAP_MAXTOKENS, PDF_AUTOMAP_APIURL, PDF_AUTOMAP_DB\n")
	}
}

// ErrVersionRequested is returned when --version is among the arguments
var ErrVersionRequested = errors.New("version requested")

func checkVersionFlag(args []string) error {
	for _, arg := range args {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return ErrVersionRequested
		}
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.PDFDirectory == "" {
		return errors.New("PDF directory cannot be empty")
	}

	// A missing directory is allowed so placeholder paths survive until first use
	if info, err := os.Stat(c.PDFDirectory); err == nil && !info.IsDir() {
		return fmt.Errorf("PDF directory %s is not a directory", c.PDFDirectory)
	} else if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot access PDF directory %s: %w", c.PDFDirectory, err)
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	if c.Mapper != MapperRemote && c.Mapper != MapperRules {
		return errors.New("mapper must be either 'remote' or 'rules'")
	}

	return nil
}

// ValidateMapper checks the settings the selected mapper needs
func (c *Config) ValidateMapper() error {
	if c.Mapper != MapperRemote {
		return nil
	}
	if c.APIKey == "" {
		return errors.New("the remote mapper requires an API key (--apikey, PDF_AUTOMAP_APIKEY or ANTHROPIC_API_KEY)")
	}
	if c.MaxTokens <= 0 {
		return errors.New("maxtokens must be positive")
	}
	if c.APIURL == "" {
		return errors.New("apiurl cannot be empty")
	}
	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration. The API key is never printed.
func (c *Config) String() string {
	key := "unset"
	if c.APIKey != "" {
		key = "set"
	}
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, PDFDirectory: %s, LogLevel: %s, MaxFileSize: %d, "+
		"Mapper: %s, Model: %s, APIKey: %s, DBPath: %s}",
		c.Mode, c.Host, c.Port, c.PDFDirectory, c.LogLevel, c.MaxFileSize, c.Mapper, c.Model, key, c.DBPath)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}

// TemplatesEnabled reports whether a template store is configured
func (c *Config) TemplatesEnabled() bool {
	return c.DBPath != ""
}
