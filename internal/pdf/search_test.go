package pdf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func searchFixture(t *testing.T) string {
	t.Helper()
	tempDir := t.TempDir()

	testFiles := map[string][]byte{
		"w4_2024.pdf":                make([]byte, 1024),
		"I-9 Employment.pdf":         make([]byte, 2048),
		"direct_deposit.PDF":         make([]byte, 512),
		"state/ca_de4.pdf":           make([]byte, 512),
		".archive/old_w4.pdf":        make([]byte, 512),
		"report.txt":                 []byte("not a pdf"),
		"empty.pdf":                  {},
		"large.pdf":                  make([]byte, 2*1024*1024),
		"state/nested/deep/form.pdf": make([]byte, 100),
	}
	for name, content := range testFiles {
		writeFile(t, tempDir, name, content)
	}
	return tempDir
}

func names(files []FileInfo) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Name
	}
	return out
}

func TestSearch_SearchDirectory(t *testing.T) {
	tempDir := searchFixture(t)
	search := NewSearch(1024 * 1024)

	tests := []struct {
		name  string
		query string
		limit int
		want  []string
	}{
		{
			name: "all valid PDFs sorted by path, hidden directories skipped",
			want: []string{"I-9 Employment.pdf", "direct_deposit.PDF", "ca_de4.pdf", "form.pdf", "w4_2024.pdf"},
		},
		{name: "substring", query: "w4", want: []string{"w4_2024.pdf"}},
		{name: "case-insensitive", query: "EMPLOYMENT", want: []string{"I-9 Employment.pdf"}},
		{name: "all words must match", query: "direct deposit", want: []string{"direct_deposit.PDF"}},
		{name: "word prefix", query: "dep dir", want: []string{"direct_deposit.PDF"}},
		{name: "no match", query: "1099", want: []string{}},
		{name: "limit", limit: 2, want: []string{"I-9 Employment.pdf", "direct_deposit.PDF"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := search.SearchDirectory(PDFSearchDirectoryRequest{Directory: tempDir, Query: tt.query, Limit: tt.limit})
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(result.Files))
			assert.Equal(t, len(tt.want), result.TotalCount)
			assert.Equal(t, tempDir, result.Directory)
			assert.Equal(t, tt.query, result.SearchQuery)
		})
	}
}

func TestSearch_SearchDirectoryErrors(t *testing.T) {
	search := NewSearch(1024)
	tempDir := t.TempDir()
	file := writeFile(t, tempDir, "a.pdf", []byte("x"))

	_, err := search.SearchDirectory(PDFSearchDirectoryRequest{})
	assert.Error(t, err)

	_, err = search.SearchDirectory(PDFSearchDirectoryRequest{Directory: filepath.Join(tempDir, "missing")})
	assert.ErrorContains(t, err, "does not exist")

	_, err = search.SearchDirectory(PDFSearchDirectoryRequest{Directory: file})
	assert.ErrorContains(t, err, "not a directory")
}

func TestSearch_SkipsSymlinks(t *testing.T) {
	tempDir := t.TempDir()
	outside := t.TempDir()
	secret := writeFile(t, outside, "secret.pdf", make([]byte, 10))
	if err := os.Symlink(secret, filepath.Join(tempDir, "link.pdf")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	writeFile(t, tempDir, "real.pdf", make([]byte, 10))

	result, err := NewSearch(1024).SearchDirectory(PDFSearchDirectoryRequest{Directory: tempDir})
	require.NoError(t, err)
	assert.Equal(t, []string{"real.pdf"}, names(result.Files))
}

func TestMatchesQuery(t *testing.T) {
	tests := []struct {
		filename string
		query    string
		want     bool
	}{
		{"w4_2024.pdf", "", true},
		{"w4_2024.pdf", "2024", true},
		{"w4_2024.pdf", "w4 2024", true},
		{"w4_2024.pdf", "w9", false},
		{"Direct (Deposit).pdf", "deposit", true},
		{"Direct (Deposit).pdf", "direct form", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename+"/"+tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, matchesQuery(tt.filename, tt.query))
		})
	}
}
