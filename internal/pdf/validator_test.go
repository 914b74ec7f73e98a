package pdf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-automap/internal/testutil/pdffixture"
)

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestValidator_ValidateFile(t *testing.T) {
	tempDir := t.TempDir()
	validator := NewValidator(1024 * 1024) // 1MB limit

	form := writeFile(t, tempDir, "w4.pdf", pdffixture.TextForm("fname", "lname"))
	garbage := writeFile(t, tempDir, "garbage.pdf", []byte("this is not a pdf at all"))
	empty := writeFile(t, tempDir, "empty.pdf", nil)
	text := writeFile(t, tempDir, "notes.txt", []byte("hello"))
	large := writeFile(t, tempDir, "large.pdf", make([]byte, 2*1024*1024))

	tests := []struct {
		name        string
		path        string
		expectValid bool
		wantPages   int
		wantMessage string
	}{
		{name: "valid form", path: form, expectValid: true, wantPages: 1},
		{name: "empty path", path: "", wantMessage: "path cannot be empty"},
		{name: "non-existent file", path: filepath.Join(tempDir, "missing.pdf"), wantMessage: "does not exist"},
		{name: "directory", path: tempDir, wantMessage: "directory"},
		{name: "wrong extension", path: text, wantMessage: "not a PDF"},
		{name: "empty file", path: empty, wantMessage: "empty"},
		{name: "too large", path: large, wantMessage: "too large"},
		{name: "unparseable", path: garbage, wantMessage: "invalid PDF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := validator.ValidateFile(PDFValidateFileRequest{Path: tt.path})
			require.NoError(t, err)
			require.NotNil(t, result)

			assert.Equal(t, tt.path, result.Path)
			assert.Equal(t, tt.expectValid, result.Valid)
			assert.Equal(t, tt.wantPages, result.Pages)
			if tt.expectValid {
				assert.Empty(t, result.Message)
				assert.True(t, validator.IsValidPDF(tt.path))
			} else {
				assert.Contains(t, result.Message, tt.wantMessage)
				assert.False(t, validator.IsValidPDF(tt.path))
			}
		})
	}
}

func TestValidator_MultiPageCount(t *testing.T) {
	letter := pdffixture.Page{Width: 612, Height: 792}
	data := pdffixture.Build(pdffixture.Spec{
		Pages: []pdffixture.Page{letter, letter, letter},
		Fields: []pdffixture.Field{{
			Name: "sig", FT: "Tx", Merged: true,
			Widgets: []pdffixture.Widget{{Page: 3, Rect: [4]float64{72, 72, 272, 92}}},
		}},
	})
	path := writeFile(t, t.TempDir(), "three.pdf", data)

	result, err := NewValidator(1024 * 1024).ValidateFile(PDFValidateFileRequest{Path: path})
	require.NoError(t, err)
	assert.True(t, result.Valid, result.Message)
	assert.Equal(t, 3, result.Pages)
}
