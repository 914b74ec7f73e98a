package pdf

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-automap/internal/testutil/pdffixture"
)

func TestNewService(t *testing.T) {
	_, err := NewService(0, t.TempDir())
	assert.Error(t, err)

	_, err = NewService(1024, "")
	assert.Error(t, err)

	svc, err := NewService(1024, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, int64(1024), svc.GetMaxFileSize())
}

func TestService_ReadForm(t *testing.T) {
	tempDir := t.TempDir()
	form := pdffixture.TextForm("fname")
	writeFile(t, tempDir, "forms/w4.pdf", form)
	writeFile(t, tempDir, "notes.txt", []byte("hello"))
	outside := writeFile(t, t.TempDir(), "other.pdf", form)

	svc, err := NewService(1024*1024, tempDir)
	require.NoError(t, err)

	path, data, err := svc.ReadForm("forms/w4.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tempDir, "forms", "w4.pdf"), path)
	assert.Equal(t, form, data)

	_, data, err = svc.ReadForm(filepath.Join(tempDir, "forms", "w4.pdf"))
	require.NoError(t, err)
	assert.Equal(t, form, data)

	tests := []struct {
		name string
		path string
		want string
	}{
		{"outside directory", outside, "security validation failed"},
		{"traversal", "../x.pdf", "security validation failed"},
		{"missing", "forms/missing.pdf", "does not exist"},
		{"not a pdf", "notes.txt", "not a PDF"},
		{"empty", "", "path cannot be empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.ReadForm(tt.path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestService_PDFValidateFile(t *testing.T) {
	tempDir := t.TempDir()
	writeFile(t, tempDir, "w4.pdf", pdffixture.TextForm("fname"))

	svc, err := NewService(1024*1024, tempDir)
	require.NoError(t, err)

	result, err := svc.PDFValidateFile(PDFValidateFileRequest{Path: "w4.pdf"})
	require.NoError(t, err)
	assert.True(t, result.Valid, result.Message)
	assert.Equal(t, "w4.pdf", result.Path)

	result, err = svc.PDFValidateFile(PDFValidateFileRequest{Path: "nope.pdf"})
	require.NoError(t, err)
	assert.False(t, result.Valid)

	_, err = svc.PDFValidateFile(PDFValidateFileRequest{Path: "/etc/passwd"})
	assert.Error(t, err)
}

func TestService_PDFSearchDirectory(t *testing.T) {
	tempDir := searchFixture(t)
	svc, err := NewService(1024*1024, tempDir)
	require.NoError(t, err)

	result, err := svc.PDFSearchDirectory(PDFSearchDirectoryRequest{})
	require.NoError(t, err)
	assert.Equal(t, 5, result.TotalCount)
	assert.Equal(t, tempDir, result.Directory)

	result, err = svc.PDFSearchDirectory(PDFSearchDirectoryRequest{Directory: "state"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ca_de4.pdf", "form.pdf"}, names(result.Files))

	_, err = svc.PDFSearchDirectory(PDFSearchDirectoryRequest{Directory: "/"})
	assert.Error(t, err)
}

func TestService_PDFServerInfo(t *testing.T) {
	tempDir := searchFixture(t)
	svc, err := NewService(100*1024*1024, tempDir)
	require.NoError(t, err)

	tools := []ToolInfo{{Name: "pdf_automap"}}

	info := svc.PDFServerInfo("mcp-pdf-automap", "1.0.0", "rules", false, tools)
	assert.Equal(t, "mcp-pdf-automap", info.ServerName)
	assert.Equal(t, tempDir, info.DefaultDirectory)
	assert.Equal(t, "rules", info.Mapper)
	assert.Equal(t, tools, info.AvailableTools)
	assert.Len(t, info.DirectoryContents, 5)
	assert.Contains(t, info.UsageGuidance, "100MB")
	assert.NotContains(t, info.UsageGuidance, "TEMPLATES")

	info = svc.PDFServerInfo("mcp-pdf-automap", "1.0.0", "remote", true, tools)
	assert.Contains(t, info.UsageGuidance, "pdf_template_list")
}

func TestService_PDFServerInfoMissingDirectory(t *testing.T) {
	svc, err := NewService(1024, filepath.Join(t.TempDir(), "later"))
	require.NoError(t, err)

	info := svc.PDFServerInfo("s", "v", "rules", false, nil)
	assert.NotNil(t, info.DirectoryContents)
	assert.Empty(t, info.DirectoryContents)
}
