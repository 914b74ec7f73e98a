// Package pdf is the file-system facing side of the server: it confines tool paths to the forms
// directory, finds and validates form PDFs, and loads them for extraction.
package pdf

import (
	"fmt"
	"os"
	"time"

	"github.com/a3tai/mcp-pdf-automap/internal/pdf/security"
)

// Service handles PDF file operations by orchestrating the validator, search and path checks
type Service struct {
	maxFileSize   int64
	validator     *Validator
	search        *Search
	pathValidator *security.PathValidator
}

// NewService creates a new PDF service rooted at configuredDirectory
func NewService(maxFileSize int64, configuredDirectory string) (*Service, error) {
	if maxFileSize <= 0 {
		return nil, fmt.Errorf("maxFileSize must be greater than 0")
	}
	pathValidator, err := security.NewPathValidator(configuredDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to create path validator: %w", err)
	}

	return &Service{
		maxFileSize:   maxFileSize,
		validator:     NewValidator(maxFileSize),
		search:        NewSearch(maxFileSize),
		pathValidator: pathValidator,
	}, nil
}

// ResolvePath returns the absolute path of a file inside the forms directory
func (s *Service) ResolvePath(path string) (string, error) {
	resolved, err := s.pathValidator.Resolve(path)
	if err != nil {
		return "", fmt.Errorf("security validation failed: %w", err)
	}
	return resolved, nil
}

// ReadForm loads a PDF from the forms directory after the path, extension and size checks.
// It returns the resolved path with the file contents.
func (s *Service) ReadForm(path string) (string, []byte, error) {
	resolved, err := s.ResolvePath(path)
	if err != nil {
		return "", nil, err
	}

	info, err := os.Stat(resolved)
	if os.IsNotExist(err) {
		return "", nil, fmt.Errorf("file does not exist: %s", path)
	}
	if err != nil {
		return "", nil, fmt.Errorf("cannot access file: %w", err)
	}
	if err := s.validator.ValidateFileInfo(resolved, info); err != nil {
		return "", nil, err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return resolved, data, nil
}

// PDFValidateFile performs validation on a PDF file
func (s *Service) PDFValidateFile(req PDFValidateFileRequest) (*PDFValidateFileResult, error) {
	resolved, err := s.ResolvePath(req.Path)
	if err != nil {
		return nil, err
	}
	result, err := s.validator.ValidateFile(PDFValidateFileRequest{Path: resolved})
	if err != nil {
		return nil, err
	}
	result.Path = req.Path
	return result, nil
}

// PDFSearchDirectory searches for PDF files below a directory of the forms directory
func (s *Service) PDFSearchDirectory(req PDFSearchDirectoryRequest) (*PDFSearchDirectoryResult, error) {
	if req.Directory == "" {
		req.Directory = s.pathValidator.GetConfiguredDirectory()
	}

	resolved, err := s.ResolvePath(req.Directory)
	if err != nil {
		return nil, err
	}
	req.Directory = resolved

	return s.search.SearchDirectory(req)
}

// GetMaxFileSize returns the maximum file size limit
func (s *Service) GetMaxFileSize() int64 {
	return s.maxFileSize
}

// GetConfiguredDirectory returns the absolute forms directory
func (s *Service) GetConfiguredDirectory() string {
	return s.pathValidator.GetConfiguredDirectory()
}

// directoryScanLimit bounds the listing embedded in server info
const (
	directoryScanLimit   = 100
	directoryScanTimeout = 5 * time.Second
)

// PDFServerInfo returns server information, the tool catalog and usage guidance
func (s *Service) PDFServerInfo(serverName, version, mapper string, templatesEnabled bool, tools []ToolInfo) *PDFServerInfoResult {
	directory := s.pathValidator.GetConfiguredDirectory()

	resultChan := make(chan []FileInfo, 1)
	go func() {
		res, err := s.search.SearchDirectory(PDFSearchDirectoryRequest{Directory: directory, Limit: directoryScanLimit})
		if err != nil {
			resultChan <- []FileInfo{}
			return
		}
		resultChan <- res.Files
	}()

	// Don't fail or hang on a slow directory, just return empty contents
	directoryContents := []FileInfo{}
	select {
	case files := <-resultChan:
		directoryContents = files
	case <-time.After(directoryScanTimeout):
	}

	return &PDFServerInfoResult{
		ServerName:        serverName,
		Version:           version,
		DefaultDirectory:  directory,
		MaxFileSize:       s.maxFileSize,
		Mapper:            mapper,
		TemplatesEnabled:  templatesEnabled,
		AvailableTools:    tools,
		DirectoryContents: directoryContents,
		UsageGuidance:     usageGuidance(s.maxFileSize, templatesEnabled),
	}
}

func usageGuidance(maxFileSize int64, templatesEnabled bool) string {
	text := `PDF AutoMap Usage Guide:

1. FIND FORMS:
   - Use 'pdf_search_directory' to list form PDFs in the forms directory
   - Use 'pdf_validate_file' to check a file is a readable PDF

2. INSPECT A FORM:
   - Use 'pdf_extract_fields' to list its fillable fields with top-left point geometry
   - Use 'pdf_employee_schema' to see the employee data fields a form can be mapped onto

3. MAP A FORM:
   - Use 'pdf_automap' to map every fillable field onto employee data
   - Mappings below 0.8 confidence are flagged needsReview and should be checked by a person
   - unmappedPDFFields lists fields with no mapping, including those past the 20-field request limit

4. DISPLAY AND FILL:
   - Use 'pdf_overlay' to turn mapped fields into percentage boxes over rendered pages
   - Use 'pdf_resolve_values' to compute the value each PDF field receives from an employee record
`
	if templatesEnabled {
		text += `
5. TEMPLATES:
   - Pass 'template' to 'pdf_automap' to save the mapping under a name
   - Use 'pdf_template_list', 'pdf_template_get' and 'pdf_template_delete' to manage saved mappings
`
	}
	text += fmt.Sprintf(`
IMPORTANT NOTES:
- Paths may be absolute or relative to the forms directory, and must stay inside it
- The server can handle files up to %dMB
- Only AcroForm fields are mapped; scanned forms without fields return an error`, maxFileSize/(1024*1024))
	return text
}
