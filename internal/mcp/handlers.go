package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/a3tai/mcp-pdf-automap/internal/automap"
	"github.com/a3tai/mcp-pdf-automap/internal/overlay"
	"github.com/a3tai/mcp-pdf-automap/internal/pdf"
	"github.com/a3tai/mcp-pdf-automap/internal/pdf/extraction"
	"github.com/a3tai/mcp-pdf-automap/internal/report"
	"github.com/a3tai/mcp-pdf-automap/internal/schema"
	"github.com/a3tai/mcp-pdf-automap/internal/store"
	"github.com/a3tai/mcp-pdf-automap/internal/transform"
)

var errTemplatesDisabled = errors.New("templates are disabled; start the server with --db to enable them")

// extractFieldsResponse is the payload of pdf_extract_fields
type extractFieldsResponse struct {
	Path       string                 `json:"path" yaml:"path"`
	Pages      []extraction.PageSize  `json:"pages" yaml:"pages"`
	FieldCount int                    `json:"fieldCount" yaml:"fieldCount"`
	Fields     []extraction.FieldInfo `json:"fields" yaml:"fields"`
}

// autoMapResponse is the payload of pdf_automap
type autoMapResponse struct {
	Path        string          `json:"path" yaml:"path"`
	PageCount   int             `json:"pageCount" yaml:"pageCount"`
	ReviewCount int             `json:"reviewCount" yaml:"reviewCount"`
	Template    *templateRef    `json:"template,omitempty" yaml:"template,omitempty"`
	Mapping     *automap.Result `json:"mapping" yaml:"mapping"`
}

type templateRef struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// overlayResponse is the payload of pdf_overlay
type overlayResponse struct {
	Path     string                `json:"path" yaml:"path"`
	Pages    []extraction.PageSize `json:"pages" yaml:"pages"`
	Overlays []overlay.Overlay     `json:"overlays" yaml:"overlays"`
}

func (s *Server) handlePDFSearchDirectory(ctx context.Context, request mcp.CallToolRequest) (
	*mcp.CallToolResult, error,
) {
	req := pdf.PDFSearchDirectoryRequest{
		Directory: request.GetString("directory", ""),
		Query:     request.GetString("query", ""),
	}

	result, err := s.pdfService.PDFSearchDirectory(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if result.TotalCount == 0 {
		text := fmt.Sprintf("No PDF files found in directory: %s", result.Directory)
		if result.SearchQuery != "" {
			text += fmt.Sprintf(" (searched for: %s)", result.SearchQuery)
		}
		return mcp.NewToolResultText(text), nil
	}
	return mcp.NewToolResultText(formatSearchResult(result)), nil
}

func formatSearchResult(result *pdf.PDFSearchDirectoryResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d PDF file(s) in directory: %s\n", result.TotalCount, result.Directory)
	if result.SearchQuery != "" {
		fmt.Fprintf(&b, "Search query: %s\n", result.SearchQuery)
	}
	b.WriteString("\nFiles:\n")

	for i, file := range result.Files {
		fmt.Fprintf(&b, "%d. %s\n", i+1, file.Name)
		fmt.Fprintf(&b, "   Path: %s\n", file.Path)
		fmt.Fprintf(&b, "   Size: %d bytes\n", file.Size)
		fmt.Fprintf(&b, "   Modified: %s\n", file.ModifiedTime)
		if i < len(result.Files)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (s *Server) handlePDFValidateFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.PDFValidateFile(pdf.PDFValidateFileRequest{Path: path})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if result.Valid {
		return mcp.NewToolResultText(fmt.Sprintf("PDF file %s is valid and readable (%d pages)", result.Path, result.Pages)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("PDF validation failed for %s: %s", result.Path, result.Message)), nil
}

func (s *Server) handlePDFExtractFields(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	_, data, err := s.pdfService.ReadForm(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	fields, err := s.extractor.ExtractFieldsFromBytes(ctx, data)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pages, err := s.extractor.PageSizesFromBytes(ctx, data)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return render(extractFieldsResponse{
		Path:       path,
		Pages:      pages,
		FieldCount: len(extraction.Names(fields)),
		Fields:     fields,
	}, "json")
}

func (s *Server) handlePDFEmployeeSchema(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fields := schema.EmployeeDataSchema()
	if category := request.GetString("category", ""); category != "" {
		fields = schema.ByCategory(schema.Category(category))
		if len(fields) == 0 {
			return mcp.NewToolResultError(fmt.Sprintf("unknown category %q (valid: %s)", category, categoryList())), nil
		}
	}
	return render(fields, request.GetString("format", "json"))
}

func categoryList() string {
	cats := schema.Categories()
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

func (s *Server) handlePDFAutoMap(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name := request.GetString("template", "")
	if name != "" && s.templates == nil {
		return mcp.NewToolResultError(errTemplatesDisabled.Error()), nil
	}

	resolved, data, err := s.pdfService.ReadForm(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, _, err := s.pipeline.Run(ctx, data)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pages, err := s.extractor.PageSizesFromBytes(ctx, data)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp := autoMapResponse{
		Path:        path,
		PageCount:   len(pages),
		ReviewCount: result.ReviewCount(),
		Mapping:     result,
	}

	if name != "" {
		saved, err := s.templates.Save(ctx, name, resolved, len(pages), result)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		resp.Template = &templateRef{ID: saved.ID, Name: saved.Name}
		if s.config.IsDebug() {
			log.Printf("Saved mapping of %s as template %s", path, saved.ID)
		}
	}

	return render(resp, request.GetString("format", "json"))
}

func (s *Server) handlePDFOverlay(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	_, data, err := s.pdfService.ReadForm(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pages, err := s.extractor.PageSizesFromBytes(ctx, data)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	fields, err := s.mappedFields(ctx, request.GetString("template", ""), data)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tracker := overlay.NewTracker(len(pages))
	for _, p := range pages {
		if err := tracker.PageLoaded(p.Page, p.Width, p.Height); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	overlays := tracker.Overlays(overlay.FromMapped(fields, pages))
	if overlays == nil {
		return mcp.NewToolResultError("document has no pages to position fields on"), nil
	}

	return render(overlayResponse{Path: path, Pages: pages, Overlays: overlays}, "json")
}

func (s *Server) handlePDFResolveValues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	record, err := employeeRecord(request.GetArguments()["employee"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var fields []automap.MappedField
	template := request.GetString("template", "")
	path := request.GetString("path", "")
	switch {
	case template != "":
		fields, err = s.mappedFields(ctx, template, nil)
	case path != "":
		var data []byte
		if _, data, err = s.pdfService.ReadForm(path); err == nil {
			fields, err = s.mappedFields(ctx, "", data)
		}
	default:
		err = errors.New("either template or path is required")
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	values, err := transform.ResolveAll(fields, record)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return render(values, "json")
}

// employeeRecord accepts the employee argument as a JSON object or as a string holding one
func employeeRecord(arg any) (transform.Record, error) {
	switch v := arg.(type) {
	case map[string]any:
		return transform.Record(v), nil
	case string:
		var record transform.Record
		if err := json.Unmarshal([]byte(v), &record); err != nil {
			return nil, fmt.Errorf("employee must be a JSON object: %w", err)
		}
		if record == nil {
			return nil, errors.New("employee must be a JSON object")
		}
		return record, nil
	case nil:
		return nil, errors.New("required argument \"employee\" not found")
	default:
		return nil, fmt.Errorf("employee must be a JSON object, got %T", arg)
	}
}

// mappedFields loads the fields of a saved template, or maps data when template is empty
func (s *Server) mappedFields(ctx context.Context, template string, data []byte) ([]automap.MappedField, error) {
	if template != "" {
		if s.templates == nil {
			return nil, errTemplatesDisabled
		}
		t, err := s.templates.Get(ctx, template)
		if err != nil {
			return nil, err
		}
		return t.Fields, nil
	}

	result, _, err := s.pipeline.Run(ctx, data)
	if err != nil {
		return nil, err
	}
	return result.Fields, nil
}

func (s *Server) handlePDFTemplateList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.templates.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(list) == 0 {
		return mcp.NewToolResultText("No saved templates"), nil
	}
	return render(list, "json")
}

func (s *Server) handlePDFTemplateGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	idOrName, err := request.RequireString("template")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	t, err := s.templates.Get(ctx, idOrName)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return render(t, request.GetString("format", "json"))
}

func (s *Server) handlePDFTemplateDelete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.templates.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("no template with id %s", id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Deleted template %s", id)), nil
}

func (s *Server) handlePDFServerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result := s.pdfService.PDFServerInfo(
		s.config.ServerName,
		s.config.Version,
		s.config.Mapper,
		s.templates != nil,
		s.tools,
	)
	return render(result, "json")
}

// render formats v as indented JSON or as YAML
func render(v any, format string) (*mcp.CallToolResult, error) {
	switch format {
	case "", "json":
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to format result: %v", err)), nil
		}
		return mcp.NewToolResultText(string(out)), nil
	case "yaml":
		out, err := report.YAML(v)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(out)), nil
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unsupported format %q (use json or yaml)", format)), nil
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
