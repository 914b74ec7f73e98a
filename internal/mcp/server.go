package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/mcp-pdf-automap/internal/automap"
	"github.com/a3tai/mcp-pdf-automap/internal/config"
	"github.com/a3tai/mcp-pdf-automap/internal/descriptions"
	"github.com/a3tai/mcp-pdf-automap/internal/pdf"
	"github.com/a3tai/mcp-pdf-automap/internal/pdf/extraction"
	"github.com/a3tai/mcp-pdf-automap/internal/store"
)

const shutdownTimeout = 5 * time.Second

// Server represents the MCP server instance
type Server struct {
	config     *config.Config
	pdfService *pdf.Service
	extractor  *extraction.FieldExtractor
	pipeline   *automap.Pipeline
	templates  *store.Store
	mcpServer  *server.MCPServer
	tools      []pdf.ToolInfo

	stdin  io.Reader
	stdout io.Writer
}

// NewServer creates a new MCP server instance. templates may be nil, in which case the template
// tools are not registered.
func NewServer(cfg *config.Config, pdfService *pdf.Service, mapper automap.Mapper, templates *store.Store) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if pdfService == nil {
		return nil, fmt.Errorf("pdfService cannot be nil")
	}
	if mapper == nil {
		return nil, fmt.Errorf("mapper cannot be nil")
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // We don't support dynamic tool capabilities
		server.WithRecovery(),
	)

	extractor := extraction.NewFieldExtractor(cfg.IsDebug())
	s := &Server{
		config:     cfg,
		pdfService: pdfService,
		extractor:  extractor,
		pipeline:   automap.NewPipeline(extractor, mapper, cfg.IsDebug()),
		templates:  templates,
		mcpServer:  mcpServer,
		stdin:      os.Stdin,
		stdout:     os.Stdout,
	}

	s.registerTools()

	return s, nil
}

// toolDef is one registered tool with the guidance shown by pdf_server_info
type toolDef struct {
	tool    mcp.Tool
	handler server.ToolHandlerFunc
	usage   string
	params  string
}

func (s *Server) toolDefs() []toolDef {
	pathArg := mcp.WithString("path",
		mcp.Required(),
		mcp.Description("Path to the PDF file, absolute or relative to the forms directory"),
	)
	formatArg := mcp.WithString("format",
		mcp.Description("Output format"),
		mcp.Enum("json", "yaml"),
		mcp.DefaultString("json"),
	)

	defs := []toolDef{
		{
			tool: mcp.NewTool("pdf_search_directory",
				mcp.WithDescription(descriptions.PDFSearchDirectoryDescription),
				mcp.WithString("directory", mcp.Description("Directory to search, relative to the forms directory (uses the forms directory if empty)")),
				mcp.WithString("query", mcp.Description("Optional search query for fuzzy filename matching")),
			),
			handler: s.handlePDFSearchDirectory,
			usage:   "Find the form to work on.",
			params:  "directory (optional), query (optional)",
		},
		{
			tool: mcp.NewTool("pdf_validate_file",
				mcp.WithDescription(descriptions.PDFValidateFileDescription),
				pathArg,
			),
			handler: s.handlePDFValidateFile,
			usage:   "Check a file is a readable PDF before mapping it.",
			params:  "path (required)",
		},
		{
			tool: mcp.NewTool("pdf_extract_fields",
				mcp.WithDescription(descriptions.PDFExtractFieldsDescription),
				pathArg,
			),
			handler: s.handlePDFExtractFields,
			usage:   "List fillable fields with page and top-left point geometry.",
			params:  "path (required)",
		},
		{
			tool: mcp.NewTool("pdf_employee_schema",
				mcp.WithDescription(descriptions.PDFEmployeeSchemaDescription),
				mcp.WithString("category", mcp.Description("Optional category filter")),
				formatArg,
			),
			handler: s.handlePDFEmployeeSchema,
			usage:   "See the employee data fields forms are mapped onto.",
			params:  "category (optional), format (optional: json|yaml)",
		},
		{
			tool: mcp.NewTool("pdf_automap",
				mcp.WithDescription(descriptions.PDFAutoMapDescription),
				pathArg,
				mcp.WithString("template", mcp.Description("Save the mapping as a template under this name")),
				formatArg,
			),
			handler: s.handlePDFAutoMap,
			usage:   "Map every fillable field onto employee data.",
			params:  "path (required), template (optional), format (optional: json|yaml)",
		},
		{
			tool: mcp.NewTool("pdf_overlay",
				mcp.WithDescription(descriptions.PDFOverlayDescription),
				pathArg,
				mcp.WithString("template", mcp.Description("Saved template id or name to use instead of mapping again")),
			),
			handler: s.handlePDFOverlay,
			usage:   "Position mapped fields as percentage boxes over the pages.",
			params:  "path (required), template (optional)",
		},
		{
			tool: mcp.NewTool("pdf_resolve_values",
				mcp.WithDescription(descriptions.PDFResolveValuesDescription),
				mcp.WithString("employee", mcp.Required(), mcp.Description("Employee record as a JSON object")),
				mcp.WithString("template", mcp.Description("Saved template id or name")),
				mcp.WithString("path", mcp.Description("PDF to map when no template is given")),
			),
			handler: s.handlePDFResolveValues,
			usage:   "Compute the value of every PDF field for one employee.",
			params:  "employee (required, JSON object), template or path",
		},
		{
			tool: mcp.NewTool("pdf_server_info",
				mcp.WithDescription(descriptions.PDFServerInfoDescription),
			),
			handler: s.handlePDFServerInfo,
			usage:   "Start here.",
			params:  "none",
		},
	}

	if s.templates == nil {
		return defs
	}

	return append(defs,
		toolDef{
			tool: mcp.NewTool("pdf_template_list",
				mcp.WithDescription(descriptions.PDFTemplateListDescription),
			),
			handler: s.handlePDFTemplateList,
			usage:   "List saved mappings.",
			params:  "none",
		},
		toolDef{
			tool: mcp.NewTool("pdf_template_get",
				mcp.WithDescription(descriptions.PDFTemplateGetDescription),
				mcp.WithString("template", mcp.Required(), mcp.Description("Template id or name")),
				formatArg,
			),
			handler: s.handlePDFTemplateGet,
			usage:   "Load one saved mapping.",
			params:  "template (required), format (optional: json|yaml)",
		},
		toolDef{
			tool: mcp.NewTool("pdf_template_delete",
				mcp.WithDescription(descriptions.PDFTemplateDeleteDescription),
				mcp.WithString("id", mcp.Required(), mcp.Description("Template id")),
			),
			handler: s.handlePDFTemplateDelete,
			usage:   "Delete a saved mapping.",
			params:  "id (required)",
		},
	)
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	for _, def := range s.toolDefs() {
		s.mcpServer.AddTool(def.tool, def.handler)
		s.tools = append(s.tools, pdf.ToolInfo{
			Name:        def.tool.Name,
			Description: firstLine(def.tool.Description),
			Usage:       def.usage,
			Parameters:  def.params,
		})
	}
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode serves the protocol over stdin/stdout until input ends or ctx is canceled
func (s *Server) runStdioMode(ctx context.Context) error {
	if s.config.IsDebug() {
		log.Printf("Starting PDF AutoMap MCP server in stdio mode")
		log.Printf("PDF directory: %s", s.config.PDFDirectory)
	}

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(log.New(log.Writer(), "[stdio] ", log.LstdFlags))

	err := stdio.Listen(ctx, s.stdin, s.stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode serves the protocol over HTTP with server-sent events until ctx is canceled
func (s *Server) runServerMode(ctx context.Context) error {
	addr := s.config.Address()
	httpServer := &http.Server{Addr: addr, ReadHeaderTimeout: 10 * time.Second}
	sse := server.NewSSEServer(s.mcpServer,
		server.WithBaseURL("http://"+addr),
		server.WithHTTPServer(httpServer),
	)
	httpServer.Handler = sse

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting PDF AutoMap MCP server on http://%s/sse", addr)
		errCh <- sse.Start(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve SSE: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := sse.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down SSE server: %w", err)
		}
		return nil
	}
}
