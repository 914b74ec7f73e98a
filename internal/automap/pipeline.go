// Package automap turns the fillable fields of a PDF form into reviewed mappings onto the
// employee data schema.
package automap

import (
	"context"
	"log"

	pdferrors "github.com/a3tai/mcp-pdf-automap/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-automap/internal/pdf/extraction"
	"github.com/a3tai/mcp-pdf-automap/internal/schema"
)

// Extractor reads the fillable fields of a PDF
type Extractor interface {
	ExtractFieldsFromBytes(ctx context.Context, data []byte) ([]extraction.FieldInfo, error)
}

// Pipeline runs extraction, schema lookup and mapping for one document at a time
type Pipeline struct {
	extractor Extractor
	mapper    Mapper
	debugMode bool
}

// NewPipeline creates a new pipeline. A nil extractor uses the pdfcpu field extractor.
func NewPipeline(extractor Extractor, mapper Mapper, debugMode bool) *Pipeline {
	if extractor == nil {
		extractor = extraction.NewFieldExtractor(debugMode)
	}
	return &Pipeline{
		extractor: extractor,
		mapper:    mapper,
		debugMode: debugMode,
	}
}

// Run is AutoMapPDF that also returns the extracted fields
func (p *Pipeline) Run(ctx context.Context, pdfBytes []byte) (*Result, []extraction.FieldInfo, error) {
	fields, err := p.extractor.ExtractFieldsFromBytes(ctx, pdfBytes)
	if err != nil {
		return nil, nil, pdferrors.WrapError(pdferrors.ErrorTypeExtraction, "failed to extract form fields", err)
	}
	if len(fields) == 0 {
		return nil, nil, pdferrors.NoFillableFields()
	}

	if p.debugMode {
		log.Printf("[automap] extracted %d widgets (%d distinct fields)", len(fields), len(extraction.Names(fields)))
		if dropped := Truncated(fields); len(dropped) > 0 {
			log.Printf("[automap] %d fields exceed the prompt cap of %d", len(dropped), MaxPromptFields)
		}
	}

	result, err := p.mapper.MapFields(ctx, fields, schema.EmployeeDataSchema())
	if err != nil {
		return nil, fields, err
	}
	return result, fields, nil
}

// AutoMapPDF extracts the form fields of pdfBytes and maps them onto the employee data schema.
// A document without fillable fields fails before the mapper is called.
func (p *Pipeline) AutoMapPDF(ctx context.Context, pdfBytes []byte) (*Result, error) {
	result, _, err := p.Run(ctx, pdfBytes)
	return result, err
}

// AutoMapPDF runs the default pipeline against the remote mapping service
func AutoMapPDF(ctx context.Context, pdfBytes []byte, apiKey string) (*Result, error) {
	return NewPipeline(nil, NewRemoteMapper(apiKey), false).AutoMapPDF(ctx, pdfBytes)
}
