package automap

import (
	"encoding/json"
	"fmt"
	"strings"

	pdferrors "github.com/a3tai/mcp-pdf-automap/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-automap/internal/pdf/extraction"
	"github.com/a3tai/mcp-pdf-automap/internal/schema"
)

// ParseMappingResponse decodes the mapping service's answer text. A markdown code fence around
// the object is tolerated; anything else that is not a JSON object with a mappings array fails.
func ParseMappingResponse(text string) (*MappingResponse, error) {
	body := stripCodeFence(text)

	var raw struct {
		Mappings          *[]Mapping `json:"mappings"`
		UnmappedPDFFields []string   `json:"unmappedPDFFields"`
		Warnings          []string   `json:"warnings"`
	}
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeParse, "mapping response is not valid JSON", err)
	}
	if raw.Mappings == nil {
		return nil, pdferrors.NewPipelineError(pdferrors.ErrorTypeParse, "mapping response has no mappings array")
	}

	return &MappingResponse{
		Mappings:          *raw.Mappings,
		UnmappedPDFFields: raw.UnmappedPDFFields,
		Warnings:          raw.Warnings,
	}, nil
}

func stripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ConvertMappings turns the service's mappings into MappedFields, copying geometry from the
// first extracted field with the exact same name. A mapping that names a field which was never
// extracted fails the whole conversion.
func ConvertMappings(fields []extraction.FieldInfo, resp *MappingResponse) (*Result, error) {
	byName := make(map[string]extraction.FieldInfo, len(fields))
	for _, f := range fields {
		if _, ok := byName[f.Name]; !ok {
			byName[f.Name] = f
		}
	}

	mapped := make([]MappedField, 0, len(resp.Mappings))
	for i, m := range resp.Mappings {
		src, ok := byName[m.PDFFieldName]
		if !ok {
			return nil, pdferrors.UnknownField(m.PDFFieldName)
		}

		mapped = append(mapped, MappedField{
			ID:                 fmt.Sprintf("field_%d", i+1),
			Type:               kindFor(src, m),
			Page:               src.Page,
			X:                  src.X,
			Y:                  src.Y,
			Width:              src.Width,
			Height:             src.Height,
			PDFFieldName:       m.PDFFieldName,
			EmployeeDataSource: m.EmployeeDataSource,
			Transform:          m.Transform,
			TransformIndex:     m.TransformIndex,
			CheckIfEquals:      m.CheckIfEquals,
			Label:              m.Label,
			Confidence:         m.Confidence,
			NeedsReview:        m.Confidence < ReviewThreshold,
		})
	}

	result := &Result{
		Fields:              mapped,
		UnmappedPDFFields:   resp.UnmappedPDFFields,
		MissingEmployeeData: []string{},
		Warnings:            resp.Warnings,
	}
	if result.UnmappedPDFFields == nil {
		result.UnmappedPDFFields = []string{}
	}
	if result.Warnings == nil {
		result.Warnings = []string{}
	}
	return result, nil
}

func kindFor(src extraction.FieldInfo, m Mapping) FieldKind {
	switch {
	case src.Type == extraction.FieldTypeCheckbox || m.Transform == TransformCheckbox:
		return KindCheckbox
	case m.EmployeeDataSource == schema.DateOfBirth || strings.Contains(strings.ToLower(m.Label), "date"):
		return KindDate
	default:
		return KindText
	}
}
