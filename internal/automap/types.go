package automap

import (
	"context"

	"github.com/a3tai/mcp-pdf-automap/internal/pdf/extraction"
	"github.com/a3tai/mcp-pdf-automap/internal/schema"
)

// ReviewThreshold is the confidence below which a mapping is flagged for manual review.
// A mapping at exactly the threshold is not flagged.
const ReviewThreshold = 0.8

// FieldKind is the rendering category of a mapped field in the field editor
type FieldKind string

const (
	KindSignature FieldKind = "signature"
	KindInitials  FieldKind = "initials"
	KindText      FieldKind = "text"
	KindDate      FieldKind = "date"
	KindCheckbox  FieldKind = "checkbox"
)

// Transform is a value-shaping operation applied to the employee data before it is written
// into the PDF field
type Transform string

const (
	TransformNone         Transform = ""
	TransformSplitSSN     Transform = "splitSSN"
	TransformExtractMonth Transform = "extractMonth"
	TransformExtractDay   Transform = "extractDay"
	TransformExtractYear  Transform = "extractYear"
	TransformFormatDate   Transform = "formatDate"
	TransformCheckbox     Transform = "checkbox"
	TransformUppercase    Transform = "uppercase"
	TransformLowercase    Transform = "lowercase"
)

// Valid reports whether t is one of the known transforms (or none)
func (t Transform) Valid() bool {
	switch t {
	case TransformNone, TransformSplitSSN, TransformExtractMonth, TransformExtractDay, TransformExtractYear,
		TransformFormatDate, TransformCheckbox, TransformUppercase, TransformLowercase:
		return true
	default:
		return false
	}
}

// MappedField is the persisted outcome of mapping one PDF field onto one employee data field.
// Geometry is copied verbatim from the matched extraction.FieldInfo.
type MappedField struct {
	ID                 string    `json:"id" yaml:"id"`
	Type               FieldKind `json:"type" yaml:"type"`
	Page               int       `json:"page" yaml:"page"`
	X                  float64   `json:"x" yaml:"x"`
	Y                  float64   `json:"y" yaml:"y"`
	Width              float64   `json:"width" yaml:"width"`
	Height             float64   `json:"height" yaml:"height"`
	PDFFieldName       string    `json:"pdfFieldName" yaml:"pdfFieldName"`
	EmployeeDataSource string    `json:"employeeDataSource" yaml:"employeeDataSource"`
	Transform          Transform `json:"transform,omitempty" yaml:"transform,omitempty"`
	TransformIndex     *int      `json:"transformIndex,omitempty" yaml:"transformIndex,omitempty"`
	CheckIfEquals      string    `json:"checkIfEquals,omitempty" yaml:"checkIfEquals,omitempty"`
	Label              string    `json:"label" yaml:"label"`
	Confidence         float64   `json:"confidence" yaml:"confidence"`
	NeedsReview        bool      `json:"needsReview" yaml:"needsReview"`
}

// Result is the full output of one mapping run.
//
// MissingEmployeeData is never populated by this package; it is reserved for callers.
type Result struct {
	Fields              []MappedField `json:"fields" yaml:"fields"`
	UnmappedPDFFields   []string      `json:"unmappedPDFFields" yaml:"unmappedPDFFields"`
	MissingEmployeeData []string      `json:"missingEmployeeData" yaml:"missingEmployeeData"`
	Warnings            []string      `json:"warnings" yaml:"warnings"`
}

// ReviewCount returns how many fields need manual review
func (r *Result) ReviewCount() int {
	n := 0
	for _, f := range r.Fields {
		if f.NeedsReview {
			n++
		}
	}
	return n
}

// Mapping is one entry of the mapping service's JSON answer
type Mapping struct {
	PDFFieldName       string    `json:"pdfFieldName"`
	EmployeeDataSource string    `json:"employeeDataSource"`
	Transform          Transform `json:"transform"`
	TransformIndex     *int      `json:"transformIndex,omitempty"`
	CheckIfEquals      string    `json:"checkIfEquals,omitempty"`
	Label              string    `json:"label"`
	Confidence         float64   `json:"confidence"`
}

// MappingResponse is the JSON object the mapping service must return
type MappingResponse struct {
	Mappings          []Mapping `json:"mappings"`
	UnmappedPDFFields []string  `json:"unmappedPDFFields"`
	Warnings          []string  `json:"warnings"`
}

// Mapper maps extracted PDF fields onto the employee data schema
type Mapper interface {
	MapFields(ctx context.Context, fields []extraction.FieldInfo, dataSchema []schema.EmployeeDataField) (*Result, error)
}
