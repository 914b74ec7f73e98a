package automap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-automap/internal/pdf/extraction"
	"github.com/a3tai/mcp-pdf-automap/internal/schema"
)

func TestNormalizeFieldName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"firstName", "first_name"},
		{"Employee First Name", "employee_first_name"},
		{"  SSN-1 ", "ssn_1"},
		{"Dirección", "direccion"},
		{"w4Allowances", "w4_allowances"},
		{"topmostSubform[0].Page1[0].f1_01[0]", "topmost_subform_0_page1_0_f1_01_0"},
		{"__", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeFieldName(tt.in))
		})
	}
}

func TestRuleMapper_MapFields(t *testing.T) {
	text := func(name string) extraction.FieldInfo {
		return extraction.FieldInfo{Name: name, Type: extraction.FieldTypeText, Page: 1, Width: 10, Height: 10}
	}
	check := func(name string) extraction.FieldInfo {
		return extraction.FieldInfo{Name: name, Type: extraction.FieldTypeCheckbox, Page: 1, Width: 10, Height: 10}
	}

	fields := []extraction.FieldInfo{
		text("firstName"),
		text("LNAME"),
		text("SSN_3"),
		text("dob_month"),
		text("Date of Birth Year"),
		check("filing_single"),
		check("head_of_household"),
		text("employee_department_code"),
		text("f1_07"),
		text("firstName"),
	}

	result, err := NewRuleMapper(false).MapFields(context.Background(), fields, schema.EmployeeDataSchema())
	require.NoError(t, err)

	byName := make(map[string]MappedField)
	for _, f := range result.Fields {
		byName[f.PDFFieldName] = f
	}
	require.Len(t, result.Fields, 8)

	tests := []struct {
		pdfName     string
		source      string
		transform   Transform
		confidence  float64
		kind        FieldKind
		needsReview bool
	}{
		{"firstName", "firstName", TransformNone, ConfidenceExact, KindText, false},
		{"LNAME", "lastName", TransformNone, ConfidenceAlias, KindText, false},
		{"SSN_3", "ssn", TransformSplitSSN, ConfidencePattern, KindText, false},
		{"dob_month", "dateOfBirth", TransformExtractMonth, ConfidencePattern, KindDate, false},
		{"Date of Birth Year", "dateOfBirth", TransformExtractYear, ConfidencePattern, KindDate, false},
		{"filing_single", "taxFilingStatus", TransformCheckbox, ConfidencePattern, KindCheckbox, false},
		{"head_of_household", "taxFilingStatus", TransformCheckbox, ConfidencePattern, KindCheckbox, false},
		{"employee_department_code", "department", TransformNone, ConfidencePartial, KindText, true},
	}

	for _, tt := range tests {
		t.Run(tt.pdfName, func(t *testing.T) {
			f, ok := byName[tt.pdfName]
			require.True(t, ok)
			assert.Equal(t, tt.source, f.EmployeeDataSource)
			assert.Equal(t, tt.transform, f.Transform)
			assert.InDelta(t, tt.confidence, f.Confidence, 1e-9)
			assert.Equal(t, tt.kind, f.Type)
			assert.Equal(t, tt.needsReview, f.NeedsReview)
		})
	}

	require.NotNil(t, byName["SSN_3"].TransformIndex)
	assert.Equal(t, 2, *byName["SSN_3"].TransformIndex)
	assert.Equal(t, "Single", byName["filing_single"].CheckIfEquals)
	assert.Equal(t, "Head of Household", byName["head_of_household"].CheckIfEquals)

	assert.Equal(t, []string{"f1_07"}, result.UnmappedPDFFields)
	assert.Empty(t, result.Warnings)
}

func TestRuleMapper_NoPromptCap(t *testing.T) {
	fields := makeFields(30)
	fields = append(fields, extraction.FieldInfo{Name: "email", Type: extraction.FieldTypeText, Page: 1})

	result, err := NewRuleMapper(true).MapFields(context.Background(), fields, schema.EmployeeDataSchema())
	require.NoError(t, err)
	require.Len(t, result.Fields, 1)
	assert.Equal(t, "email", result.Fields[0].EmployeeDataSource)
	assert.Len(t, result.UnmappedPDFFields, 30)
}

func TestRuleMapper_DuplicateSourceWarning(t *testing.T) {
	fields := []extraction.FieldInfo{
		{Name: "zip", Type: extraction.FieldTypeText, Page: 1},
		{Name: "postal_code", Type: extraction.FieldTypeText, Page: 2},
	}

	result, err := NewRuleMapper(false).MapFields(context.Background(), fields, schema.EmployeeDataSchema())
	require.NoError(t, err)
	assert.Equal(t, []string{"2 PDF fields map to mailingZip"}, result.Warnings)
}
