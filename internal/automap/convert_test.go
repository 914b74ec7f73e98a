package automap

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pdferrors "github.com/a3tai/mcp-pdf-automap/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-automap/internal/pdf/extraction"
)

func intPtr(i int) *int { return &i }

func sampleFields() []extraction.FieldInfo {
	return []extraction.FieldInfo{
		{Name: "employee_first_name", Type: extraction.FieldTypeText, Page: 1, X: 72, Y: 50, Width: 200, Height: 20},
		{Name: "dob", Type: extraction.FieldTypeText, Page: 1, X: 300, Y: 50, Width: 100, Height: 20},
		{Name: "single_box", Type: extraction.FieldTypeCheckbox, Page: 2, X: 72, Y: 400, Width: 12, Height: 12},
		{Name: "ssn_1", Type: extraction.FieldTypeText, Page: 2, X: 100, Y: 120, Width: 14, Height: 20},
		{Name: "start", Type: extraction.FieldTypeText, Page: 2, X: 72, Y: 600, Width: 120, Height: 20},
	}
}

func TestConvertMappings(t *testing.T) {
	resp := &MappingResponse{
		Mappings: []Mapping{
			{PDFFieldName: "employee_first_name", EmployeeDataSource: "firstName", Label: "First Name", Confidence: 0.95},
			{PDFFieldName: "dob", EmployeeDataSource: "dateOfBirth", Label: "Birthday", Confidence: 0.8},
			{PDFFieldName: "single_box", EmployeeDataSource: "maritalStatus", Transform: TransformCheckbox,
				CheckIfEquals: "Single", Label: "Single", Confidence: 0.79},
			{PDFFieldName: "ssn_1", EmployeeDataSource: "ssn", Transform: TransformSplitSSN, TransformIndex: intPtr(0),
				Label: "SSN Digit 1", Confidence: 0.9},
			{PDFFieldName: "start", EmployeeDataSource: "hireDate", Label: "Start Date", Confidence: 0.6},
		},
		UnmappedPDFFields: []string{"misc"},
		Warnings:          []string{"check the SSN boxes"},
	}

	result, err := ConvertMappings(sampleFields(), resp)
	require.NoError(t, err)

	want := []MappedField{
		{ID: "field_1", Type: KindText, Page: 1, X: 72, Y: 50, Width: 200, Height: 20,
			PDFFieldName: "employee_first_name", EmployeeDataSource: "firstName", Label: "First Name",
			Confidence: 0.95},
		{ID: "field_2", Type: KindDate, Page: 1, X: 300, Y: 50, Width: 100, Height: 20,
			PDFFieldName: "dob", EmployeeDataSource: "dateOfBirth", Label: "Birthday", Confidence: 0.8},
		{ID: "field_3", Type: KindCheckbox, Page: 2, X: 72, Y: 400, Width: 12, Height: 12,
			PDFFieldName: "single_box", EmployeeDataSource: "maritalStatus", Transform: TransformCheckbox,
			CheckIfEquals: "Single", Label: "Single", Confidence: 0.79, NeedsReview: true},
		{ID: "field_4", Type: KindText, Page: 2, X: 100, Y: 120, Width: 14, Height: 20,
			PDFFieldName: "ssn_1", EmployeeDataSource: "ssn", Transform: TransformSplitSSN, TransformIndex: intPtr(0),
			Label: "SSN Digit 1", Confidence: 0.9},
		{ID: "field_5", Type: KindDate, Page: 2, X: 72, Y: 600, Width: 120, Height: 20,
			PDFFieldName: "start", EmployeeDataSource: "hireDate", Label: "Start Date", Confidence: 0.6,
			NeedsReview: true},
	}
	if diff := cmp.Diff(want, result.Fields); diff != "" {
		t.Errorf("ConvertMappings() mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, []string{"misc"}, result.UnmappedPDFFields)
	assert.Equal(t, []string{"check the SSN boxes"}, result.Warnings)
	assert.NotNil(t, result.MissingEmployeeData)
	assert.Empty(t, result.MissingEmployeeData)
	assert.Equal(t, 2, result.ReviewCount())
}

func TestConvertMappings_ReviewThreshold(t *testing.T) {
	tests := []struct {
		confidence float64
		want       bool
	}{
		{1, false},
		{0.8, false},
		{0.79999, true},
		{0.79, true},
		{0, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%g", tt.confidence), func(t *testing.T) {
			resp := &MappingResponse{Mappings: []Mapping{
				{PDFFieldName: "dob", EmployeeDataSource: "dateOfBirth", Confidence: tt.confidence},
			}}
			result, err := ConvertMappings(sampleFields(), resp)
			require.NoError(t, err)
			require.Len(t, result.Fields, 1)
			assert.Equal(t, tt.want, result.Fields[0].NeedsReview)
		})
	}
}

func TestConvertMappings_UnknownFieldFailsWholeCall(t *testing.T) {
	resp := &MappingResponse{Mappings: []Mapping{
		{PDFFieldName: "employee_first_name", EmployeeDataSource: "firstName", Confidence: 0.9},
		{PDFFieldName: "invented_field", EmployeeDataSource: "lastName", Confidence: 0.9},
	}}

	result, err := ConvertMappings(sampleFields(), resp)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, pdferrors.ErrUnknownPDFField))
	assert.Equal(t, "PDF field not found: invented_field", err.Error())
}

func TestConvertMappings_Defaults(t *testing.T) {
	result, err := ConvertMappings(sampleFields(), &MappingResponse{})
	require.NoError(t, err)

	assert.NotNil(t, result.Fields)
	assert.Empty(t, result.Fields)
	assert.Equal(t, []string{}, result.UnmappedPDFFields)
	assert.Equal(t, []string{}, result.Warnings)
	assert.Equal(t, []string{}, result.MissingEmployeeData)
}

func TestConvertMappings_UsesFirstWidgetGeometry(t *testing.T) {
	fields := []extraction.FieldInfo{
		{Name: "filing_status", Type: extraction.FieldTypeRadio, Page: 1, X: 72, Y: 100, Width: 12, Height: 12},
		{Name: "filing_status", Type: extraction.FieldTypeRadio, Page: 1, X: 150, Y: 100, Width: 12, Height: 12},
	}
	resp := &MappingResponse{Mappings: []Mapping{
		{PDFFieldName: "filing_status", EmployeeDataSource: "taxFilingStatus", Label: "Filing Status", Confidence: 0.9},
	}}

	result, err := ConvertMappings(fields, resp)
	require.NoError(t, err)
	require.Len(t, result.Fields, 1)
	assert.InDelta(t, 72.0, result.Fields[0].X, 1e-9)
	assert.Equal(t, KindText, result.Fields[0].Type)
}

func TestParseMappingResponse(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantErr  bool
		mappings int
	}{
		{"plain object", `{"mappings":[{"pdfFieldName":"a","employeeDataSource":"firstName","transform":null,"label":"A","confidence":0.9}]}`, false, 1},
		{"fenced", "```json\n{\"mappings\":[],\"warnings\":[\"w\"]}\n```", false, 0},
		{"surrounding whitespace", "\n  {\"mappings\":[]}  \n", false, 0},
		{"prose", "Here are the mappings you asked for.", true, 0},
		{"missing mappings", `{"unmappedPDFFields":["a"]}`, true, 0},
		{"wrong shape", `{"mappings":"none"}`, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := ParseMappingResponse(tt.text)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, pdferrors.ErrParse))
				return
			}
			require.NoError(t, err)
			assert.Len(t, resp.Mappings, tt.mappings)
		})
	}
}

func TestParseMappingResponse_NullTransform(t *testing.T) {
	resp, err := ParseMappingResponse(`{"mappings":[{"pdfFieldName":"a","transform":null,"confidence":1}]}`)
	require.NoError(t, err)
	assert.Equal(t, TransformNone, resp.Mappings[0].Transform)

	result, err := ConvertMappings([]extraction.FieldInfo{{Name: "a", Page: 1}}, resp)
	require.NoError(t, err)
	assert.Empty(t, result.Fields[0].Transform)
}

func TestTransformValid(t *testing.T) {
	assert.True(t, TransformNone.Valid())
	assert.True(t, TransformExtractYear.Valid())
	assert.False(t, Transform("reverse").Valid())
}
