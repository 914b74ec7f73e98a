package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/a3tai/mcp-pdf-automap/internal/automap"
)

func sampleResult() *automap.Result {
	index := 4
	return &automap.Result{
		Fields: []automap.MappedField{
			{ID: "field_1", Type: automap.KindText, Page: 1, X: 72, Y: 50, Width: 200, Height: 20,
				PDFFieldName: "fname", EmployeeDataSource: "firstName", Label: "First Name", Confidence: 0.95},
			{ID: "field_2", Type: automap.KindText, Page: 2, X: 300.5, Y: 120, Width: 14, Height: 20,
				PDFFieldName: "ssn_5", EmployeeDataSource: "ssn", Transform: automap.TransformSplitSSN,
				TransformIndex: &index, Label: "SSN Digit 5", Confidence: 0.75, NeedsReview: true},
			{ID: "field_3", Type: automap.KindCheckbox, Page: 2, X: 72, Y: 400, Width: 12, Height: 12,
				PDFFieldName: "single", EmployeeDataSource: "maritalStatus", Transform: automap.TransformCheckbox,
				CheckIfEquals: "Single", Label: "Single", Confidence: 0.85},
		},
		UnmappedPDFFields:   []string{"misc_1", "misc_2"},
		MissingEmployeeData: []string{},
		Warnings:            []string{"SSN boxes are small"},
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleResult()))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetMappings, SheetUnmapped, SheetWarnings}, f.GetSheetList())

	rows, err := f.GetRows(SheetMappings)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, mappingHeader, rows[0])
	assert.Equal(t, "ssn_5", rows[2][1])
	assert.Equal(t, "4", rows[2][6])
	assert.Equal(t, "yes", rows[2][9])

	unmapped, err := f.GetRows(SheetUnmapped)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"PDF Field"}, {"misc_1"}, {"misc_2"}}, unmapped)

	warnings, err := f.GetRows(SheetWarnings)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Warning"}, {"SSN boxes are small"}}, warnings)

	// review rows are highlighted, others are not
	reviewStyle, err := f.GetCellStyle(SheetMappings, "A3")
	require.NoError(t, err)
	plainStyle, err := f.GetCellStyle(SheetMappings, "A2")
	require.NoError(t, err)
	assert.NotEqual(t, reviewStyle, plainStyle)
}

func TestXLSXRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := sampleResult()
	require.NoError(t, WriteXLSX(&buf, want))

	got, err := ReadXLSX(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	if diff := cmp.Diff(want.Fields, got); diff != "" {
		t.Errorf("ReadXLSX() mismatch (-want +got):\n%s", diff)
	}
}

func TestReadXLSX_ReviewFollowsConfidence(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleResult()))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	// Confidence is column I; rows 2 and 3 hold field_1 and field_2
	require.NoError(t, f.SetCellValue(SheetMappings, "I2", 0.4))
	require.NoError(t, f.SetCellValue(SheetMappings, "I3", 0.79999))
	require.NoError(t, f.SetCellValue(SheetMappings, "J4", "yes"))
	var edited bytes.Buffer
	require.NoError(t, f.Write(&edited))

	fields, err := ReadXLSX(&edited)
	require.NoError(t, err)
	require.Len(t, fields, 3)

	tests := []struct {
		id          string
		confidence  float64
		needsReview bool
	}{
		{"field_1", 0.4, true},
		{"field_2", 0.79999, true},
		{"field_3", 0.85, false},
	}
	for i, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.id, fields[i].ID)
			assert.InDelta(t, tt.confidence, fields[i].Confidence, 1e-9)
			assert.Equal(t, tt.needsReview, fields[i].NeedsReview)
		})
	}
}

func TestReadXLSX_Errors(t *testing.T) {
	build := func(t *testing.T, rows ...[]interface{}) *bytes.Buffer {
		t.Helper()
		f := excelize.NewFile()
		defer f.Close()
		require.NoError(t, f.SetSheetName("Sheet1", SheetMappings))
		for i, r := range rows {
			cell, _ := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, f.SetSheetRow(SheetMappings, cell, &r))
		}
		var buf bytes.Buffer
		require.NoError(t, f.Write(&buf))
		return &buf
	}

	tests := []struct {
		name string
		rows [][]interface{}
		want string
	}{
		{"empty sheet", nil, "is empty"},
		{"missing column", [][]interface{}{{"ID", "PDF Field"}}, `"Employee Data"`},
		{"bad transform", [][]interface{}{{"PDF Field", "Employee Data", "Transform"}, {"a", "ssn", "rot13"}}, "unknown transform"},
		{"bad confidence", [][]interface{}{{"PDF Field", "Employee Data", "Confidence"}, {"a", "ssn", "high"}}, "invalid Confidence"},
		{"bad page", [][]interface{}{{"PDF Field", "Employee Data", "Page"}, {"a", "ssn", "one"}}, "invalid page"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadXLSX(build(t, tt.rows...))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := ReadXLSX(strings.NewReader("not a workbook"))
	assert.Error(t, err)
}

func TestReadXLSX_SkipsBlankRows(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", SheetMappings))
	require.NoError(t, f.SetSheetRow(SheetMappings, "A1", &[]interface{}{"PDF Field", "Employee Data"}))
	require.NoError(t, f.SetSheetRow(SheetMappings, "A3", &[]interface{}{"fname", "firstName"}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	fields, err := ReadXLSX(&buf)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "firstName", fields[0].EmployeeDataSource)
}

func TestYAML(t *testing.T) {
	out, err := YAML(sampleResult())
	require.NoError(t, err)

	text := string(out)
	assert.Contains(t, text, "pdfFieldName: fname")
	assert.Contains(t, text, "transformIndex: 4")
	assert.Contains(t, text, "unmappedPDFFields:")

	var back automap.Result
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Len(t, back.Fields, 3)
	assert.Equal(t, automap.TransformCheckbox, back.Fields[2].Transform)
}
