// Package report renders mapping results for human review: an XLSX workbook with one row per
// mapped field, and YAML.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/xuri/excelize/v2"

	"github.com/a3tai/mcp-pdf-automap/internal/automap"
)

// Sheet names of the review workbook
const (
	SheetMappings = "Mappings"
	SheetUnmapped = "Unmapped"
	SheetWarnings = "Warnings"
)

var mappingHeader = []string{
	"ID", "PDF Field", "Employee Data", "Label", "Type", "Transform", "Transform Index",
	"Check If Equals", "Confidence", "Needs Review", "Page", "X", "Y", "Width", "Height",
}

// WriteXLSX writes the review workbook for result to w
func WriteXLSX(w io.Writer, result *automap.Result) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetMappings); err != nil {
		return fmt.Errorf("failed to name mappings sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	reviewStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFF2CC"}},
	})
	if err != nil {
		return fmt.Errorf("failed to create review style: %w", err)
	}

	header := make([]interface{}, len(mappingHeader))
	for i, h := range mappingHeader {
		header[i] = h
	}
	if err := writeRow(f, SheetMappings, 1, header); err != nil {
		return err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(mappingHeader))
	if err := f.SetCellStyle(SheetMappings, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, m := range result.Fields {
		row := i + 2
		if err := writeRow(f, SheetMappings, row, mappingRow(m)); err != nil {
			return err
		}
		if m.NeedsReview {
			if err := f.SetCellStyle(SheetMappings, fmt.Sprintf("A%d", row), fmt.Sprintf("%s%d", lastCol, row), reviewStyle); err != nil {
				return fmt.Errorf("failed to style review row: %w", err)
			}
		}
	}
	if err := f.SetColWidth(SheetMappings, "B", "D", 28); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}

	if err := writeList(f, SheetUnmapped, "PDF Field", result.UnmappedPDFFields, headerStyle); err != nil {
		return err
	}
	if err := writeList(f, SheetWarnings, "Warning", result.Warnings, headerStyle); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func mappingRow(m automap.MappedField) []interface{} {
	index := ""
	if m.TransformIndex != nil {
		index = strconv.Itoa(*m.TransformIndex)
	}
	review := "no"
	if m.NeedsReview {
		review = "yes"
	}
	return []interface{}{
		m.ID, m.PDFFieldName, m.EmployeeDataSource, m.Label, string(m.Type), string(m.Transform), index,
		m.CheckIfEquals, m.Confidence, review, m.Page, m.X, m.Y, m.Width, m.Height,
	}
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func writeList(f *excelize.File, sheet, header string, values []string, headerStyle int) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create %s sheet: %w", sheet, err)
	}
	if err := f.SetCellValue(sheet, "A1", header); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "A1", headerStyle); err != nil {
		return err
	}
	for i, v := range values {
		if err := f.SetCellValue(sheet, fmt.Sprintf("A%d", i+2), v); err != nil {
			return err
		}
	}
	return nil
}

// ReadXLSX reads the Mappings sheet of a review workbook back into mapped fields, so edits made
// in a spreadsheet can be saved to a template. Rows are matched by header name, and NeedsReview
// is derived from the Confidence cell.
func ReadXLSX(r io.Reader) ([]automap.MappedField, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(SheetMappings)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s sheet: %w", SheetMappings, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s sheet is empty", SheetMappings)
	}

	col := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		col[strings.TrimSpace(h)] = i
	}
	for _, h := range []string{"PDF Field", "Employee Data"} {
		if _, ok := col[h]; !ok {
			return nil, fmt.Errorf("%s sheet is missing the %q column", SheetMappings, h)
		}
	}

	fields := make([]automap.MappedField, 0, len(rows)-1)
	for n, row := range rows[1:] {
		line := n + 2
		cell := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		if cell("PDF Field") == "" {
			continue
		}

		m := automap.MappedField{
			ID:                 cell("ID"),
			PDFFieldName:       cell("PDF Field"),
			EmployeeDataSource: cell("Employee Data"),
			Label:              cell("Label"),
			Type:               automap.FieldKind(cell("Type")),
			Transform:          automap.Transform(cell("Transform")),
			CheckIfEquals:      cell("Check If Equals"),
		}
		if !m.Transform.Valid() {
			return nil, fmt.Errorf("row %d: unknown transform %q", line, m.Transform)
		}
		if v := cell("Transform Index"); v != "" {
			i, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid transform index %q", line, v)
			}
			m.TransformIndex = &i
		}

		numbers := []struct {
			name string
			dst  *float64
		}{
			{"Confidence", &m.Confidence}, {"X", &m.X}, {"Y", &m.Y}, {"Width", &m.Width}, {"Height", &m.Height},
		}
		for _, num := range numbers {
			if v := cell(num.name); v != "" {
				if *num.dst, err = strconv.ParseFloat(v, 64); err != nil {
					return nil, fmt.Errorf("row %d: invalid %s %q", line, num.name, v)
				}
			}
		}
		// the Needs Review column is informational; the flag always follows the confidence
		m.NeedsReview = m.Confidence < automap.ReviewThreshold
		if v := cell("Page"); v != "" {
			if m.Page, err = strconv.Atoi(v); err != nil {
				return nil, fmt.Errorf("row %d: invalid page %q", line, v)
			}
		}

		fields = append(fields, m)
	}
	return fields, nil
}

// YAML renders any result, template or schema value as YAML
func YAML(v interface{}) ([]byte, error) {
	out, err := yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to render YAML: %w", err)
	}
	return out, nil
}
