// Package transform computes the value a mapped PDF field receives from an employee record.
package transform

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/a3tai/mcp-pdf-automap/internal/automap"
)

// Checkbox values written into checkbox fields
const (
	Checked   = "true"
	Unchecked = "false"
)

// Record is one employee's data keyed by schema field name. Array-typed fields may hold a
// []string or []any; their first element is used.
type Record map[string]any

// dateLayouts are tried in order when a date is stored as a string
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
}

// Resolve returns the text to write into the field. A missing source value resolves to "" (or
// "false" for checkbox transforms) without error; a value the transform cannot interpret is an
// error.
func Resolve(field automap.MappedField, record Record) (string, error) {
	raw, ok := record[field.EmployeeDataSource]
	value := ""
	if ok {
		value = stringify(raw)
	}

	switch field.Transform {
	case automap.TransformNone:
		return value, nil
	case automap.TransformUppercase:
		return strings.ToUpper(value), nil
	case automap.TransformLowercase:
		return strings.ToLower(value), nil
	case automap.TransformCheckbox:
		if value != "" && strings.EqualFold(strings.TrimSpace(value), strings.TrimSpace(field.CheckIfEquals)) {
			return Checked, nil
		}
		return Unchecked, nil
	case automap.TransformSplitSSN:
		return ssnDigit(value, field.TransformIndex)
	case automap.TransformExtractMonth, automap.TransformExtractDay, automap.TransformExtractYear,
		automap.TransformFormatDate:
		if value == "" {
			return "", nil
		}
		t, err := parseDate(raw)
		if err != nil {
			return "", fmt.Errorf("field %s: %w", field.PDFFieldName, err)
		}
		return formatDatePart(t, field.Transform), nil
	default:
		return "", fmt.Errorf("field %s: unknown transform %q", field.PDFFieldName, field.Transform)
	}
}

// ResolveAll resolves every field and returns the values keyed by PDF field name. When several
// widgets share a PDF field name the first resolved value wins.
func ResolveAll(fields []automap.MappedField, record Record) (map[string]string, error) {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		if _, done := out[f.PDFFieldName]; done {
			continue
		}
		v, err := Resolve(f, record)
		if err != nil {
			return nil, err
		}
		out[f.PDFFieldName] = v
	}
	return out, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []string:
		if len(t) == 0 {
			return ""
		}
		return t[0]
	case []any:
		if len(t) == 0 {
			return ""
		}
		return stringify(t[0])
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return t.Format("2006-01-02")
	default:
		return fmt.Sprint(t)
	}
}

func ssnDigit(value string, index *int) (string, error) {
	if value == "" {
		return "", nil
	}
	if index == nil {
		return "", fmt.Errorf("splitSSN requires a digit index")
	}

	digits := make([]rune, 0, 9)
	for _, r := range value {
		if unicode.IsDigit(r) {
			digits = append(digits, r)
		}
	}
	if *index < 0 || *index >= len(digits) {
		return "", fmt.Errorf("SSN digit index %d out of range for %d digits", *index, len(digits))
	}
	return string(digits[*index]), nil
}

func parseDate(raw any) (time.Time, error) {
	switch t := raw.(type) {
	case time.Time:
		return t, nil
	case []string, []any:
		return parseDate(stringify(t))
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range dateLayouts {
			if d, err := time.Parse(layout, s); err == nil {
				return d, nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized date %q", t)
	default:
		return time.Time{}, fmt.Errorf("unsupported date value of type %T", raw)
	}
}

func formatDatePart(t time.Time, tr automap.Transform) string {
	switch tr {
	case automap.TransformExtractMonth:
		return fmt.Sprintf("%02d", int(t.Month()))
	case automap.TransformExtractDay:
		return fmt.Sprintf("%02d", t.Day())
	case automap.TransformExtractYear:
		return fmt.Sprintf("%04d", t.Year())
	default:
		return t.Format("01/02/2006")
	}
}
