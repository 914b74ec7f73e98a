package automap

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/a3tai/mcp-pdf-automap/internal/pdf/extraction"
	"github.com/a3tai/mcp-pdf-automap/internal/schema"
)

// MaxPromptFields bounds how many extracted fields are embedded in one request.
// Fields past the cap are not sent; they are reported as unmapped.
const MaxPromptFields = 20

const promptHeader = `You map the fillable fields of HR and government forms (I-9, W-4, state tax forms, direct deposit forms) onto fields of an employee database.

The PDF form has %d fillable fields. Map each PDF field to the employee data field it should be filled from.

**PDF Fields:**
%s%s

**Employee Data Fields:**
%s
`

const promptInstructions = `
**For each PDF field decide:**
1. Which employee data field supplies its value (use the exact fieldName).
2. Whether the value needs a transform before it is written.
3. How confident you are in the mapping, as a number between 0 and 1.

**Transforms:**
- splitSSN: the form has one box per SSN digit (ssn_1 ... ssn_9); set transformIndex to the 0-based digit.
- extractMonth, extractDay, extractYear: the form splits a date into parts.
- formatDate: the whole date in one box.
- checkbox: the box is checked when the employee value equals checkIfEquals (for example "Single" for maritalStatus).
- uppercase, lowercase: change letter case.
Addresses may be split over several fields (street, city, state, ZIP); map each part separately.

**Answer format:**
Return one JSON object and nothing else:
{
  "mappings": [
    {"pdfFieldName": "employee_first_name", "employeeDataSource": "firstName", "transform": null, "label": "First Name", "confidence": 0.95},
    {"pdfFieldName": "ssn_1", "employeeDataSource": "ssn", "transform": "splitSSN", "transformIndex": 0, "label": "SSN Digit 1", "confidence": 0.9},
    {"pdfFieldName": "marital_status_single", "employeeDataSource": "maritalStatus", "transform": "checkbox", "checkIfEquals": "Single", "label": "Marital Status: Single", "confidence": 0.85}
  ],
  "unmappedPDFFields": ["field_you_could_not_map"],
  "warnings": ["anything the reviewer should know"]
}

**Rules:**
- Only map fields you are confident about; mappings below 0.8 confidence are reviewed by a person.
- Put fields you cannot map in unmappedPDFFields.
- Match semantically: "fname" is firstName, "emp_id" is badgeNumber.
- Use pdfFieldName values exactly as given above.

Return ONLY valid JSON, no other text.`

// BuildPrompt renders the mapping instruction for the text-generation service. Only the first
// MaxPromptFields entries are embedded; a note counts the rest.
func BuildPrompt(fields []extraction.FieldInfo, dataSchema []schema.EmployeeDataField) (string, error) {
	embedded := fields
	if len(embedded) > MaxPromptFields {
		embedded = embedded[:MaxPromptFields]
	}

	fieldsJSON, err := json.MarshalIndent(embedded, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode PDF fields: %w", err)
	}

	schemaJSON, err := json.MarshalIndent(dataSchema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode employee data schema: %w", err)
	}

	note := ""
	if extra := len(fields) - len(embedded); extra > 0 {
		note = fmt.Sprintf("\n\n... and %d more fields", extra)
	}

	var b strings.Builder
	fmt.Fprintf(&b, promptHeader, len(fields), fieldsJSON, note, schemaJSON)
	b.WriteString(promptInstructions)
	return b.String(), nil
}

// Truncated returns the extracted fields that BuildPrompt leaves out
func Truncated(fields []extraction.FieldInfo) []extraction.FieldInfo {
	if len(fields) <= MaxPromptFields {
		return nil
	}
	return fields[MaxPromptFields:]
}

// reportTruncated lists the names of fields that were never sent as unmapped, so a form larger
// than the cap does not lose fields silently
func reportTruncated(result *Result, fields []extraction.FieldInfo) {
	dropped := Truncated(fields)
	if len(dropped) == 0 {
		return
	}

	listed := make(map[string]bool, len(result.Fields)+len(result.UnmappedPDFFields))
	for _, f := range result.Fields {
		listed[f.PDFFieldName] = true
	}
	for _, name := range result.UnmappedPDFFields {
		listed[name] = true
	}

	added := 0
	for _, name := range extraction.Names(dropped) {
		if listed[name] {
			continue
		}
		listed[name] = true
		result.UnmappedPDFFields = append(result.UnmappedPDFFields, name)
		added++
	}
	if added > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%d fields exceeded the %d-field request limit and were not mapped", added, MaxPromptFields))
	}
}
