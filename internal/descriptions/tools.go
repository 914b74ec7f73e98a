package descriptions

import "sort"

// Tool descriptions with practical examples and use cases

const (
	// Discovery
	PDFSearchDirectoryDescription = `Find form PDFs in the forms directory with optional fuzzy filename search.

**When to use:** Locating the form to map, e.g. "find the W-4" or "list every onboarding form".

**Examples:**
• List all forms: call with no arguments
• Fuzzy search: "query": "direct deposit" matches direct_deposit_2024.pdf

**Best practices:** Paths returned here can be passed unchanged to every other tool.`

	PDFValidateFileDescription = `Verify a PDF is readable and report its page count before extracting or mapping it.

**When to use:** Before mapping a user-supplied or newly downloaded form.

**Best practices:** A file that fails validation will also fail extraction, so check this first in batch workflows.`

	// Extraction
	PDFExtractFieldsDescription = `List the fillable AcroForm fields of a PDF with their page and geometry.

**When to use:** Inspecting a form before mapping, or debugging why a field was not mapped.

**What you get:** One entry per widget with name, type (text, checkbox, radio, dropdown), 1-based
page, and x/y/width/height in PDF points measured from the TOP-LEFT corner of the page, plus the
size of every page.

**Best practices:** A field that appears several times (one entry per widget) is a single logical
field rendered in several places.`

	PDFEmployeeSchemaDescription = `Return the fixed catalog of employee data fields a form can be mapped onto.

**When to use:** Understanding what employeeDataSource values a mapping can contain, or building a
record for pdf_resolve_values.

**Arguments:** Optional "category" (personal, contact, employment, emergency_contact, tax, banking).`

	// Mapping
	PDFAutoMapDescription = `Automatically map every fillable field of a form onto the employee data schema.

**When to use:** Setting up a new form for automatic filling.

**What you get:** mapped fields with confidence scores and needsReview (confidence below 0.8),
the PDF fields that could not be mapped, and warnings. Transforms describe how a value is derived,
e.g. splitSSN with transformIndex for one-digit SSN boxes, extractMonth for a date split across
boxes, checkbox with checkIfEquals for choice boxes.

**Examples:**
• Map a W-4: "path": "w4_2024.pdf"
• Map and save for reuse: "path": "w4_2024.pdf", "template": "W-4 2024"

**Best practices:** Review every needsReview mapping. Only the first 20 fields are sent to the
mapping service; the rest are listed in unmappedPDFFields with a warning.`

	PDFOverlayDescription = `Convert mapped fields into percentage boxes positioned over the pages of a form.

**When to use:** Drawing highlight or signature boxes over a page image in a viewer at any zoom.

**What you get:** One overlay per mapped field with left/top/width/height as percentages of its
page (top-left origin), plus the size of every page in points. Page sizes come from the PDF itself.

**Arguments:** "path" of the form, optional "template" to use a saved mapping instead of mapping
again.`

	PDFResolveValuesDescription = `Compute the value each PDF field receives from an employee record.

**When to use:** Filling a form from a saved template, or previewing what a mapping produces.

**Arguments:** "employee" (a JSON object keyed by employee data field names, e.g.
{"firstName":"Ada","ssn":"123-45-6789","dateOfBirth":"1990-01-15"}) and either "template" (id or
name of a saved mapping) or "path" (a form to map first).

**What you get:** A map of PDF field name to text value; checkboxes resolve to "true"/"false".`

	// Templates
	PDFTemplateListDescription = `List saved mapping templates, most recently updated first, with their field and review counts.`

	PDFTemplateGetDescription = `Load a saved mapping template by id or name, as JSON or YAML.`

	PDFTemplateDeleteDescription = `Delete a saved mapping template by id.`

	// Server
	PDFServerInfoDescription = `Get server information, the forms directory contents, available tools and a usage guide.

**When to use:** First call in a session, to discover what forms are available and how the tools fit together.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	"pdf_search_directory": PDFSearchDirectoryDescription,
	"pdf_validate_file":    PDFValidateFileDescription,
	"pdf_extract_fields":   PDFExtractFieldsDescription,
	"pdf_employee_schema":  PDFEmployeeSchemaDescription,
	"pdf_automap":          PDFAutoMapDescription,
	"pdf_overlay":          PDFOverlayDescription,
	"pdf_resolve_values":   PDFResolveValuesDescription,
	"pdf_template_list":    PDFTemplateListDescription,
	"pdf_template_get":     PDFTemplateGetDescription,
	"pdf_template_delete":  PDFTemplateDeleteDescription,
	"pdf_server_info":      PDFServerInfoDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns the sorted names of all described tools
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
