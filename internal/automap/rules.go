package automap

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/a3tai/mcp-pdf-automap/internal/pdf/extraction"
	"github.com/a3tai/mcp-pdf-automap/internal/schema"
)

// Confidence assigned by each rule
const (
	ConfidenceExact   = 0.95
	ConfidenceAlias   = 0.9
	ConfidencePattern = 0.85
	ConfidencePartial = 0.7
)

var (
	camelBoundaryRe = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	separatorRe     = regexp.MustCompile(`[^a-z0-9]+`)
	ssnDigitRe      = regexp.MustCompile(`^(?:ssn|social_security(?:_number)?|soc_sec(?:_no)?)_?([1-9])$`)
)

// aliases maps normalized PDF field names onto schema field names
var aliases = map[string]string{
	"fname":                   "firstName",
	"first":                   "firstName",
	"given_name":              "firstName",
	"employee_first_name":     "firstName",
	"mname":                   "middleName",
	"middle_initial":          "middleName",
	"mi":                      "middleName",
	"lname":                   "lastName",
	"last":                    "lastName",
	"surname":                 "lastName",
	"family_name":             "lastName",
	"employee_last_name":      "lastName",
	"name":                    "fullName",
	"employee_name":           "fullName",
	"nickname":                "preferredName",
	"dob":                     "dateOfBirth",
	"birth_date":              "dateOfBirth",
	"birthdate":               "dateOfBirth",
	"social_security_number":  "ssn",
	"social_security":         "ssn",
	"ssn_number":              "ssn",
	"sex":                     "gender",
	"marital":                 "maritalStatus",
	"e_mail":                  "email",
	"email_address":           "email",
	"phone":                   "personalPhone",
	"telephone":               "personalPhone",
	"home_phone":              "personalPhone",
	"cell_phone":              "personalPhone",
	"mobile":                  "personalPhone",
	"work_telephone":          "workPhone",
	"address":                 "mailingAddress",
	"street":                  "mailingAddress",
	"street_address":          "mailingAddress",
	"address_line_1":          "mailingAddress",
	"city":                    "mailingCity",
	"city_or_town":            "mailingCity",
	"state":                   "mailingState",
	"zip":                     "mailingZip",
	"zip_code":                "mailingZip",
	"postal_code":             "mailingZip",
	"emp_id":                  "badgeNumber",
	"employee_id":             "badgeNumber",
	"employee_number":         "badgeNumber",
	"badge":                   "badgeNumber",
	"title":                   "position",
	"job_title":               "position",
	"dept":                    "department",
	"start_date":              "hireDate",
	"date_of_hire":            "hireDate",
	"emergency_contact":       "emergencyContactName",
	"emergency_phone":         "emergencyContactPhone",
	"relationship":            "emergencyContactRelationship",
	"filing_status":           "taxFilingStatus",
	"allowances":              "w4Allowances",
	"total_allowances":        "w4Allowances",
	"additional_withholding":  "additionalFedWithhold",
	"extra_withholding":       "additionalFedWithhold",
	"bank":                    "bankName",
	"financial_institution":   "bankName",
	"account_type":            "bankAccountType",
	"routing":                 "bankRouting",
	"routing_number":          "bankRouting",
	"aba":                     "bankRouting",
	"account_number":          "bankAccountNumber",
	"acct_no":                 "bankAccountNumber",
	"account":                 "bankAccountNumber",
	"bank_account":            "bankAccountNumber",
	"checking_account_number": "bankAccountNumber",
}

// datePart describes one suffix that selects part of a date
type datePart struct {
	transform Transform
	label     string
}

var dateParts = map[string]datePart{
	"month": {TransformExtractMonth, "Month"},
	"mm":    {TransformExtractMonth, "Month"},
	"day":   {TransformExtractDay, "Day"},
	"dd":    {TransformExtractDay, "Day"},
	"year":  {TransformExtractYear, "Year"},
	"yyyy":  {TransformExtractYear, "Year"},
	"yy":    {TransformExtractYear, "Year"},
}

// dateSources are token sets identifying which date a split date box belongs to
var dateSources = []struct {
	tokens []string
	field  string
}{
	{[]string{"dob"}, "dateOfBirth"},
	{[]string{"birth"}, "dateOfBirth"},
	{[]string{"hire"}, "hireDate"},
	{[]string{"start"}, "hireDate"},
}

// choiceRules map a token found on a checkbox onto the schema value that checks it
var choiceRules = []struct {
	tokens []string
	field  string
	equals string
}{
	{[]string{"head", "household"}, "taxFilingStatus", "Head of Household"},
	{[]string{"married", "jointly"}, "taxFilingStatus", "Married Filing Jointly"},
	{[]string{"marital", "single"}, "maritalStatus", "Single"},
	{[]string{"marital", "married"}, "maritalStatus", "Married"},
	{[]string{"single"}, "taxFilingStatus", "Single"},
	{[]string{"married"}, "taxFilingStatus", "Married"},
	{[]string{"checking"}, "bankAccountType", "Checking"},
	{[]string{"savings"}, "bankAccountType", "Savings"},
	{[]string{"full", "time"}, "employmentType", "Full-Time"},
	{[]string{"part", "time"}, "employmentType", "Part-Time"},
	{[]string{"male"}, "gender", "Male"},
	{[]string{"female"}, "gender", "Female"},
}

// RuleMapper matches PDF field names against the schema without any network access.
// Every distinct field name is considered; there is no prompt cap.
type RuleMapper struct {
	debugMode bool
}

// NewRuleMapper creates a new offline mapper
func NewRuleMapper(debugMode bool) *RuleMapper {
	return &RuleMapper{debugMode: debugMode}
}

// MapFields builds a MappingResponse from name rules and converts it like a remote answer
func (r *RuleMapper) MapFields(_ context.Context, fields []extraction.FieldInfo, dataSchema []schema.EmployeeDataField) (*Result, error) {
	known := make(map[string]schema.EmployeeDataField, len(dataSchema))
	byNormalized := make(map[string]string, len(dataSchema))
	for _, f := range dataSchema {
		known[f.FieldName] = f
		byNormalized[NormalizeFieldName(f.FieldName)] = f.FieldName
	}

	kinds := make(map[string]extraction.FieldType, len(fields))
	for _, f := range fields {
		if _, ok := kinds[f.Name]; !ok {
			kinds[f.Name] = f.Type
		}
	}

	resp := &MappingResponse{}
	sources := make(map[string]int)
	for _, name := range extraction.Names(fields) {
		m, ok := r.match(name, kinds[name], known, byNormalized)
		if !ok {
			resp.UnmappedPDFFields = append(resp.UnmappedPDFFields, name)
			continue
		}
		resp.Mappings = append(resp.Mappings, m)
		if m.Transform == TransformNone {
			sources[m.EmployeeDataSource]++
		}
	}

	for _, f := range dataSchema {
		if n := sources[f.FieldName]; n > 1 {
			resp.Warnings = append(resp.Warnings, fmt.Sprintf("%d PDF fields map to %s", n, f.FieldName))
		}
	}

	if r.debugMode {
		log.Printf("[automap] rule mapper matched %d of %d fields", len(resp.Mappings), len(kinds))
	}

	return ConvertMappings(fields, resp)
}

func (r *RuleMapper) match(name string, kind extraction.FieldType, known map[string]schema.EmployeeDataField,
	byNormalized map[string]string) (Mapping, bool) {
	normalized := NormalizeFieldName(name)
	tokens := strings.Split(normalized, "_")

	mapping := func(source string, confidence float64) Mapping {
		return Mapping{
			PDFFieldName:       name,
			EmployeeDataSource: source,
			Label:              known[source].Description,
			Confidence:         confidence,
		}
	}

	if kind == extraction.FieldTypeCheckbox {
		for _, rule := range choiceRules {
			if _, ok := known[rule.field]; ok && hasAll(tokens, rule.tokens) {
				m := mapping(rule.field, ConfidencePattern)
				m.Transform = TransformCheckbox
				m.CheckIfEquals = rule.equals
				m.Label = fmt.Sprintf("%s: %s", known[rule.field].Description, rule.equals)
				return m, true
			}
		}
	}

	if sm := ssnDigitRe.FindStringSubmatch(normalized); sm != nil {
		if _, ok := known["ssn"]; ok {
			digit, _ := strconv.Atoi(sm[1])
			index := digit - 1
			m := mapping("ssn", ConfidencePattern)
			m.Transform = TransformSplitSSN
			m.TransformIndex = &index
			m.Label = fmt.Sprintf("SSN Digit %d", digit)
			return m, true
		}
	}

	if part, ok := dateParts[tokens[len(tokens)-1]]; ok && len(tokens) > 1 {
		for _, src := range dateSources {
			if _, ok := known[src.field]; ok && hasAll(tokens[:len(tokens)-1], src.tokens) {
				m := mapping(src.field, ConfidencePattern)
				m.Transform = part.transform
				m.Label = fmt.Sprintf("%s (%s)", known[src.field].Description, part.label)
				return m, true
			}
		}
	}

	if source, ok := byNormalized[normalized]; ok {
		return mapping(source, ConfidenceExact), true
	}

	if source, ok := aliases[normalized]; ok {
		if _, ok := known[source]; ok {
			return mapping(source, ConfidenceAlias), true
		}
	}

	// longest schema name whose tokens all appear in the field name
	best, bestLen := "", 0
	for key, source := range byNormalized {
		parts := strings.Split(key, "_")
		if len(parts) > bestLen && hasAll(tokens, parts) {
			best, bestLen = source, len(parts)
		} else if len(parts) == bestLen && hasAll(tokens, parts) && source < best {
			best = source
		}
	}
	if best != "" {
		return mapping(best, ConfidencePartial), true
	}

	return Mapping{}, false
}

// NormalizeFieldName folds a field name into lower snake case: camel case is split, accents
// are removed and runs of other characters become a single underscore.
func NormalizeFieldName(name string) string {
	s := camelBoundaryRe.ReplaceAllString(strings.TrimSpace(name), "${1}_${2}")
	s = strings.ToLower(stripDiacritics(s))
	s = separatorRe.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

func stripDiacritics(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func hasAll(tokens, want []string) bool {
	for _, w := range want {
		found := false
		for _, t := range tokens {
			if t == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
