// Package schema is the fixed catalog of employee data fields that PDF form fields can be
// mapped onto. Changing the catalog is a code change.
package schema

// DataType is the value type of an employee data field
type DataType string

const (
	TypeString  DataType = "string"
	TypeNumber  DataType = "number"
	TypeDate    DataType = "date"
	TypeBoolean DataType = "boolean"
	TypeArray   DataType = "array"
)

// Category groups catalog entries for display
type Category string

const (
	CategoryPersonal         Category = "personal"
	CategoryContact          Category = "contact"
	CategoryEmployment       Category = "employment"
	CategoryEmergencyContact Category = "emergency_contact"
	CategoryTax              Category = "tax"
	CategoryBanking          Category = "banking"
)

// EmployeeDataField is one entry of the target schema
type EmployeeDataField struct {
	FieldName   string   `json:"fieldName" yaml:"fieldName"`
	Description string   `json:"description" yaml:"description"`
	Type        DataType `json:"type" yaml:"type"`
	Example     string   `json:"example,omitempty" yaml:"example,omitempty"`
}

// DateOfBirth is the field whose mappings always render as dates
const DateOfBirth = "dateOfBirth"

type entry struct {
	category Category
	field    EmployeeDataField
}

var catalog = []entry{
	{CategoryPersonal, EmployeeDataField{"firstName", "First Name", TypeString, "John"}},
	{CategoryPersonal, EmployeeDataField{"middleName", "Middle Name", TypeString, "Michael"}},
	{CategoryPersonal, EmployeeDataField{"lastName", "Last Name", TypeString, "Doe"}},
	{CategoryPersonal, EmployeeDataField{"fullName", "Full Name", TypeString, "John Michael Doe"}},
	{CategoryPersonal, EmployeeDataField{"preferredName", "Preferred Name", TypeString, "Johnny"}},
	{CategoryPersonal, EmployeeDataField{DateOfBirth, "Date of Birth", TypeDate, "1990-01-15"}},
	{CategoryPersonal, EmployeeDataField{"ssn", "Social Security Number", TypeString, "123456789"}},
	{CategoryPersonal, EmployeeDataField{"gender", "Gender", TypeString, "Male"}},
	{CategoryPersonal, EmployeeDataField{"maritalStatus", "Marital Status", TypeString, "Single"}},
	{CategoryPersonal, EmployeeDataField{"citizenship", "Citizenship", TypeString, "US Citizen"}},

	{CategoryContact, EmployeeDataField{"email", "Email Address", TypeArray, "john.doe@example.com"}},
	{CategoryContact, EmployeeDataField{"personalPhone", "Personal Phone", TypeArray, "555-1234"}},
	{CategoryContact, EmployeeDataField{"workPhone", "Work Phone", TypeString, "555-5678"}},
	{CategoryContact, EmployeeDataField{"mailingAddress", "Mailing Address", TypeString, "123 Main St"}},
	{CategoryContact, EmployeeDataField{"mailingCity", "Mailing City", TypeString, "Springfield"}},
	{CategoryContact, EmployeeDataField{"mailingState", "Mailing State", TypeString, "IL"}},
	{CategoryContact, EmployeeDataField{"mailingZip", "Mailing ZIP", TypeString, "62701"}},

	{CategoryEmployment, EmployeeDataField{"badgeNumber", "Badge Number", TypeString, "EMP1001"}},
	{CategoryEmployment, EmployeeDataField{"position", "Job Title", TypeString, "Project Manager"}},
	{CategoryEmployment, EmployeeDataField{"department", "Department", TypeString, "Operations"}},
	{CategoryEmployment, EmployeeDataField{"hireDate", "Hire Date", TypeDate, "2020-03-15"}},
	{CategoryEmployment, EmployeeDataField{"employmentType", "Employment Type", TypeString, "Full-Time"}},

	{CategoryEmergencyContact, EmployeeDataField{"emergencyContactName", "Emergency Contact Name", TypeString, "Jane Doe"}},
	{CategoryEmergencyContact, EmployeeDataField{"emergencyContactPhone", "Emergency Contact Phone", TypeString, "555-9999"}},
	{CategoryEmergencyContact, EmployeeDataField{"emergencyContactRelationship", "Emergency Contact Relationship", TypeString, "Spouse"}},

	{CategoryTax, EmployeeDataField{"taxFilingStatus", "Tax Filing Status", TypeString, "Single"}},
	{CategoryTax, EmployeeDataField{"w4Allowances", "W-4 Allowances", TypeNumber, "1"}},
	{CategoryTax, EmployeeDataField{"additionalFedWithhold", "Additional Federal Withholding", TypeNumber, "50"}},

	{CategoryBanking, EmployeeDataField{"bankName", "Bank Name", TypeString, "First National Bank"}},
	{CategoryBanking, EmployeeDataField{"bankAccountType", "Bank Account Type", TypeString, "Checking"}},
	{CategoryBanking, EmployeeDataField{"bankRouting", "Bank Routing Number", TypeString, "123456789"}},
	{CategoryBanking, EmployeeDataField{"bankAccountNumber", "Bank Account Number", TypeString, "987654321"}},
}

// EmployeeDataSchema returns the catalog in its fixed order. Each call returns a fresh slice.
func EmployeeDataSchema() []EmployeeDataField {
	out := make([]EmployeeDataField, len(catalog))
	for i, e := range catalog {
		out[i] = e.field
	}
	return out
}

// Lookup finds a catalog entry by field name
func Lookup(fieldName string) (EmployeeDataField, bool) {
	for _, e := range catalog {
		if e.field.FieldName == fieldName {
			return e.field, true
		}
	}
	return EmployeeDataField{}, false
}

// CategoryOf returns the category of a catalog entry
func CategoryOf(fieldName string) (Category, bool) {
	for _, e := range catalog {
		if e.field.FieldName == fieldName {
			return e.category, true
		}
	}
	return "", false
}

// Categories returns the categories in catalog order
func Categories() []Category {
	return []Category{
		CategoryPersonal,
		CategoryContact,
		CategoryEmployment,
		CategoryEmergencyContact,
		CategoryTax,
		CategoryBanking,
	}
}

// ByCategory returns the catalog entries of one category in catalog order
func ByCategory(c Category) []EmployeeDataField {
	var out []EmployeeDataField
	for _, e := range catalog {
		if e.category == c {
			out = append(out, e.field)
		}
	}
	return out
}
