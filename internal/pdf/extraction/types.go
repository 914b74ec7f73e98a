package extraction

// FieldType is the capability class of a fillable field
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeCheckbox FieldType = "checkbox"
	FieldTypeRadio    FieldType = "radio"
	FieldTypeDropdown FieldType = "dropdown"
)

// FieldInfo describes one widget of one fillable field.
//
// Geometry is in PDF points, page-relative, with the origin at the TOP-LEFT corner of the page.
// One logical field with several widgets produces several FieldInfo entries sharing a Name.
type FieldInfo struct {
	Name         string    `json:"name"`
	Type         FieldType `json:"type"`
	Page         int       `json:"page"` // 1-indexed
	X            float64   `json:"x"`
	Y            float64   `json:"y"`
	Width        float64   `json:"width"`
	Height       float64   `json:"height"`
	DefaultValue string    `json:"defaultValue,omitempty"`
	Options      []string  `json:"options,omitempty"` // radio and dropdown only
}

// Rect is a rectangle in native PDF point space, origin at the BOTTOM-LEFT corner of the page
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PageSize is the MediaBox size of one page in points
type PageSize struct {
	Page   int     `json:"page"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewRect builds a Rect from two opposite corners in any order, as found in a /Rect array
func NewRect(x1, y1, x2, y2 float64) Rect {
	if x2 < x1 {
		x1, x2 = x2, x1
	}
	if y2 < y1 {
		y1, y2 = y2, y1
	}
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// ToTopLeft converts a bottom-left-origin rectangle into the top-left-origin frame of a page
// of the given height. X, Width and Height are unchanged.
func ToTopLeft(r Rect, pageHeight float64) Rect {
	return Rect{
		X:      r.X,
		Y:      pageHeight - r.Y - r.Height,
		Width:  r.Width,
		Height: r.Height,
	}
}

// Names returns the distinct field names in first-seen order
func Names(fields []FieldInfo) []string {
	seen := make(map[string]bool, len(fields))
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		if seen[f.Name] {
			continue
		}
		seen[f.Name] = true
		names = append(names, f.Name)
	}
	return names
}
