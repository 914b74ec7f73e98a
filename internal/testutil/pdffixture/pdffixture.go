// Package pdffixture writes small, valid AcroForm PDFs with known geometry for tests.
package pdffixture

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
)

// Page is one page of the fixture, sized by its MediaBox
type Page struct {
	Width  float64
	Height float64
}

// Widget is one on-page placement of a field. Rect is [llx lly urx ury] in points.
//
// Page is 1-indexed. Page 0 produces a widget whose /P points at a non-page object, so the
// page cannot be resolved. OmitP leaves /P out and lists the widget in the page's /Annots.
type Widget struct {
	Page    int
	Rect    [4]float64
	OnState string
	OmitP   bool
}

// Field is one node of the AcroForm field tree
type Field struct {
	Name    string
	FT      string // Tx, Btn, Ch, Sig; empty to inherit
	Flags   int
	Value   string // Tx/Ch: string value; Btn: state name
	Values  []string
	Options []string
	Widgets []Widget
	// Merged writes a single widget into the field dictionary itself
	Merged bool
	Kids   []Field
}

// Spec describes a whole fixture document
type Spec struct {
	Pages  []Page
	Fields []Field
	// NoAcroForm omits the AcroForm dictionary from the catalog
	NoAcroForm bool
}

type builder struct {
	objs       []string
	pageNrs    []int
	pageAnnots map[int][]int
	apStream   int
}

func (b *builder) alloc() int {
	b.objs = append(b.objs, "")
	return len(b.objs)
}

func (b *builder) set(nr int, body string) {
	b.objs[nr-1] = body
}

// Build renders spec as PDF bytes with a correct cross-reference table
func Build(spec Spec) []byte {
	b := &builder{pageAnnots: make(map[int][]int)}

	catalogNr := b.alloc()
	pagesNr := b.alloc()
	for range spec.Pages {
		b.pageNrs = append(b.pageNrs, b.alloc())
	}
	b.apStream = b.alloc()
	b.set(b.apStream, "<< /Length 3 >>\nstream\nq Q\nendstream")

	var acroNr int
	if !spec.NoAcroForm {
		acroNr = b.alloc()
		fieldNrs := make([]int, 0, len(spec.Fields))
		for _, f := range spec.Fields {
			fieldNrs = append(fieldNrs, b.writeField(f, 0))
		}
		b.set(acroNr, fmt.Sprintf("<< /Fields [%s] /NeedAppearances true >>", refs(fieldNrs)))
	}

	for i, p := range spec.Pages {
		annots := ""
		if nrs := b.pageAnnots[i+1]; len(nrs) > 0 {
			annots = fmt.Sprintf(" /Annots [%s]", refs(nrs))
		}
		b.set(b.pageNrs[i], fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox [0 0 %s %s] /Resources << >>%s >>",
			pagesNr, num(p.Width), num(p.Height), annots))
	}
	b.set(pagesNr, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", refs(b.pageNrs), len(b.pageNrs)))

	catalog := fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R", pagesNr)
	if acroNr != 0 {
		catalog += fmt.Sprintf(" /AcroForm %d 0 R", acroNr)
	}
	b.set(catalogNr, catalog+" >>")

	return b.render(catalogNr)
}

func (b *builder) writeField(f Field, parentNr int) int {
	nr := b.alloc()

	var parts []string
	if f.Name != "" {
		parts = append(parts, "/T "+str(f.Name))
	}
	if f.FT != "" {
		parts = append(parts, "/FT /"+f.FT)
	}
	if f.Flags != 0 {
		parts = append(parts, fmt.Sprintf("/Ff %d", f.Flags))
	}
	if v := valueEntry(f); v != "" {
		parts = append(parts, "/V "+v)
	}
	if len(f.Options) > 0 {
		opts := make([]string, len(f.Options))
		for i, o := range f.Options {
			opts[i] = str(o)
		}
		parts = append(parts, "/Opt ["+strings.Join(opts, " ")+"]")
	}
	if parentNr != 0 {
		parts = append(parts, fmt.Sprintf("/Parent %d 0 R", parentNr))
	}

	if f.Merged && len(f.Widgets) == 1 {
		parts = append(parts, b.widgetEntries(f.Widgets[0], nr)...)
		b.set(nr, "<< "+strings.Join(parts, " ")+" >>")
		return nr
	}

	var kids []int
	for _, child := range f.Kids {
		kids = append(kids, b.writeField(child, nr))
	}
	for _, w := range f.Widgets {
		wNr := b.alloc()
		entries := append([]string{fmt.Sprintf("/Parent %d 0 R", nr)}, b.widgetEntries(w, wNr)...)
		b.set(wNr, "<< "+strings.Join(entries, " ")+" >>")
		kids = append(kids, wNr)
	}
	if len(kids) > 0 {
		parts = append(parts, "/Kids ["+refs(kids)+"]")
	}

	b.set(nr, "<< "+strings.Join(parts, " ")+" >>")
	return nr
}

func (b *builder) widgetEntries(w Widget, widgetNr int) []string {
	entries := []string{
		"/Type /Annot",
		"/Subtype /Widget",
		fmt.Sprintf("/Rect [%s %s %s %s]", num(w.Rect[0]), num(w.Rect[1]), num(w.Rect[2]), num(w.Rect[3])),
	}

	switch {
	case w.Page == 0:
		// catalog is object 1, never a page
		entries = append(entries, "/P 1 0 R")
	case w.OmitP:
		b.pageAnnots[w.Page] = append(b.pageAnnots[w.Page], widgetNr)
	default:
		entries = append(entries, fmt.Sprintf("/P %d 0 R", b.pageNrs[w.Page-1]))
		b.pageAnnots[w.Page] = append(b.pageAnnots[w.Page], widgetNr)
	}

	if w.OnState != "" {
		entries = append(entries, fmt.Sprintf("/AP << /N << /%s %d 0 R /Off %d 0 R >> >>", w.OnState, b.apStream, b.apStream))
	}
	return entries
}

func valueEntry(f Field) string {
	if len(f.Values) > 0 {
		vals := make([]string, len(f.Values))
		for i, v := range f.Values {
			vals[i] = str(v)
		}
		return "[" + strings.Join(vals, " ") + "]"
	}
	if f.Value == "" {
		return ""
	}
	if f.FT == "Btn" {
		return "/" + f.Value
	}
	return str(f.Value)
}

func (b *builder) render(rootNr int) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")

	offsets := make([]int, len(b.objs))
	for i, body := range b.objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xrefAt := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(b.objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(b.objs)+1, rootNr, xrefAt)

	return buf.Bytes()
}

func refs(nrs []int) string {
	parts := make([]string, len(nrs))
	for i, n := range nrs {
		parts[i] = fmt.Sprintf("%d 0 R", n)
	}
	return strings.Join(parts, " ")
}

func num(f float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", f), "0"), ".")
}

func str(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return "(" + r.Replace(s) + ")"
}

// TextForm returns a one-page Letter document with one text field per name, stacked from the
// top of the page, each 200x20 points
func TextForm(names ...string) []byte {
	fields := make([]Field, 0, len(names))
	for i, n := range names {
		top := 742.0 - float64(i)*24
		fields = append(fields, Field{
			Name:    n,
			FT:      "Tx",
			Widgets: []Widget{{Page: 1, Rect: [4]float64{72, top - 20, 272, top}}},
			Merged:  true,
		})
	}
	return Build(Spec{Pages: []Page{{Width: 612, Height: 792}}, Fields: fields})
}

// SortedNames is a small helper for order-insensitive assertions
func SortedNames(names []string) []string {
	out := append([]string(nil), names...)
	sort.Strings(out)
	return out
}
