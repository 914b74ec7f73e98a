package extraction

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Field flag bits (PDF 32000-1, 12.7.4)
const (
	flagRadio      = 1 << 15
	flagPushbutton = 1 << 16
	flagCombo      = 1 << 17
)

// US Letter, used when a page carries no readable MediaBox
const (
	defaultPageWidth  = 612.0
	defaultPageHeight = 792.0
)

// FieldExtractor walks the AcroForm of a PDF using pdfcpu and reports every widget of every
// fillable field in top-left-origin geometry
type FieldExtractor struct {
	debugMode bool
}

// NewFieldExtractor creates a new field extractor
func NewFieldExtractor(debugMode bool) *FieldExtractor {
	return &FieldExtractor{
		debugMode: debugMode,
	}
}

// ExtractFieldsFromBytes extracts all fillable fields from an in-memory PDF
func (fe *FieldExtractor) ExtractFieldsFromBytes(ctx context.Context, data []byte) ([]FieldInfo, error) {
	return fe.ExtractFields(ctx, bytes.NewReader(data))
}

func readContext(reader io.ReadSeeker) (*model.Context, *pageIndex, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pdfCtx, err := api.ReadContext(reader, conf)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read PDF context: %w", err)
	}

	if err := pdfCtx.EnsurePageCount(); err != nil {
		return nil, nil, fmt.Errorf("failed to ensure page count: %w", err)
	}

	pages, err := indexPages(pdfCtx)
	if err != nil {
		return nil, nil, err
	}
	return pdfCtx, pages, nil
}

// PageSizesFromBytes returns the MediaBox size of every page in page order
func (fe *FieldExtractor) PageSizesFromBytes(_ context.Context, data []byte) ([]PageSize, error) {
	_, pages, err := readContext(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	sizes := make([]PageSize, len(pages.ordered))
	for i, p := range pages.ordered {
		sizes[i] = PageSize{Page: p.number, Width: p.width, Height: p.height}
	}
	return sizes, nil
}

// ExtractFields extracts all fillable fields in field-declaration order. A document without
// an AcroForm yields an empty list and no error.
func (fe *FieldExtractor) ExtractFields(ctx context.Context, reader io.ReadSeeker) ([]FieldInfo, error) {
	pdfCtx, pages, err := readContext(reader)
	if err != nil {
		return nil, err
	}

	w := &fieldWalker{
		ctx:       ctx,
		pdf:       pdfCtx,
		pages:     pages,
		debugMode: fe.debugMode,
		visited:   make(map[int]bool),
		fields:    make([]FieldInfo, 0),
	}
	if err := w.walkAcroForm(); err != nil {
		return nil, err
	}

	if fe.debugMode {
		log.Printf("Extracted %d field widgets across %d pages", len(w.fields), len(pages.ordered))
	}
	return w.fields, nil
}

// pageInfo is what the walker needs to know about one page
type pageInfo struct {
	number int
	width  float64
	height float64
	annots map[int]bool
}

type pageIndex struct {
	byObjNr map[int]*pageInfo
	ordered []*pageInfo
}

// indexPages records each page's object number, height and annotation references
func indexPages(pdfCtx *model.Context) (*pageIndex, error) {
	idx := &pageIndex{byObjNr: make(map[int]*pageInfo)}

	for i := 1; i <= pdfCtx.PageCount; i++ {
		pageDict, pageRef, inherited, err := pdfCtx.PageDict(i, false)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d: %w", i, err)
		}

		p := &pageInfo{number: i, width: defaultPageWidth, height: defaultPageHeight, annots: make(map[int]bool)}
		if inherited != nil && inherited.MediaBox != nil {
			p.width, p.height = inherited.MediaBox.Width(), inherited.MediaBox.Height()
		} else if r, ok := mediaBox(pdfCtx, pageDict); ok {
			p.width, p.height = r.Width, r.Height
		}

		if pageRef != nil {
			idx.byObjNr[int(pageRef.ObjectNumber)] = p
		}

		if annotsObj, found := pageDict.Find("Annots"); found {
			if annots, err := pdfCtx.DereferenceArray(annotsObj); err == nil {
				for _, a := range annots {
					if objNr, ok := objectNumber(a); ok {
						p.annots[objNr] = true
					}
				}
			}
		}

		idx.ordered = append(idx.ordered, p)
	}

	return idx, nil
}

func mediaBox(pdfCtx *model.Context, pageDict types.Dict) (Rect, bool) {
	if pageDict == nil {
		return Rect{}, false
	}
	obj, found := pageDict.Find("MediaBox")
	if !found {
		return Rect{}, false
	}
	return readRect(pdfCtx, obj)
}

// resolve finds the page a widget sits on: by its /P reference when present, otherwise by
// looking the widget up in the pages' /Annots arrays
func (idx *pageIndex) resolve(widget types.Dict, widgetObjNr int) (*pageInfo, bool) {
	if pObj, found := widget.Find("P"); found {
		objNr, ok := objectNumber(pObj)
		if !ok {
			return nil, false
		}
		p, ok := idx.byObjNr[objNr]
		return p, ok
	}

	if widgetObjNr == 0 {
		return nil, false
	}
	for _, p := range idx.ordered {
		if p.annots[widgetObjNr] {
			return p, true
		}
	}
	return nil, false
}

func objectNumber(o types.Object) (int, bool) {
	switch ref := o.(type) {
	case types.IndirectRef:
		return int(ref.ObjectNumber), true
	case *types.IndirectRef:
		if ref == nil {
			return 0, false
		}
		return int(ref.ObjectNumber), true
	default:
		return 0, false
	}
}

// inheritable carries the attributes a field inherits from its ancestors
type inheritable struct {
	name string
	ft   string
	ff   int
	v    types.Object
	opt  types.Object
}

type fieldWalker struct {
	ctx       context.Context
	pdf       *model.Context
	pages     *pageIndex
	debugMode bool
	visited   map[int]bool
	fields    []FieldInfo
}

func (w *fieldWalker) walkAcroForm() error {
	rootDict, err := w.pdf.Catalog()
	if err != nil {
		return fmt.Errorf("failed to get catalog: %w", err)
	}

	acroFormObj, found := rootDict.Find("AcroForm")
	if !found {
		if w.debugMode {
			log.Println("No AcroForm dictionary found in document")
		}
		return nil
	}

	acroFormDict, err := w.pdf.DereferenceDict(acroFormObj)
	if err != nil {
		return fmt.Errorf("failed to dereference AcroForm: %w", err)
	}
	if acroFormDict == nil {
		return nil
	}

	fieldsObj, found := acroFormDict.Find("Fields")
	if !found {
		return nil
	}

	fieldsArray, err := w.pdf.DereferenceArray(fieldsObj)
	if err != nil {
		return fmt.Errorf("failed to dereference Fields array: %w", err)
	}

	for i, fieldRef := range fieldsArray {
		if err := w.ctx.Err(); err != nil {
			return err
		}
		if err := w.walkField(fieldRef, inheritable{}, i); err != nil {
			if w.debugMode {
				log.Printf("Error processing field %d: %v", i, err)
			}
		}
	}
	return nil
}

// walkField visits one node of the field tree. Kids that carry a /T are child fields; kids
// without one are widget annotations of this (terminal) field.
func (w *fieldWalker) walkField(obj types.Object, parent inheritable, index int) error {
	objNr, isRef := objectNumber(obj)
	if isRef {
		if w.visited[objNr] {
			return fmt.Errorf("field tree cycle at object %d", objNr)
		}
		w.visited[objNr] = true
	}

	fieldDict, err := w.pdf.DereferenceDict(obj)
	if err != nil {
		return fmt.Errorf("failed to dereference field: %w", err)
	}
	if fieldDict == nil {
		return nil
	}

	attrs := w.inherit(fieldDict, parent)

	var widgets []types.Object
	var childFields []types.Object
	if kidsObj, found := fieldDict.Find("Kids"); found {
		kids, err := w.pdf.DereferenceArray(kidsObj)
		if err != nil {
			return fmt.Errorf("failed to dereference Kids of %q: %w", attrs.name, err)
		}
		for _, kid := range kids {
			kidDict, err := w.pdf.DereferenceDict(kid)
			if err != nil || kidDict == nil {
				continue
			}
			if _, hasT := kidDict.Find("T"); hasT {
				childFields = append(childFields, kid)
			} else {
				widgets = append(widgets, kid)
			}
		}
	} else {
		// merged field/widget dictionary
		widgets = append(widgets, obj)
	}

	for i, child := range childFields {
		if err := w.walkField(child, attrs, i); err != nil && w.debugMode {
			log.Printf("Error processing child %d of %q: %v", i, attrs.name, err)
		}
	}

	if len(widgets) == 0 {
		return nil
	}
	if attrs.name == "" {
		attrs.name = fmt.Sprintf("field_%d", index)
	}
	if attrs.ft == "" {
		if w.debugMode {
			log.Printf("Skipping field %q without a field type", attrs.name)
		}
		return nil
	}

	w.emitTerminal(attrs, widgets)
	return nil
}

func (w *fieldWalker) inherit(fieldDict types.Dict, parent inheritable) inheritable {
	attrs := parent

	if nameObj, found := fieldDict.Find("T"); found {
		if partial, err := w.pdf.DereferenceStringOrHexLiteral(nameObj, model.V10, nil); err == nil && partial != "" {
			if attrs.name == "" {
				attrs.name = partial
			} else {
				attrs.name = attrs.name + "." + partial
			}
		}
	}

	if ftObj, found := fieldDict.Find("FT"); found {
		if ft, err := w.pdf.DereferenceName(ftObj, model.V10, nil); err == nil {
			attrs.ft = string(ft)
		}
	}

	if flagsObj, found := fieldDict.Find("Ff"); found {
		if flags, err := w.pdf.DereferenceInteger(flagsObj); err == nil && flags != nil {
			attrs.ff = int(*flags)
		}
	}

	if v, found := fieldDict.Find("V"); found {
		attrs.v = v
	}
	if opt, found := fieldDict.Find("Opt"); found {
		attrs.opt = opt
	}

	return attrs
}

// emitTerminal classifies a terminal field and appends one FieldInfo per resolvable widget
func (w *fieldWalker) emitTerminal(attrs inheritable, widgets []types.Object) {
	widgetDicts := make([]types.Dict, 0, len(widgets))
	widgetObjNrs := make([]int, 0, len(widgets))
	for _, wObj := range widgets {
		d, err := w.pdf.DereferenceDict(wObj)
		if err != nil || d == nil {
			continue
		}
		objNr, _ := objectNumber(wObj)
		widgetDicts = append(widgetDicts, d)
		widgetObjNrs = append(widgetObjNrs, objNr)
	}

	fieldType, defaultValue, options := w.classify(attrs, widgetDicts)

	for i, widget := range widgetDicts {
		rectObj, found := widget.Find("Rect")
		if !found {
			continue
		}
		rect, ok := readRect(w.pdf, rectObj)
		if !ok {
			continue
		}

		page, ok := w.pages.resolve(widget, widgetObjNrs[i])
		if !ok {
			if w.debugMode {
				log.Printf("Skipping widget %d of %q: page not resolvable", i, attrs.name)
			}
			continue
		}

		topLeft := ToTopLeft(rect, page.height)
		w.fields = append(w.fields, FieldInfo{
			Name:         attrs.name,
			Type:         fieldType,
			Page:         page.number,
			X:            topLeft.X,
			Y:            topLeft.Y,
			Width:        topLeft.Width,
			Height:       topLeft.Height,
			DefaultValue: defaultValue,
			Options:      options,
		})

		if w.debugMode {
			log.Printf("Extracted field: %s (type: %s, page: %d)", attrs.name, fieldType, page.number)
		}
	}
}

// classify determines the field type by capability and reads its current value and options
func (w *fieldWalker) classify(attrs inheritable, widgets []types.Dict) (FieldType, string, []string) {
	switch attrs.ft {
	case "Btn":
		switch {
		case attrs.ff&flagPushbutton != 0:
			return FieldTypeText, "", nil
		case attrs.ff&flagRadio != 0:
			return w.classifyRadio(attrs, widgets)
		default:
			return FieldTypeCheckbox, w.checkboxValue(attrs, widgets), nil
		}
	case "Ch":
		if attrs.ff&flagCombo == 0 {
			// list boxes are not drop-downs
			return FieldTypeText, "", nil
		}
		options := w.choiceOptions(attrs.opt)
		return FieldTypeDropdown, w.firstSelected(attrs.v), options
	case "Tx":
		return FieldTypeText, w.textValue(attrs.v), nil
	default:
		return FieldTypeText, "", nil
	}
}

func (w *fieldWalker) checkboxValue(attrs inheritable, widgets []types.Dict) string {
	state := w.nameValue(attrs.v)
	if state == "" {
		for _, widget := range widgets {
			if as, found := widget.Find("AS"); found {
				state = w.nameValue(as)
				break
			}
		}
	}
	if state != "" && state != "Off" {
		return "true"
	}
	return "false"
}

func (w *fieldWalker) classifyRadio(attrs inheritable, widgets []types.Dict) (FieldType, string, []string) {
	onValues := make([]string, 0, len(widgets))
	for _, widget := range widgets {
		if on := w.onValue(widget); on != "" {
			onValues = append(onValues, on)
		}
	}

	exportValues := w.choiceOptions(attrs.opt)
	options := onValues
	if len(exportValues) > 0 {
		options = exportValues
	}

	selected := w.nameValue(attrs.v)
	if selected == "Off" {
		selected = ""
	}
	if selected != "" && len(exportValues) > 0 {
		for i, on := range onValues {
			if on == selected && i < len(exportValues) {
				selected = exportValues[i]
				break
			}
		}
	}

	return FieldTypeRadio, selected, options
}

// onValue returns the non-Off appearance state name of a button widget
func (w *fieldWalker) onValue(widget types.Dict) string {
	apObj, found := widget.Find("AP")
	if !found {
		return ""
	}
	ap, err := w.pdf.DereferenceDict(apObj)
	if err != nil || ap == nil {
		return ""
	}
	nObj, found := ap.Find("N")
	if !found {
		return ""
	}
	n, err := w.pdf.DereferenceDict(nObj)
	if err != nil || n == nil {
		return ""
	}

	states := make([]string, 0, len(n))
	for k := range n {
		if k != "Off" {
			states = append(states, k)
		}
	}
	if len(states) == 0 {
		return ""
	}
	sort.Strings(states)
	return states[0]
}

// choiceOptions reads an /Opt array; [export, display] pairs contribute their display value
func (w *fieldWalker) choiceOptions(optObj types.Object) []string {
	if optObj == nil {
		return nil
	}
	optArray, err := w.pdf.DereferenceArray(optObj)
	if err != nil {
		return nil
	}

	var options []string
	for _, opt := range optArray {
		if str, err := w.pdf.DereferenceStringOrHexLiteral(opt, model.V10, nil); err == nil {
			options = append(options, str)
		} else if arr, err := w.pdf.DereferenceArray(opt); err == nil && len(arr) >= 2 {
			if display, err := w.pdf.DereferenceStringOrHexLiteral(arr[1], model.V10, nil); err == nil {
				options = append(options, display)
			}
		}
	}
	return options
}

func (w *fieldWalker) firstSelected(v types.Object) string {
	if v == nil {
		return ""
	}
	if str, err := w.pdf.DereferenceStringOrHexLiteral(v, model.V10, nil); err == nil {
		return str
	}
	if arr, err := w.pdf.DereferenceArray(v); err == nil {
		for _, item := range arr {
			if str, err := w.pdf.DereferenceStringOrHexLiteral(item, model.V10, nil); err == nil {
				return str
			}
		}
	}
	return ""
}

func (w *fieldWalker) textValue(v types.Object) string {
	if v == nil {
		return ""
	}
	if str, err := w.pdf.DereferenceStringOrHexLiteral(v, model.V10, nil); err == nil {
		return strings.TrimRight(str, "\x00")
	}
	return ""
}

func (w *fieldWalker) nameValue(v types.Object) string {
	if v == nil {
		return ""
	}
	if name, err := w.pdf.DereferenceName(v, model.V10, nil); err == nil {
		return string(name)
	}
	return ""
}

// readRect parses a 4-number rectangle array in bottom-left point space
func readRect(pdfCtx *model.Context, rectObj types.Object) (Rect, bool) {
	rectArray, err := pdfCtx.DereferenceArray(rectObj)
	if err != nil || len(rectArray) != 4 {
		return Rect{}, false
	}

	coords := make([]float64, 4)
	for i, coord := range rectArray {
		f, err := pdfCtx.DereferenceNumber(coord)
		if err != nil {
			return Rect{}, false
		}
		coords[i] = f
	}

	return NewRect(coords[0], coords[1], coords[2], coords[3]), true
}
