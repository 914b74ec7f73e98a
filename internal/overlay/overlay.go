// Package overlay positions field boxes over rendered PDF pages as percentages of the page, so
// the boxes stay aligned at any zoom level.
package overlay

import (
	"fmt"
	"sync"

	"github.com/a3tai/mcp-pdf-automap/internal/automap"
	"github.com/a3tai/mcp-pdf-automap/internal/pdf/extraction"
)

// Fallback page size used when a page's rendered dimensions are unknown
const (
	FallbackPageWidth  = 800
	FallbackPageHeight = 1132

	letterHeight = 792.0
)

// Geometry is a field rectangle in bottom-left-origin page units
type Geometry struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Box is a field rectangle as percentages of the page, top-left origin
type Box struct {
	Left   float64 `json:"left" yaml:"left"`
	Top    float64 `json:"top" yaml:"top"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Project converts a bottom-left-origin rectangle into a percentage box on a page of the given
// size. The vertical flip happens here, independently of any flip done at extraction time.
func Project(g Geometry, pageWidth, pageHeight float64) Box {
	return Box{
		Left:   g.X / pageWidth * 100,
		Top:    (pageHeight - g.Y - g.Height) / pageHeight * 100,
		Width:  g.Width / pageWidth * 100,
		Height: g.Height / pageHeight * 100,
	}
}

// Size is the rendered size of one page
type Size struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Field is the subset of a mapped field the overlay needs
type Field struct {
	ID         string  `json:"id,omitempty"`
	Page       int     `json:"page,omitempty"`
	PageNumber int     `json:"pageNumber,omitempty"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Label      string  `json:"label,omitempty"`
}

// Overlay is one positioned field box
type Overlay struct {
	ID    string `json:"id" yaml:"id"`
	Page  int    `json:"page" yaml:"page"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
	Box   Box    `json:"box" yaml:"box"`
}

// Tracker collects rendered page sizes as pages finish loading, in any order. Overlays are
// only produced once every page has reported.
type Tracker struct {
	mu       sync.Mutex
	total    int
	loaded   map[int]Size
	fallback Size
}

// NewTracker creates a tracker for a document of totalPages pages
func NewTracker(totalPages int) *Tracker {
	return &Tracker{
		total:    totalPages,
		loaded:   make(map[int]Size),
		fallback: Size{Width: FallbackPageWidth, Height: FallbackPageHeight},
	}
}

// PageLoaded records the rendered size of a page. Reporting the same page twice keeps the
// latest size and counts the page once. Pages outside 1..total are rejected.
func (t *Tracker) PageLoaded(page int, width, height float64) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid size %gx%g for page %d", width, height, page)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if page < 1 || page > t.total {
		return fmt.Errorf("invalid page number %d (document has %d pages)", page, t.total)
	}
	t.loaded[page] = Size{Width: width, Height: height}
	return nil
}

// AllPagesLoaded reports whether every page has reported its size
func (t *Tracker) AllPagesLoaded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allLoaded()
}

func (t *Tracker) allLoaded() bool {
	if t.total < 1 {
		return false
	}
	for page := 1; page <= t.total; page++ {
		if _, ok := t.loaded[page]; !ok {
			return false
		}
	}
	return true
}

// PageSize returns the recorded size of a page, or the fallback size
func (t *Tracker) PageSize(page int) Size {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pageSize(page)
}

func (t *Tracker) pageSize(page int) Size {
	if s, ok := t.loaded[page]; ok {
		return s
	}
	return t.fallback
}

// Overlays positions every field, or returns nil while pages are still loading
func (t *Tracker) Overlays(fields []Field) []Overlay {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.allLoaded() {
		return nil
	}

	out := make([]Overlay, 0, len(fields))
	for i, f := range fields {
		page := f.Page
		if page == 0 {
			page = f.PageNumber
		}
		if page == 0 {
			page = 1
		}

		id := f.ID
		if id == "" {
			id = fmt.Sprintf("field_%d", i)
		}

		size := t.pageSize(page)
		out = append(out, Overlay{
			ID:    id,
			Page:  page,
			Label: f.Label,
			Box:   Project(Geometry{X: f.X, Y: f.Y, Width: f.Width, Height: f.Height}, size.Width, size.Height),
		})
	}
	return out
}

// FromMapped converts stored mapped fields, whose geometry is top-left-origin, back into the
// bottom-left point space Project expects. Pages missing from sizes are treated as US Letter.
func FromMapped(fields []automap.MappedField, sizes []extraction.PageSize) []Field {
	heights := make(map[int]float64, len(sizes))
	for _, s := range sizes {
		heights[s.Page] = s.Height
	}

	out := make([]Field, len(fields))
	for i, f := range fields {
		height, ok := heights[f.Page]
		if !ok {
			height = letterHeight
		}
		r := extraction.ToTopLeft(extraction.Rect{X: f.X, Y: f.Y, Width: f.Width, Height: f.Height}, height)
		out[i] = Field{
			ID:     f.ID,
			Page:   f.Page,
			X:      r.X,
			Y:      r.Y,
			Width:  r.Width,
			Height: r.Height,
			Label:  f.Label,
		}
	}
	return out
}
