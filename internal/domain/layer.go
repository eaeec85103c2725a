package domain

import (
	"fmt"
	"image/color"
	"math"
	"time"

	"github.com/paulmach/orb"
)

// Color is a straight-alpha RGBA colour.
type Color struct {
	R, G, B, A uint8
}

// Transparent is the fill for missing values.
var Transparent = Color{R: 0xFF, G: 0xFF, B: 0xFF, A: 0}

// RGBA implements color.Color.
func (c Color) RGBA() (r, g, b, a uint32) {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}.RGBA()
}

// Hex formats the colour as #RRGGBB, or #RRGGBBAA when not fully opaque.
func (c Color) Hex() string {
	if c.A == 0xFF {
		return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02X%02X%02X%02X", c.R, c.G, c.B, c.A)
}

// PaletteKind tags the two palette variants.
type PaletteKind int

const (
	Discrete PaletteKind = iota + 1
	Continuous
)

func (k PaletteKind) String() string {
	switch k {
	case Discrete:
		return "discrete"
	case Continuous:
		return "continuous"
	default:
		return "unknown"
	}
}

// Category is one entry of a discrete palette.
type Category struct {
	Label string
	Color Color
}

// PaletteRule maps cell values to fill colours.
type PaletteRule struct {
	Kind  PaletteKind
	Title string
	// Categories is used by Discrete rules. Order is significant: ordinal
	// value k selects Categories[k-1].
	Categories []Category
	// Ramp is used by Continuous rules, low values first.
	Ramp    []Color
	Missing Color
}

// ColorAt returns the colour of the 1-based ordinal category.
func (p PaletteRule) ColorAt(ordinal int) Color {
	if ordinal < 1 || ordinal > len(p.Categories) {
		return p.Missing
	}
	return p.Categories[ordinal-1].Color
}

// Resolve picks the fill for a value. lo and hi bound continuous scaling and
// are ignored by discrete rules.
func (p PaletteRule) Resolve(v float64, missing bool, lo, hi float64) Color {
	if missing || math.IsNaN(v) {
		return p.Missing
	}
	switch p.Kind {
	case Discrete:
		return p.ColorAt(int(math.Round(v)))
	case Continuous:
		n := len(p.Ramp)
		if n == 0 {
			return p.Missing
		}
		t := 0.0
		if hi > lo {
			t = (v - lo) / (hi - lo)
		}
		t = math.Max(0, math.Min(1, t))
		return p.Ramp[int(math.Round(t*float64(n-1)))]
	default:
		return p.Missing
	}
}

// DrawableKind tags the role of a drawable within a layer.
type DrawableKind string

const (
	KindBathymetry DrawableKind = "bathymetry"
	KindIce        DrawableKind = "ice"
	KindCoastline  DrawableKind = "coastline"
	KindGraticule  DrawableKind = "graticule"
	KindBorder     DrawableKind = "border"
	KindBackground DrawableKind = "background"
	KindData       DrawableKind = "data"
	KindLegend     DrawableKind = "legend"
)

// Style holds flat paint settings for vector drawables.
type Style struct {
	Fill        Color
	Stroke      Color
	StrokeWidth float64
}

// FilledCell is a tabulated cell with its resolved fill.
type FilledCell struct {
	X, Y    float64
	Value   float64
	Missing bool
	Fill    Color
}

// Circle is a filled disc in projected coordinates.
type Circle struct {
	X, Y, Radius float64
}

// LegendPosition places the legend relative to the map panel.
type LegendPosition string

const (
	LegendRight  LegendPosition = "right"
	LegendBottom LegendPosition = "bottom"
	LegendNone   LegendPosition = "none"
)

// LegendEntry is one swatch of a discrete legend.
type LegendEntry struct {
	Label string
	Color Color
}

// Legend maps colours back to labels or magnitudes.
type Legend struct {
	Title    string
	Kind     PaletteKind
	Entries  []LegendEntry
	Ramp     []Color
	Min, Max float64
	Missing  Color
	Position LegendPosition
}

// Drawable is one paint step. Which payload fields are set depends on Kind:
// raster kinds use Cells, polygon kinds use Polygons, line kinds use Lines,
// the background uses Circle and the legend uses Legend.
type Drawable struct {
	Name     string
	Kind     DrawableKind
	Style    Style
	CellSize float64
	Cells    []FilledCell
	Polygons []orb.Polygon
	Lines    []orb.LineString
	Circle   *Circle
	Legend   *Legend
}

// Clone returns a deep copy.
func (d Drawable) Clone() Drawable {
	out := d
	if d.Cells != nil {
		out.Cells = append([]FilledCell(nil), d.Cells...)
	}
	if d.Polygons != nil {
		out.Polygons = make([]orb.Polygon, len(d.Polygons))
		for i, p := range d.Polygons {
			out.Polygons[i] = p.Clone()
		}
	}
	if d.Lines != nil {
		out.Lines = make([]orb.LineString, len(d.Lines))
		for i, l := range d.Lines {
			out.Lines[i] = l.Clone()
		}
	}
	if d.Circle != nil {
		c := *d.Circle
		out.Circle = &c
	}
	if d.Legend != nil {
		l := *d.Legend
		if d.Legend.Entries != nil {
			l.Entries = append([]LegendEntry(nil), d.Legend.Entries...)
		}
		if d.Legend.Ramp != nil {
			l.Ramp = append([]Color(nil), d.Legend.Ramp...)
		}
		out.Legend = &l
	}
	return out
}

// Theme is the uniform presentation applied to every layer.
type Theme struct {
	FontFamily     string
	FontSize       float64
	LegendPosition LegendPosition
	ShowAxisLines  bool
	ShowGrid       bool
	ShowAxisTitles bool
	ShowAxisTicks  bool
	Background     Color
}

// StyledMapLayer is the cacheable, fully styled map for one dataset.
type StyledMapLayer struct {
	Dataset   DatasetID
	Title     string
	CRS       CRS
	Radius    float64
	Drawables []Drawable
	Theme     Theme
	RunID     string
	BuiltAt   time.Time
}

// PrimaryData returns the data drawable, looked up by kind.
func (l StyledMapLayer) PrimaryData() (Drawable, bool) {
	return l.find(KindData)
}

// Legend returns the legend drawable's payload.
func (l StyledMapLayer) Legend() (Legend, bool) {
	d, ok := l.find(KindLegend)
	if !ok || d.Legend == nil {
		return Legend{}, false
	}
	return *d.Legend, true
}

// Index returns the paint position of the first drawable of the given kind,
// or -1.
func (l StyledMapLayer) Index(kind DrawableKind) int {
	for i, d := range l.Drawables {
		if d.Kind == kind {
			return i
		}
	}
	return -1
}

func (l StyledMapLayer) find(kind DrawableKind) (Drawable, bool) {
	if i := l.Index(kind); i >= 0 {
		return l.Drawables[i], true
	}
	return Drawable{}, false
}

// Clone returns a deep copy of the layer.
func (l StyledMapLayer) Clone() StyledMapLayer {
	out := l
	out.Drawables = make([]Drawable, len(l.Drawables))
	for i, d := range l.Drawables {
		out.Drawables[i] = d.Clone()
	}
	return out
}

// BaseMap is the read-only cartographic template shared by every layer.
type BaseMap struct {
	crs        CRS
	radius     float64
	background Color
	drawables  []Drawable
}

// NewBaseMap copies the drawables into a new template.
func NewBaseMap(crs CRS, radius float64, background Color, drawables ...Drawable) *BaseMap {
	b := &BaseMap{crs: crs, radius: radius, background: background}
	b.drawables = make([]Drawable, len(drawables))
	for i, d := range drawables {
		b.drawables[i] = d.Clone()
	}
	return b
}

func (b *BaseMap) CRS() CRS { return b.crs }

// Radius is the circular map extent: the largest valid-data radius of the
// bathymetry layer.
func (b *BaseMap) Radius() float64 { return b.radius }

// Background is the deepest bathymetry bin colour.
func (b *BaseMap) Background() Color { return b.background }

// Drawables returns deep copies of the template drawables.
func (b *BaseMap) Drawables() []Drawable {
	return b.Compose()
}

// Compose returns a new drawable list: the template followed by extra.
func (b *BaseMap) Compose(extra ...Drawable) []Drawable {
	out := make([]Drawable, 0, len(b.drawables)+len(extra))
	for _, d := range b.drawables {
		out = append(out, d.Clone())
	}
	for _, d := range extra {
		out = append(out, d.Clone())
	}
	return out
}
