// Package render rasterises cached layers to PNG and flattens their data
// cells to CSV.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/couchcryptid/polar-layers/internal/domain"
)

const (
	legendBand  = 72
	legendRight = 220
	margin      = 8
)

// MinSize is the smallest width and height exports are configured with. Every
// legend placement fits at this size.
const MinSize = 64

var (
	textColor = color.NRGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xFF}
	white     = domain.Color{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
)

// Canvas maps projected metres onto a square map panel.
type Canvas struct {
	Img    *image.RGBA
	Panel  image.Rectangle
	Legend image.Rectangle
	radius float64
	scale  float64
}

// NewCanvas lays out a width x height image: the map panel plus a legend
// band placed according to pos. The band shrinks on small images so the map
// keeps at least three quarters of the height or two thirds of the width.
func NewCanvas(width, height int, radius float64, pos domain.LegendPosition) (*Canvas, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("render: invalid size %dx%d", width, height)
	}
	full := image.Rect(0, 0, width, height)
	mapArea, legend := full, image.Rectangle{}
	switch pos {
	case domain.LegendBottom:
		mapArea.Max.Y -= min(legendBand, height/4)
		legend = image.Rect(0, mapArea.Max.Y, width, height)
	case domain.LegendRight:
		mapArea.Max.X -= min(legendRight, width/3)
		legend = image.Rect(mapArea.Max.X, 0, width, height)
	}
	side := min(mapArea.Dx(), mapArea.Dy())
	if side <= 0 {
		return nil, fmt.Errorf("render: %dx%d leaves no room for the map", width, height)
	}
	off := image.Pt(mapArea.Min.X+(mapArea.Dx()-side)/2, mapArea.Min.Y+(mapArea.Dy()-side)/2)
	if radius <= 0 {
		radius = 1
	}
	return &Canvas{
		Img:    image.NewRGBA(full),
		Panel:  image.Rectangle{Min: off, Max: off.Add(image.Pt(side, side))},
		Legend: legend,
		radius: radius,
		scale:  float64(side) / (2 * radius),
	}, nil
}

// Pixel converts a projected coordinate to image space.
func (c *Canvas) Pixel(x, y float64) (float64, float64) {
	return float64(c.Panel.Min.X) + (x+c.radius)*c.scale,
		float64(c.Panel.Min.Y) + (c.radius-y)*c.scale
}

func (c *Canvas) fillRect(r image.Rectangle, col domain.Color) {
	if col.A == 0 {
		return
	}
	draw.Draw(c.Img, r.Intersect(c.Img.Bounds()), image.NewUniform(col), image.Point{}, draw.Over)
}

func (c *Canvas) fillCells(cells []domain.FilledCell, size float64) {
	half := math.Max(size*c.scale/2, 0.5)
	for _, cell := range cells {
		px, py := c.Pixel(cell.X, cell.Y)
		r := image.Rect(
			int(math.Floor(px-half)), int(math.Floor(py-half)),
			int(math.Ceil(px+half)), int(math.Ceil(py+half)),
		)
		c.fillRect(r, cell.Fill)
	}
}

// fillPolygon paints with the even-odd rule, one scanline per pixel row.
func (c *Canvas) fillPolygon(p orb.Polygon, col domain.Color) {
	if col.A == 0 || len(p) == 0 {
		return
	}
	type edge struct{ x0, y0, x1, y1 float64 }
	var edges []edge
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, ring := range p {
		for i := 0; i+1 < len(ring); i++ {
			x0, y0 := c.Pixel(ring[i][0], ring[i][1])
			x1, y1 := c.Pixel(ring[i+1][0], ring[i+1][1])
			edges = append(edges, edge{x0, y0, x1, y1})
			minY = math.Min(minY, math.Min(y0, y1))
			maxY = math.Max(maxY, math.Max(y0, y1))
		}
	}
	bounds := c.Img.Bounds()
	top := max(bounds.Min.Y, int(math.Floor(minY)))
	bottom := min(bounds.Max.Y-1, int(math.Ceil(maxY)))

	var xs []float64
	for row := top; row <= bottom; row++ {
		sy := float64(row) + 0.5
		xs = xs[:0]
		for _, e := range edges {
			if (e.y0 <= sy && e.y1 > sy) || (e.y1 <= sy && e.y0 > sy) {
				xs = append(xs, e.x0+(sy-e.y0)*(e.x1-e.x0)/(e.y1-e.y0))
			}
		}
		sort.Float64s(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			x0 := int(math.Round(xs[i]))
			x1 := int(math.Round(xs[i+1]))
			c.fillRect(image.Rect(x0, row, x1, row+1), col)
		}
	}
}

// drawLine uses Bresenham, stamping a square pen of the given width.
func (c *Canvas) drawLine(ls orb.LineString, col domain.Color, width float64) {
	if col.A == 0 || len(ls) < 2 {
		return
	}
	pen := max(1, int(math.Round(width)))
	stamp := func(x, y int) {
		c.fillRect(image.Rect(x-pen/2, y-pen/2, x-pen/2+pen, y-pen/2+pen), col)
	}
	for i := 0; i+1 < len(ls); i++ {
		fx0, fy0 := c.Pixel(ls[i][0], ls[i][1])
		fx1, fy1 := c.Pixel(ls[i+1][0], ls[i+1][1])
		x0, y0 := int(math.Round(fx0)), int(math.Round(fy0))
		x1, y1 := int(math.Round(fx1)), int(math.Round(fy1))

		dx := abs(x1 - x0)
		sx := -1
		if x0 < x1 {
			sx = 1
		}
		dy := -abs(y1 - y0)
		sy := -1
		if y0 < y1 {
			sy = 1
		}
		err := dx + dy
		for {
			stamp(x0, y0)
			if x0 == x1 && y0 == y1 {
				break
			}
			e2 := 2 * err
			if e2 >= dy {
				err += dy
				x0 += sx
			}
			if e2 <= dx {
				err += dx
				y0 += sy
			}
		}
	}
}

func (c *Canvas) fillCircle(circle domain.Circle, col domain.Color) {
	if col.A == 0 {
		return
	}
	cx, cy := c.Pixel(circle.X, circle.Y)
	r := circle.Radius * c.scale
	for row := int(math.Floor(cy - r)); row <= int(math.Ceil(cy+r)); row++ {
		dy := float64(row) + 0.5 - cy
		if math.Abs(dy) > r {
			continue
		}
		half := math.Sqrt(r*r - dy*dy)
		c.fillRect(image.Rect(int(math.Round(cx-half)), row, int(math.Round(cx+half)), row+1), col)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func (c *Canvas) text(x, y int, s string) {
	d := &font.Drawer{
		Dst:  c.Img,
		Src:  image.NewUniform(textColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(s)
}

func (c *Canvas) drawLegend(title string, l domain.Legend) {
	if c.Legend.Empty() {
		return
	}
	x, y := c.Legend.Min.X+margin, c.Legend.Min.Y+margin+basicfont.Face7x13.Ascent
	c.text(x, y, title+": "+l.Title)
	y += margin

	switch l.Kind {
	case domain.Discrete:
		const swatch = 10
		cx, cy := x, y
		for _, e := range l.Entries {
			w := swatch + 4 + len(e.Label)*basicfont.Face7x13.Advance + 2*margin
			if cx+w > c.Legend.Max.X {
				cx = x
				cy += swatch + 6
			}
			c.fillRect(image.Rect(cx, cy, cx+swatch, cy+swatch), e.Color)
			c.text(cx+swatch+4, cy+swatch, e.Label)
			cx += w
		}
	case domain.Continuous:
		if len(l.Ramp) == 0 {
			return
		}
		barW := c.Legend.Dx() - 2*margin
		if c.Legend.Dx() > legendRight {
			barW = min(barW, 400)
		}
		for i := 0; i < barW; i++ {
			col := l.Ramp[i*len(l.Ramp)/barW]
			c.fillRect(image.Rect(x+i, y, x+i+1, y+12), col)
		}
		ly := y + 12 + basicfont.Face7x13.Ascent + 2
		c.text(x, ly, formatValue(l.Min))
		maxLabel := formatValue(l.Max)
		c.text(x+barW-len(maxLabel)*basicfont.Face7x13.Advance, ly, maxLabel)
	}
}

func formatValue(v float64) string {
	switch {
	case v == math.Trunc(v) && math.Abs(v) < 1e6:
		return fmt.Sprintf("%.0f", v)
	case math.Abs(v) >= 100:
		return fmt.Sprintf("%.1f", v)
	default:
		return fmt.Sprintf("%.3g", v)
	}
}

// Draw paints every drawable of layer in order onto a new canvas.
func Draw(layer domain.StyledMapLayer, width, height int) (*Canvas, error) {
	pos := layer.Theme.LegendPosition
	if pos == "" {
		if l, ok := layer.Legend(); ok {
			pos = l.Position
		}
	}
	if pos == "" {
		pos = domain.LegendRight
	}
	c, err := NewCanvas(width, height, layer.Radius, pos)
	if err != nil {
		return nil, err
	}
	bg := layer.Theme.Background
	if bg.A == 0 {
		bg = white
	}
	c.fillRect(c.Img.Bounds(), bg)

	for _, d := range layer.Drawables {
		switch {
		case d.Legend != nil:
			c.drawLegend(layer.Title, *d.Legend)
		case d.Circle != nil:
			c.fillCircle(*d.Circle, d.Style.Fill)
		case len(d.Cells) > 0:
			c.fillCells(d.Cells, d.CellSize)
		case len(d.Polygons) > 0:
			for _, p := range d.Polygons {
				c.fillPolygon(p, d.Style.Fill)
			}
		case len(d.Lines) > 0:
			for _, ls := range d.Lines {
				c.drawLine(ls, d.Style.Stroke, d.Style.StrokeWidth)
			}
		}
	}
	return c, nil
}

// WritePNG renders layer at width x height and encodes it as PNG.
func WritePNG(w io.Writer, layer domain.StyledMapLayer, width, height int) error {
	c, err := Draw(layer, width, height)
	if err != nil {
		return err
	}
	if err := png.Encode(w, c.Img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}
