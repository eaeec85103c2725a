package render

import (
	"bytes"
	"encoding/csv"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/polar-layers/internal/domain"
)

var weddell = domain.Color{R: 0x94, G: 0xFA, B: 0x8D, A: 0xFF}

func testLayer() domain.StyledMapLayer {
	return domain.StyledMapLayer{
		Dataset: domain.Bioregions,
		Title:   "Pelagic bioregions",
		Radius:  1000,
		Theme:   domain.Theme{LegendPosition: domain.LegendBottom, Background: white},
		Drawables: []domain.Drawable{
			{Kind: domain.KindData, CellSize: 200, Cells: []domain.FilledCell{
				{X: -500, Y: 500, Value: 3, Fill: weddell},
				{X: 500, Y: -500, Value: math.NaN(), Missing: true, Fill: domain.Transparent},
			}},
			{Kind: domain.KindLegend, Legend: &domain.Legend{
				Title:    "Bioregion",
				Kind:     domain.Discrete,
				Entries:  []domain.LegendEntry{{Label: "Weddell Gyre", Color: weddell}},
				Position: domain.LegendBottom,
			}},
		},
	}
}

func nrgbaAt(img image.Image, x, y float64) color.NRGBA {
	return color.NRGBAModel.Convert(img.At(int(x), int(y))).(color.NRGBA)
}

func TestWritePNG_CellColours(t *testing.T) {
	layer := testLayer()
	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, layer, 400, 472))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 400, 472), img.Bounds())

	c, err := NewCanvas(400, 472, layer.Radius, domain.LegendBottom)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 400, 400), c.Panel)

	px, py := c.Pixel(-500, 500)
	assert.Equal(t, color.NRGBA{R: 0x94, G: 0xFA, B: 0x8D, A: 0xFF}, nrgbaAt(img, px, py))

	px, py = c.Pixel(500, -500)
	assert.Equal(t, color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}, nrgbaAt(img, px, py),
		"missing cell is transparent over the background")
}

func TestDraw_PaintOrder(t *testing.T) {
	red := domain.Color{R: 0xFF, A: 0xFF}
	blue := domain.Color{B: 0xFF, A: 0xFF}
	layer := domain.StyledMapLayer{
		Radius: 100,
		Theme:  domain.Theme{LegendPosition: domain.LegendNone},
		Drawables: []domain.Drawable{
			{Kind: domain.KindBackground, Style: domain.Style{Fill: red}, Circle: &domain.Circle{Radius: 100}},
			{Kind: domain.KindIce, Style: domain.Style{Fill: blue},
				Polygons: []orb.Polygon{{{{-10, -10}, {10, -10}, {10, 10}, {-10, 10}, {-10, -10}}}}},
			{Kind: domain.KindBorder, Style: domain.Style{Stroke: red, StrokeWidth: 1},
				Lines: []orb.LineString{{{-100, 0}, {100, 0}}}},
		},
	}
	c, err := Draw(layer, 200, 200)
	require.NoError(t, err)

	px, py := c.Pixel(5, 5)
	assert.Equal(t, color.NRGBA{B: 0xFF, A: 0xFF}, nrgbaAt(c.Img, px, py), "polygon over circle")
	px, py = c.Pixel(50, 50)
	assert.Equal(t, color.NRGBA{R: 0xFF, A: 0xFF}, nrgbaAt(c.Img, px, py), "circle")
	px, py = c.Pixel(0, 0)
	assert.Equal(t, color.NRGBA{R: 0xFF, A: 0xFF}, nrgbaAt(c.Img, px, py), "line drawn last")
	assert.Equal(t, color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}, nrgbaAt(c.Img, 1, 1), "outside the circle")
}

func TestNewCanvas_Errors(t *testing.T) {
	_, err := NewCanvas(0, 100, 1, domain.LegendNone)
	assert.Error(t, err)
	_, err = NewCanvas(100, -1, 1, domain.LegendBottom)
	assert.Error(t, err)
}

func TestNewCanvas_ShrinksLegendOnSmallImages(t *testing.T) {
	c, err := NewCanvas(1200, 70, 1, domain.LegendBottom)
	require.NoError(t, err)
	assert.Equal(t, 17, c.Legend.Dy())
	assert.Equal(t, 53, c.Panel.Dy())

	c, err = NewCanvas(200, 272, 1, domain.LegendRight)
	require.NoError(t, err)
	assert.Equal(t, 66, c.Legend.Dx())
	assert.Equal(t, 134, c.Panel.Dx())
}

func TestDraw_LegendPositionFromDrawable(t *testing.T) {
	layer := testLayer()
	layer.Theme = domain.Theme{}

	c, err := Draw(layer, 200, 272)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 204, 200, 272), c.Legend, "unthemed layer uses its legend drawable's position")
}

func TestWritePNG_MinSize(t *testing.T) {
	for _, pos := range []domain.LegendPosition{domain.LegendBottom, domain.LegendRight, domain.LegendNone} {
		layer := testLayer()
		layer.Theme.LegendPosition = pos
		require.NoError(t, WritePNG(io.Discard, layer, MinSize, MinSize), pos)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, testLayer()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, CSVHeader, rows[0])
	assert.Equal(t, []string{"-500.000", "500.000", "3", "false", "#94FA8D"}, rows[1])
	assert.Equal(t, []string{"500.000", "-500.000", "", "true", "#FFFFFF00"}, rows[2])
}

func TestWriteCSV_NoData(t *testing.T) {
	err := WriteCSV(&bytes.Buffer{}, domain.StyledMapLayer{Dataset: domain.Bioregions})
	assert.ErrorIs(t, err, domain.ErrLayerUnavailable)
}
