package style

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/polar-layers/internal/catalog"
	"github.com/couchcryptid/polar-layers/internal/domain"
	"github.com/couchcryptid/polar-layers/internal/palette"
)

func newStylist() *Stylist {
	return NewStylist(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testBase() *domain.BaseMap {
	bins := palette.Bathymetry()
	return domain.NewBaseMap(domain.SouthPolarStereographic, 5000, bins[0],
		domain.Drawable{
			Name:  "bathymetry",
			Kind:  domain.KindBathymetry,
			Cells: []domain.FilledCell{{X: 0, Y: 0, Value: -4000, Fill: bins[0]}},
		},
		domain.Drawable{
			Name:  "graticule",
			Kind:  domain.KindGraticule,
			Lines: []orb.LineString{{{0, 0}, {0, 5000}}},
		},
	)
}

func kinds(l domain.StyledMapLayer) []domain.DrawableKind {
	out := make([]domain.DrawableKind, len(l.Drawables))
	for i, d := range l.Drawables {
		out[i] = d.Kind
	}
	return out
}

func mustEntry(t *testing.T, id domain.DatasetID) catalog.Entry {
	t.Helper()
	e, err := catalog.Lookup(id)
	require.NoError(t, err)
	return e
}

func TestStyle_Bioregions(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	domain.SetClock(fake)
	t.Cleanup(func() { domain.SetClock(nil) })

	tab := domain.TabularCells{
		CRS:         domain.SouthPolarStereographic,
		CellSize:    100,
		Categorical: true,
		Cells: []domain.Cell{
			{X: 0, Y: 0, Value: 3},
			{X: 100, Y: 0, Value: math.NaN(), Missing: true},
			{X: 200, Y: 0, Value: 1},
		},
	}
	layer := newStylist().Style(tab, mustEntry(t, domain.Bioregions), testBase())

	assert.Equal(t, []domain.DrawableKind{
		domain.KindBathymetry, domain.KindGraticule, domain.KindBackground, domain.KindData, domain.KindLegend,
	}, kinds(layer))
	assert.Equal(t, domain.Bioregions, layer.Dataset)
	assert.Equal(t, 5000.0, layer.Radius)
	assert.Equal(t, fake.Now(), layer.BuiltAt)

	bg := layer.Drawables[layer.Index(domain.KindBackground)]
	require.NotNil(t, bg.Circle)
	assert.Equal(t, 5000.0, bg.Circle.Radius)
	assert.Equal(t, palette.Bathymetry()[0], bg.Style.Fill)

	data, ok := layer.PrimaryData()
	require.True(t, ok)
	require.Len(t, data.Cells, 3, "missing cells stay in the data drawable")
	assert.Equal(t, "#94FA8D", data.Cells[0].Fill.Hex())
	assert.Equal(t, domain.Transparent, data.Cells[1].Fill)
	assert.True(t, data.Cells[1].Missing)

	legend, ok := layer.Legend()
	require.True(t, ok)
	assert.Equal(t, domain.Discrete, legend.Kind)
	require.Len(t, legend.Entries, 12)
	assert.Equal(t, "Weddell Gyre", legend.Entries[2].Label)
}

func TestStyle_ContinuousLegendDomain(t *testing.T) {
	tab := domain.TabularCells{
		CellSize: 100,
		Cells: []domain.Cell{
			{X: 0, Y: 0, Value: 0.2},
			{X: 1, Y: 0, Value: 0.8},
			{X: 2, Y: 0, Value: 0.5},
			{X: 3, Y: 0, Value: math.NaN(), Missing: true},
		},
	}
	entry := mustEntry(t, domain.HabitatImportance)
	layer := newStylist().Style(tab, entry, testBase())

	assert.Equal(t, -1, layer.Index(domain.KindBackground))

	legend, ok := layer.Legend()
	require.True(t, ok)
	assert.Equal(t, 0.2, legend.Min)
	assert.Equal(t, 0.8, legend.Max)
	assert.Len(t, legend.Ramp, palette.Steps)

	data, _ := layer.PrimaryData()
	assert.Equal(t, entry.Palette.Ramp[0], data.Cells[0].Fill)
	assert.Equal(t, entry.Palette.Ramp[palette.Steps-1], data.Cells[1].Fill)
	assert.Equal(t, entry.Palette.Ramp[palette.Steps/2], data.Cells[2].Fill)
	assert.Zero(t, data.Cells[3].Fill.A)
}

func TestStyle_EmptyTabulation(t *testing.T) {
	layer := newStylist().Style(domain.TabularCells{}, mustEntry(t, domain.HabitatSuitability), testBase())

	assert.Equal(t, []domain.DrawableKind{
		domain.KindBathymetry, domain.KindGraticule, domain.KindData, domain.KindLegend,
	}, kinds(layer))
	data, ok := layer.PrimaryData()
	require.True(t, ok)
	assert.Empty(t, data.Cells)
	_, ok = layer.Legend()
	assert.True(t, ok)
}

func TestStyle_DoesNotMutateBase(t *testing.T) {
	base := testBase()
	before := base.Drawables()

	s := newStylist()
	a := s.Style(domain.TabularCells{Cells: []domain.Cell{{Value: 1}}}, mustEntry(t, domain.Bioregions), base)
	b := s.Style(domain.TabularCells{Cells: []domain.Cell{{Value: 2}}}, mustEntry(t, domain.Bioregions), base)

	a.Drawables[0].Cells[0].Value = 99
	a.Drawables[1].Lines[0][1][1] = -1

	assert.Equal(t, before, base.Drawables())
	assert.Equal(t, -4000.0, b.Drawables[0].Cells[0].Value)
}

func TestNormalize(t *testing.T) {
	layer := newStylist().Style(domain.TabularCells{Cells: []domain.Cell{{Value: 1}}}, mustEntry(t, domain.Bioregions), testBase())
	layer.Theme.ShowGrid = true

	theme := Theme("Helvetica", 14)
	theme.ShowAxisTicks = true
	theme.LegendPosition = domain.LegendRight

	once := Normalize(layer, theme)
	twice := Normalize(once, theme)

	assert.Equal(t, once, twice)
	assert.Equal(t, "Helvetica", once.Theme.FontFamily)
	assert.Equal(t, 14.0, once.Theme.FontSize)
	assert.Equal(t, domain.LegendBottom, once.Theme.LegendPosition)
	assert.False(t, once.Theme.ShowAxisTicks)
	assert.False(t, once.Theme.ShowGrid)

	legend, ok := once.Legend()
	require.True(t, ok)
	assert.Equal(t, domain.LegendBottom, legend.Position)

	orig, _ := layer.Legend()
	assert.Equal(t, domain.LegendRight, orig.Position, "input is left untouched")
}
