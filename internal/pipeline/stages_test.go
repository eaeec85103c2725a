package pipeline_test

import (
	"bytes"
	"context"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/polar-layers/internal/basemap"
	"github.com/couchcryptid/polar-layers/internal/cache"
	"github.com/couchcryptid/polar-layers/internal/catalog"
	"github.com/couchcryptid/polar-layers/internal/config"
	"github.com/couchcryptid/polar-layers/internal/display"
	"github.com/couchcryptid/polar-layers/internal/domain"
	"github.com/couchcryptid/polar-layers/internal/observability"
	"github.com/couchcryptid/polar-layers/internal/pipeline"
	"github.com/couchcryptid/polar-layers/internal/raster"
	"github.com/couchcryptid/polar-layers/internal/render"
	"github.com/couchcryptid/polar-layers/internal/style"
)

const weddellHex = "#94FA8D"

// writeGrid writes a 72x12 grid of 5 degree cells from -30 down to the pole.
func writeGrid(t *testing.T, dir, rel string, f func(col, row int) float64) {
	t.Helper()
	const cols, rows = 72, 12
	values := make([]float64, cols*rows)
	for row := range rows {
		for col := range cols {
			values[row*cols+col] = f(col, row)
		}
	}
	r, err := domain.NewGeoRaster(rel, domain.WGS84, domain.GeoTransform{-180, 5, 0, -30, 0, -5}, cols, rows, values)
	require.NoError(t, err)

	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	out, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, raster.WriteASCIIGrid(out, r, -9999))
	require.NoError(t, out.Close())
}

// TestRun_BioregionsThroughRealStages builds the bioregion layer from an
// ASCII grid where every valid cell is category 3 and one sector is no-data,
// then reads it back through the cache, the display shell and the renderer.
func TestRun_BioregionsThroughRealStages(t *testing.T) {
	mirror := t.TempDir()
	entry, err := catalog.Lookup(domain.Bioregions)
	require.NoError(t, err)

	writeGrid(t, mirror, entry.Source.Location, func(col, row int) float64 {
		if col < 18 && row >= 3 && row < 8 {
			return math.NaN()
		}
		return 3
	})
	writeGrid(t, mirror, "basemap/bathymetry.asc", func(_, row int) float64 {
		return -float64(500 * (row + 1))
	})

	loader := raster.NewLoader(mirror, nil, discardLogger())
	store := cache.NewStore(t.TempDir())
	p := pipeline.New(pipeline.Stages{
		BaseMap: basemap.NewBuilder(config.BaseMapConfig{
			BathymetrySource: "basemap/bathymetry.asc",
			TrimLatitude:     -45,
			BorderWidth:      2,
			MeridianStep:     30,
			ParallelStep:     15,
		}, 500_000, loader, discardLogger()),
		Loader:  loader,
		Stylist: style.NewStylist(discardLogger()),
		Store:   store,
	}, pipeline.Options{
		Entries:  []catalog.Entry{entry},
		CellSize: 500_000,
		Workers:  1,
		Theme:    style.Theme("Helvetica", 12),
	}, discardLogger(), observability.NewMetricsForTesting())

	ctx := context.Background()
	report, err := p.Run(ctx)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	require.Equal(t, pipeline.StatusOK, report.Results[0].Status, "%v", report.Results[0].Err)

	layer, err := store.Load(ctx, domain.Bioregions)
	require.NoError(t, err)
	data, ok := layer.PrimaryData()
	require.True(t, ok)

	// Sample cells well inside the map radius so they land on the panel.
	inside := func(c domain.FilledCell) bool { return math.Hypot(c.X, c.Y) < 0.8*layer.Radius }
	var present, missing *domain.FilledCell
	for i, c := range data.Cells {
		if c.Missing {
			assert.Equal(t, uint8(0), c.Fill.A, "missing cell %d must be transparent", i)
			if missing == nil && inside(c) {
				missing = &data.Cells[i]
			}
			continue
		}
		assert.Equal(t, 3.0, c.Value)
		assert.Equal(t, weddellHex, c.Fill.Hex(), "cell %d", i)
		if present == nil && inside(c) {
			present = &data.Cells[i]
		}
	}
	require.NotNil(t, present, "no category cells survived")
	require.NotNil(t, missing, "no-data sector produced no missing cells")

	shell := display.NewShell(store, display.Options{Width: 400, Height: 472, CacheSize: 1},
		observability.NewMetricsForTesting(), discardLogger())
	info, err := shell.Inspect(ctx, "bioregions", present.X, present.Y)
	require.NoError(t, err)
	assert.Equal(t, weddellHex, info.Fill)
	assert.Equal(t, catalog.BioregionLevels()[2], info.Label)

	c, err := render.Draw(layer, 400, 472)
	require.NoError(t, err)
	px, py := c.Pixel(present.X, present.Y)
	assert.Equal(t, color.NRGBA{R: 0x94, G: 0xFA, B: 0x8D, A: 0xFF},
		color.NRGBAModel.Convert(c.Img.At(int(px), int(py))))
	px, py = c.Pixel(missing.X, missing.Y)
	assert.NotEqual(t, color.NRGBA{R: 0x94, G: 0xFA, B: 0x8D, A: 0xFF},
		color.NRGBAModel.Convert(c.Img.At(int(px), int(py))))

	var csv bytes.Buffer
	require.NoError(t, shell.ExportTable(ctx, &csv, "bioregions"))
	assert.Contains(t, csv.String(), ",true,#FFFFFF00")

	_, err = store.Load(ctx, domain.DatasetID("nope"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.False(t, shell.Select(ctx, "nope").Available)
}
