// Package basemap builds the shared cartographic template: binned
// bathymetry, ice and coastline polygons, a graticule and the map border.
package basemap

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/polar-layers/internal/config"
	"github.com/couchcryptid/polar-layers/internal/domain"
	"github.com/couchcryptid/polar-layers/internal/palette"
	"github.com/couchcryptid/polar-layers/internal/projection"
)

// RasterLoader is the subset of the raster loader the builder needs.
type RasterLoader interface {
	Load(ctx context.Context, src domain.Source, bbox *domain.BoundingBox) (*domain.GeoRaster, error)
	Resolve(ctx context.Context, location string) (string, error)
}

var (
	iceFill       = domain.Color{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	coastlineFill = domain.Color{R: 0xD9, G: 0xD9, B: 0xD9, A: 0xFF}
	graticuleLine = domain.Color{R: 0x80, G: 0x80, B: 0x80, A: 0xB0}
	borderLine    = domain.Color{R: 0x00, G: 0x00, B: 0x00, A: 0xFF}
)

// Builder assembles the base map. It is safe to reuse; Build has no side
// effects besides reading inputs.
type Builder struct {
	cfg      config.BaseMapConfig
	cellSize float64
	loader   RasterLoader
	logger   *slog.Logger
}

// NewBuilder creates a builder. cellSize is the bathymetry target resolution;
// zero keeps the source cell count.
func NewBuilder(cfg config.BaseMapConfig, cellSize float64, loader RasterLoader, logger *slog.Logger) *Builder {
	return &Builder{cfg: cfg, cellSize: cellSize, loader: loader, logger: logger}
}

// Build produces the template. Any failure is fatal to the run.
func (b *Builder) Build(ctx context.Context) (*domain.BaseMap, error) {
	proj, err := projection.NewSouthPolarStereographic(-71, 0)
	if err != nil {
		return nil, fmt.Errorf("base map projection: %w", err)
	}

	trim := domain.BoundingBox{MinLon: -180, MaxLon: 180, MinLat: -90, MaxLat: b.cfg.TrimLatitude}
	raw, err := b.loader.Load(ctx, domain.Source{Location: b.cfg.BathymetrySource}, &trim)
	if err != nil {
		return nil, fmt.Errorf("bathymetry: %w", err)
	}
	tab, err := projection.Project(ctx, raw, domain.SouthPolarStereographic, projection.Options{
		CellSize: b.cellSize,
		Filters:  []projection.Filter{projection.BoundingBoxFilter{Box: trim}},
	})
	if err != nil {
		return nil, fmt.Errorf("bathymetry: %w", err)
	}

	bathy, radius, err := binBathymetry(tab, palette.Bathymetry())
	if err != nil {
		return nil, err
	}
	drawables := []domain.Drawable{bathy}

	for _, layer := range []struct {
		name   string
		kind   domain.DrawableKind
		source string
		fill   domain.Color
	}{
		{"ice", domain.KindIce, b.cfg.IceSource, iceFill},
		{"coastline", domain.KindCoastline, b.cfg.CoastlineSource, coastlineFill},
	} {
		if layer.source == "" {
			b.logger.Debug("base map layer skipped, no source", "layer", layer.name)
			continue
		}
		path, err := b.loader.Resolve(ctx, layer.source)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", layer.name, err)
		}
		polys, err := LoadPolygons(path, b.cfg.TrimLatitude, proj)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", layer.name, err)
		}
		drawables = append(drawables, domain.Drawable{
			Name:     layer.name,
			Kind:     layer.kind,
			Style:    domain.Style{Fill: layer.fill},
			Polygons: polys,
		})
	}

	drawables = append(drawables,
		domain.Drawable{
			Name:  "graticule",
			Kind:  domain.KindGraticule,
			Style: domain.Style{Stroke: graticuleLine, StrokeWidth: 0.5},
			Lines: Graticule(b.cfg.MeridianStep, b.cfg.ParallelStep, b.cfg.TrimLatitude, proj),
		},
		domain.Drawable{
			Name:  "border",
			Kind:  domain.KindBorder,
			Style: domain.Style{Stroke: borderLine, StrokeWidth: b.cfg.BorderWidth},
			Lines: []orb.LineString{Ring(radius, 360)},
		},
	)

	base := domain.NewBaseMap(domain.SouthPolarStereographic, radius, palette.Bathymetry()[0], drawables...)
	b.logger.Info("base map built", "cells", len(bathy.Cells), "radius_m", math.Round(radius), "drawables", len(drawables))
	return base, nil
}

// binBathymetry maps depths onto equal-width bins between the shallowest and
// deepest values. bins[0] is the deepest. It returns the drawable and the
// largest distance from the pole of any valid cell.
func binBathymetry(tab domain.TabularCells, bins []domain.Color) (domain.Drawable, float64, error) {
	lo, hi, ok := tab.ValueRange()
	if !ok {
		return domain.Drawable{}, 0, fmt.Errorf("bathymetry: %w", domain.ErrEmptyRaster)
	}

	var radius float64
	cells := make([]domain.FilledCell, len(tab.Cells))
	for i, c := range tab.Cells {
		fc := domain.FilledCell{X: c.X, Y: c.Y, Value: c.Value, Missing: c.Missing, Fill: domain.Transparent}
		if !c.Missing {
			fc.Fill = bins[BinIndex(c.Value, lo, hi, len(bins))]
			radius = math.Max(radius, math.Hypot(c.X, c.Y))
		}
		cells[i] = fc
	}
	return domain.Drawable{
		Name:     "bathymetry",
		Kind:     domain.KindBathymetry,
		CellSize: tab.CellSize,
		Cells:    cells,
	}, radius, nil
}

// BinIndex returns the equal-width bin of v within [lo, hi]; 0 holds lo.
func BinIndex(v, lo, hi float64, n int) int {
	if hi <= lo || n <= 1 {
		return 0
	}
	i := int(math.Floor((v - lo) / (hi - lo) * float64(n)))
	return max(0, min(n-1, i))
}
