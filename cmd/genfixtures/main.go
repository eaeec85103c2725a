// Command genfixtures writes a synthetic mirror directory: one raster per
// catalog dataset, a bathymetry grid, and coastline and ice GeoJSON. The
// output is deterministic so builds over it can be compared byte for byte.
//
// Usage:
//
//	go run ./cmd/genfixtures -out data/raw -cell 1
//	MIRROR_DIR=data/raw COASTLINE_SOURCE=coastline.geojson \
//	  ICE_SOURCE=ice.geojson go run ./cmd/polarlayers build
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/polar-layers/internal/catalog"
	"github.com/couchcryptid/polar-layers/internal/domain"
	"github.com/couchcryptid/polar-layers/internal/raster"
)

const noData = -9999

// grid is the shared fixture geometry: square cells from northLat to the pole.
type grid struct {
	cell     float64
	northLat float64
	cols     int
	rows     int
}

func (g grid) center(col, row int) (lon, lat float64) {
	return -180 + (float64(col)+0.5)*g.cell, g.northLat - (float64(row)+0.5)*g.cell
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "data/raw", "mirror directory to write")
	cell := flag.Float64("cell", 1, "cell size in degrees")
	north := flag.Float64("north", -30, "northern edge of the grids in degrees")
	flag.Parse()

	if *cell <= 0 || 360/(*cell) != math.Trunc(360/(*cell)) {
		return fmt.Errorf("-cell must divide 360, got %g", *cell)
	}
	if *north >= 0 || *north <= -90 {
		return fmt.Errorf("-north must be between -90 and 0, got %g", *north)
	}
	g := grid{
		cell:     *cell,
		northLat: *north,
		cols:     int(360 / *cell),
		rows:     int(math.Round((90 + *north) / *cell)),
	}

	for _, e := range catalog.Entries() {
		r, err := g.raster(e.Source.Location, valueFunc(e.Dataset))
		if err != nil {
			return err
		}
		if err := writeGrid(filepath.Join(*out, e.Source.Location), r); err != nil {
			return fmt.Errorf("writing %s: %w", e.Dataset, err)
		}
		log.Printf("%s: %dx%d cells -> %s", e.Dataset, g.cols, g.rows, e.Source.Location)
	}

	bathy, err := g.raster("bathymetry", depth)
	if err != nil {
		return err
	}
	if err := writeGrid(filepath.Join(*out, "bathymetry", "bathy.asc"), bathy); err != nil {
		return fmt.Errorf("writing bathymetry: %w", err)
	}
	log.Printf("bathymetry: %dx%d cells", g.cols, g.rows)

	if err := writeRings(filepath.Join(*out, "coastline.geojson"), coastline()); err != nil {
		return fmt.Errorf("writing coastline: %w", err)
	}
	if err := writeRings(filepath.Join(*out, "ice.geojson"), iceShelves()); err != nil {
		return fmt.Errorf("writing ice: %w", err)
	}
	log.Printf("wrote fixtures under %s", *out)
	return nil
}

func (g grid) raster(name string, f func(lon, lat float64) float64) (*domain.GeoRaster, error) {
	values := make([]float64, g.cols*g.rows)
	for row := range g.rows {
		for col := range g.cols {
			values[row*g.cols+col] = f(g.center(col, row))
		}
	}
	return domain.NewGeoRaster(name, domain.WGS84,
		domain.GeoTransform{-180, g.cell, 0, g.northLat, 0, -g.cell}, g.cols, g.rows, values)
}

// landLat is the latitude south of which the synthetic continent lies.
const landLat = -70

func valueFunc(id domain.DatasetID) func(lon, lat float64) float64 {
	switch id {
	case domain.Bioregions:
		levels := float64(len(catalog.BioregionLevels()))
		return func(lon, lat float64) float64 {
			if lat < landLat {
				return math.NaN()
			}
			sector := math.Floor((lon + 180) / 90)
			band := math.Floor((lat - landLat) / 10)
			return math.Mod(sector*3+band, levels) + 1
		}
	case domain.HabitatImportance:
		return func(lon, lat float64) float64 {
			if lat < landLat {
				return math.NaN()
			}
			return 0.5 + 0.5*math.Sin(lon*math.Pi/60)*math.Cos((lat+55)*math.Pi/30)
		}
	case domain.PrimaryProductivity:
		return func(lon, lat float64) float64 {
			if lat < landLat {
				return math.NaN()
			}
			return 150 + 400*math.Exp(-math.Pow((lat+60)/8, 2)) + 50*math.Cos(lon*math.Pi/45)
		}
	default:
		return func(lon, lat float64) float64 {
			if lat < landLat {
				return math.NaN()
			}
			return math.Max(0, math.Min(1, (lat+45)/-30+0.1*math.Sin(lon*math.Pi/30)))
		}
	}
}

// depth deepens northward from the shelf break and is no-data over land.
func depth(lon, lat float64) float64 {
	if lat < landLat {
		return math.NaN()
	}
	return -math.Min(6000, 200+(lat-landLat)*180+300*math.Sin(lon*math.Pi/40))
}

// writeGrid writes an ESRI ASCII grid, gzipped when the path ends in .gz.
func writeGrid(path string, r *domain.GeoRaster) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var w io.Writer = f
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(f)
		w = gz
	}
	if err := raster.WriteASCIIGrid(w, r, noData); err != nil {
		return err
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return err
		}
	}
	return f.Close()
}

func ring(lat float64, wobble float64) orb.Ring {
	r := make(orb.Ring, 0, 73)
	for lon := -180.0; lon < 180; lon += 5 {
		r = append(r, orb.Point{lon, lat + wobble*math.Sin(lon*math.Pi/30)})
	}
	return append(r, r[0])
}

func coastline() []orb.Polygon {
	return []orb.Polygon{{ring(landLat, 1.5)}}
}

func iceShelves() []orb.Polygon {
	shelf := func(lon0, lon1, lat float64) orb.Polygon {
		return orb.Polygon{{
			{lon0, landLat - 2}, {lon1, landLat - 2}, {lon1, lat}, {lon0, lat}, {lon0, landLat - 2},
		}}
	}
	return []orb.Polygon{
		shelf(-60, -30, -77), // Weddell
		shelf(160, 179, -78), // Ross
		shelf(60, 75, -72),   // Amery
	}
}

func writeRings(path string, polys []orb.Polygon) error {
	fc := geojson.NewFeatureCollection()
	for _, p := range polys {
		fc.Append(geojson.NewFeature(p))
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
