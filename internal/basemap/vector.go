package basemap

import (
	"fmt"
	"math"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"

	"github.com/couchcryptid/polar-layers/internal/domain"
	"github.com/couchcryptid/polar-layers/internal/projection"
)

// LoadPolygons reads a GeoJSON FeatureCollection of (multi)polygons in
// degrees, drops polygons lying wholly north of trimLat and projects the rest.
func LoadPolygons(path string, trimLat float64, tr projection.Transformer) ([]orb.Polygon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w: %v", path, domain.ErrUnsupportedFormat, err)
	}

	fwd := orb.Projection(func(p orb.Point) orb.Point {
		x, y := tr.Forward(p.Lon(), p.Lat())
		return orb.Point{x, y}
	})

	var out []orb.Polygon
	add := func(p orb.Polygon) {
		if len(p) == 0 || p.Bound().Min.Lat() > trimLat {
			return
		}
		out = append(out, project.Polygon(p.Clone(), fwd))
	}
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			add(g)
		case orb.MultiPolygon:
			for _, p := range g {
				add(p)
			}
		}
	}
	return out, nil
}

// Graticule returns projected meridians every meridianStep degrees and
// parallels every parallelStep degrees from trimLat toward the pole.
func Graticule(meridianStep, parallelStep, trimLat float64, tr projection.Transformer) []orb.LineString {
	var lines []orb.LineString
	if meridianStep > 0 {
		for lon := -180.0; lon < 180; lon += meridianStep {
			var ls orb.LineString
			for lat := trimLat; lat >= -90; lat-- {
				x, y := tr.Forward(lon, lat)
				ls = append(ls, orb.Point{x, y})
			}
			lines = append(lines, ls)
		}
	}
	if parallelStep > 0 {
		for lat := trimLat; lat > -90; lat -= parallelStep {
			var ls orb.LineString
			for lon := -180.0; lon <= 180; lon += 2 {
				x, y := tr.Forward(lon, lat)
				ls = append(ls, orb.Point{x, y})
			}
			lines = append(lines, ls)
		}
	}
	return lines
}

// Ring approximates a circle about the pole with n segments. The result is
// closed.
func Ring(radius float64, n int) orb.LineString {
	ls := make(orb.LineString, 0, n+1)
	for i := 0; i <= n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		ls = append(ls, orb.Point{radius * math.Sin(a), radius * math.Cos(a)})
	}
	return ls
}
