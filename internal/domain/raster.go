package domain

import (
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
)

// CRS is a coordinate reference system expressed as a PROJ string.
type CRS struct {
	Code string `json:"code"`
	Proj string `json:"proj"`
}

var (
	WGS84 = CRS{
		Code: "EPSG:4326",
		Proj: "+proj=longlat +datum=WGS84 +no_defs",
	}
	SouthPolarStereographic = CRS{
		Code: "EPSG:3031",
		Proj: "+proj=stere +lat_0=-90 +lat_ts=-71 +lon_0=0 +k=1 +x_0=0 +y_0=0 +datum=WGS84 +units=m +no_defs",
	}
)

// IsGeographic reports whether coordinates are longitude/latitude degrees.
func (c CRS) IsGeographic() bool {
	return strings.Contains(c.Proj, "+proj=longlat") || strings.Contains(c.Proj, "+proj=latlong")
}

func (c CRS) String() string {
	if c.Code != "" {
		return c.Code
	}
	return c.Proj
}

// GeoTransform is a GDAL-ordered affine transform from (col, row) to (x, y).
type GeoTransform [6]float64

// Apply maps fractional grid coordinates to CRS coordinates.
func (t GeoTransform) Apply(col, row float64) (x, y float64) {
	return t[0] + col*t[1] + row*t[2], t[3] + col*t[4] + row*t[5]
}

// Invert maps CRS coordinates back to fractional grid coordinates.
// The second result is false for a degenerate transform.
func (t GeoTransform) Invert(x, y float64) (col, row float64, ok bool) {
	det := t[1]*t[5] - t[2]*t[4]
	if det == 0 {
		return 0, 0, false
	}
	dx, dy := x-t[0], y-t[3]
	col = (dx*t[5] - dy*t[2]) / det
	row = (dy*t[1] - dx*t[4]) / det
	return col, row, true
}

// CellSize is the absolute pixel width, the nominal resolution of the grid.
func (t GeoTransform) CellSize() float64 {
	return math.Hypot(t[1], t[4])
}

// GeoRaster is an in-memory grid with an immutable CRS.
type GeoRaster struct {
	Name      string
	Cols      int
	Rows      int
	Transform GeoTransform
	// Bands holds row-major cell values per band. NaN marks no-data.
	Bands [][]float64

	Categorical bool
	Levels      []string

	crs CRS
}

// NewGeoRaster validates band sizes and binds the CRS.
func NewGeoRaster(name string, crs CRS, transform GeoTransform, cols, rows int, bands ...[]float64) (*GeoRaster, error) {
	if cols <= 0 || rows <= 0 {
		return nil, fmt.Errorf("raster %q: %w", name, ErrEmptyRaster)
	}
	if len(bands) == 0 {
		return nil, fmt.Errorf("raster %q: no bands", name)
	}
	for i, b := range bands {
		if len(b) != cols*rows {
			return nil, fmt.Errorf("raster %q: band %d has %d values, want %d", name, i, len(b), cols*rows)
		}
	}
	return &GeoRaster{
		Name:      name,
		Cols:      cols,
		Rows:      rows,
		Transform: transform,
		Bands:     bands,
		crs:       crs,
	}, nil
}

// CRS returns the raster's coordinate reference system.
func (r *GeoRaster) CRS() CRS { return r.crs }

// At returns the value of a cell, or NaN when out of range.
func (r *GeoRaster) At(band, col, row int) float64 {
	if band < 0 || band >= len(r.Bands) || col < 0 || col >= r.Cols || row < 0 || row >= r.Rows {
		return math.NaN()
	}
	return r.Bands[band][row*r.Cols+col]
}

// CellCenter returns the CRS coordinate of a cell centre.
func (r *GeoRaster) CellCenter(col, row int) (x, y float64) {
	return r.Transform.Apply(float64(col)+0.5, float64(row)+0.5)
}

// Window returns a copy of the sub-grid starting at (col0, row0).
func (r *GeoRaster) Window(col0, row0, cols, rows int) (*GeoRaster, error) {
	if col0 < 0 || row0 < 0 || cols <= 0 || rows <= 0 || col0+cols > r.Cols || row0+rows > r.Rows {
		return nil, fmt.Errorf("raster %q: window %d,%d %dx%d outside %dx%d: %w",
			r.Name, col0, row0, cols, rows, r.Cols, r.Rows, ErrEmptyRaster)
	}
	bands := make([][]float64, len(r.Bands))
	for b := range r.Bands {
		out := make([]float64, 0, cols*rows)
		for row := row0; row < row0+rows; row++ {
			start := row*r.Cols + col0
			out = append(out, r.Bands[b][start:start+cols]...)
		}
		bands[b] = out
	}
	ox, oy := r.Transform.Apply(float64(col0), float64(row0))
	t := r.Transform
	t[0], t[3] = ox, oy

	w, err := NewGeoRaster(r.Name, r.crs, t, cols, rows, bands...)
	if err != nil {
		return nil, err
	}
	w.Categorical = r.Categorical
	w.Levels = append([]string(nil), r.Levels...)
	return w, nil
}

// BoundingBox is a geographic crop region in degrees. Bounds are inclusive.
type BoundingBox struct {
	MinLon float64 `yaml:"min_lon" json:"min_lon"`
	MaxLon float64 `yaml:"max_lon" json:"max_lon"`
	MinLat float64 `yaml:"min_lat" json:"min_lat"`
	MaxLat float64 `yaml:"max_lat" json:"max_lat"`
}

// Contains reports whether the coordinate lies inside or on the box.
func (b BoundingBox) Contains(lon, lat float64) bool {
	return lon >= b.MinLon && lon <= b.MaxLon && lat >= b.MinLat && lat <= b.MaxLat
}

// Bound converts the box to an orb.Bound with lon on X and lat on Y.
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.MinLon, b.MinLat}, Max: orb.Point{b.MaxLon, b.MaxLat}}
}

// Validate rejects inverted or out-of-range boxes.
func (b BoundingBox) Validate() error {
	if b.MinLon > b.MaxLon || b.MinLat > b.MaxLat {
		return fmt.Errorf("bounding box %v is inverted", b)
	}
	if b.MinLon < -180 || b.MaxLon > 180 || b.MinLat < -90 || b.MaxLat > 90 {
		return fmt.Errorf("bounding box %v is outside geographic range", b)
	}
	return nil
}
