package projection

import (
	"fmt"
	"math"

	"github.com/couchcryptid/polar-layers/internal/domain"
)

// Crop returns the smallest window of r whose cells cover the geographic
// box. Geographic rasters are cropped on their own grid; projected rasters
// are cropped on back-projected cell centres.
func Crop(r *domain.GeoRaster, box domain.BoundingBox) (*domain.GeoRaster, error) {
	if err := box.Validate(); err != nil {
		return nil, fmt.Errorf("crop %q: %w", r.Name, err)
	}
	tr, err := ForCRS(r.CRS())
	if err != nil {
		return nil, fmt.Errorf("crop %q: %w", r.Name, err)
	}

	if r.CRS().IsGeographic() {
		return cropGeographic(r, box)
	}

	col0, row0 := r.Cols, r.Rows
	col1, row1 := -1, -1
	for row := 0; row < r.Rows; row++ {
		for col := 0; col < r.Cols; col++ {
			x, y := r.CellCenter(col, row)
			lon, lat := tr.Inverse(x, y)
			if !box.Contains(lon, lat) {
				continue
			}
			col0, col1 = min(col0, col), max(col1, col)
			row0, row1 = min(row0, row), max(row1, row)
		}
	}
	if col1 < 0 {
		return nil, fmt.Errorf("crop %q: no cells inside %v: %w", r.Name, box, domain.ErrEmptyRaster)
	}
	return r.Window(col0, row0, col1-col0+1, row1-row0+1)
}

func cropGeographic(r *domain.GeoRaster, box domain.BoundingBox) (*domain.GeoRaster, error) {
	ca, ra, okA := r.Transform.Invert(box.MinLon, box.MaxLat)
	cb, rb, okB := r.Transform.Invert(box.MaxLon, box.MinLat)
	if !okA || !okB {
		return nil, fmt.Errorf("crop %q: degenerate transform", r.Name)
	}
	col0 := clampInt(int(math.Floor(math.Min(ca, cb))), 0, r.Cols)
	col1 := clampInt(int(math.Ceil(math.Max(ca, cb))), 0, r.Cols)
	row0 := clampInt(int(math.Floor(math.Min(ra, rb))), 0, r.Rows)
	row1 := clampInt(int(math.Ceil(math.Max(ra, rb))), 0, r.Rows)
	if col1 <= col0 || row1 <= row0 {
		return nil, fmt.Errorf("crop %q: no cells inside %v: %w", r.Name, box, domain.ErrEmptyRaster)
	}
	return r.Window(col0, row0, col1-col0, row1-row0)
}
