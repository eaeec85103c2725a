package projection

import "github.com/couchcryptid/polar-layers/internal/domain"

// Filter decides, from a target cell's back-projected geographic position,
// whether the cell is kept.
type Filter interface {
	Keep(lon, lat float64) bool
}

// BoundingBoxFilter drops cells outside an inclusive geographic box.
type BoundingBoxFilter struct {
	Box domain.BoundingBox
}

func (f BoundingBoxFilter) Keep(lon, lat float64) bool {
	return f.Box.Contains(lon, lat)
}

// LatitudeFilter keeps only cells strictly south of NorthOf. A cell lying
// exactly on NorthOf is dropped.
type LatitudeFilter struct {
	NorthOf float64
}

func (f LatitudeFilter) Keep(_, lat float64) bool {
	return lat < f.NorthOf
}

// FilterCells back-projects already tabulated cells and applies filters.
// The result is a new table.
func FilterCells(tab domain.TabularCells, filters ...Filter) (domain.TabularCells, error) {
	if len(filters) == 0 {
		return tab.Filter(func(domain.Cell) bool { return true }), nil
	}
	tr, err := ForCRS(tab.CRS)
	if err != nil {
		return domain.TabularCells{}, err
	}
	return tab.Filter(func(c domain.Cell) bool {
		lon, lat := tr.Inverse(c.X, c.Y)
		return keepAll(filters, lon, lat)
	}), nil
}

func keepAll(filters []Filter, lon, lat float64) bool {
	for _, f := range filters {
		if !f.Keep(lon, lat) {
			return false
		}
	}
	return true
}
