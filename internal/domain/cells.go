package domain

import "math"

// Cell is one tabulated raster cell in the target CRS.
type Cell struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Value   float64 `json:"value"`
	Missing bool    `json:"missing,omitempty"`
}

// TabularCells is the long-format form of a reprojected raster.
type TabularCells struct {
	CRS         CRS
	CellSize    float64
	Categorical bool
	Levels      []string
	Cells       []Cell
}

// Len returns the number of records.
func (t TabularCells) Len() int { return len(t.Cells) }

// ValueRange returns the min and max of non-missing values. ok is false when
// every cell is missing.
func (t TabularCells) ValueRange() (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, c := range t.Cells {
		if c.Missing || math.IsNaN(c.Value) {
			continue
		}
		lo = math.Min(lo, c.Value)
		hi = math.Max(hi, c.Value)
		ok = true
	}
	if !ok {
		return 0, 0, false
	}
	return lo, hi, true
}

// Filter returns a copy holding only the cells for which keep returns true.
func (t TabularCells) Filter(keep func(Cell) bool) TabularCells {
	out := t
	out.Levels = append([]string(nil), t.Levels...)
	out.Cells = make([]Cell, 0, len(t.Cells))
	for _, c := range t.Cells {
		if keep(c) {
			out.Cells = append(out.Cells, c)
		}
	}
	return out
}
