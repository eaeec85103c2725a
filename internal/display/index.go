package display

import (
	"math"

	"github.com/dhconnelly/rtreego"

	"github.com/couchcryptid/polar-layers/internal/domain"
)

// CellInfo is the data cell found under an inspected coordinate.
type CellInfo struct {
	Dataset domain.DatasetID `json:"dataset"`
	X       float64          `json:"x"`
	Y       float64          `json:"y"`
	Value   *float64         `json:"value"`
	Label   string           `json:"label,omitempty"`
	Missing bool             `json:"missing"`
	Fill    string           `json:"fill"`
}

// indexedCell wraps a data cell for R-tree storage.
type indexedCell struct {
	i    int
	rect rtreego.Rect
}

func (c *indexedCell) Bounds() rtreego.Rect { return c.rect }

// cellIndex answers point lookups against the square footprints of the data
// cells.
type cellIndex struct {
	cells []domain.FilledCell
	tree  *rtreego.Rtree
}

func newCellIndex(data domain.Drawable) *cellIndex {
	size := data.CellSize
	if size <= 0 {
		size = 1
	}
	objs := make([]rtreego.Spatial, 0, len(data.Cells))
	for i, c := range data.Cells {
		rect, err := rtreego.NewRect(rtreego.Point{c.X - size/2, c.Y - size/2}, []float64{size, size})
		if err != nil {
			continue
		}
		objs = append(objs, &indexedCell{i: i, rect: rect})
	}
	return &cellIndex{
		cells: data.Cells,
		tree:  rtreego.NewTree(2, 25, 50, objs...),
	}
}

// lookup returns the cell whose footprint contains (x, y). When footprints
// touch, the cell with the nearest centre wins.
func (ix *cellIndex) lookup(x, y float64) (domain.FilledCell, bool) {
	hits := ix.tree.SearchIntersect(rtreego.Point{x, y}.ToRect(1e-9))
	best, bestD := -1, math.Inf(1)
	for _, h := range hits {
		c := h.(*indexedCell)
		cell := ix.cells[c.i]
		if d := math.Hypot(cell.X-x, cell.Y-y); d < bestD {
			best, bestD = c.i, d
		}
	}
	if best < 0 {
		return domain.FilledCell{}, false
	}
	return ix.cells[best], true
}
