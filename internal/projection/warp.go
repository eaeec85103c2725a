package projection

import (
	"context"
	"fmt"
	"math"

	"github.com/couchcryptid/polar-layers/internal/domain"
)

// Resampling selects how source cells are sampled at target cell centres.
type Resampling int

const (
	// Auto picks Nearest for categorical rasters and Bilinear otherwise.
	Auto Resampling = iota
	Nearest
	Bilinear
)

// Options controls a projection run.
type Options struct {
	Band int
	// CellSize is the target resolution in target CRS units. Zero keeps
	// roughly the source cell count.
	CellSize   float64
	Resampling Resampling
	Filters    []Filter
}

// Project warps a raster onto a regular grid in the target CRS and returns
// one record per target cell. Target cells whose centre falls outside the
// source grid are omitted; cells inside it that sample no-data are kept and
// marked missing.
func Project(ctx context.Context, r *domain.GeoRaster, target domain.CRS, opts Options) (domain.TabularCells, error) {
	out := domain.TabularCells{
		CRS:         target,
		Categorical: r.Categorical,
		Levels:      append([]string(nil), r.Levels...),
	}
	if opts.Band < 0 || opts.Band >= len(r.Bands) {
		return out, fmt.Errorf("project %q: band %d out of range (%d bands)", r.Name, opts.Band, len(r.Bands))
	}
	src, err := ForCRS(r.CRS())
	if err != nil {
		return out, fmt.Errorf("project %q: source: %w", r.Name, err)
	}
	dst, err := ForCRS(target)
	if err != nil {
		return out, fmt.Errorf("project %q: target: %w", r.Name, err)
	}

	minX, minY, maxX, maxY, ok := targetExtent(r, src, dst)
	if !ok {
		return out, nil
	}

	cs := opts.CellSize
	if cs <= 0 {
		cs = math.Sqrt((maxX - minX) * (maxY - minY) / float64(r.Cols*r.Rows))
	}
	if cs <= 0 || math.IsNaN(cs) || math.IsInf(cs, 0) {
		return out, fmt.Errorf("project %q: degenerate target extent", r.Name)
	}
	out.CellSize = cs

	nx := int(math.Ceil((maxX - minX) / cs))
	ny := int(math.Ceil((maxY - minY) / cs))
	if nx < 1 {
		nx = 1
	}
	if ny < 1 {
		ny = 1
	}

	mode := opts.Resampling
	if mode == Auto {
		mode = Bilinear
		if r.Categorical {
			mode = Nearest
		}
	}

	s := sampler{r: r, band: r.Bands[opts.Band], geographic: r.CRS().IsGeographic()}
	out.Cells = make([]domain.Cell, 0, nx*ny)
	for j := 0; j < ny; j++ {
		if err := ctx.Err(); err != nil {
			return domain.TabularCells{}, err
		}
		y := maxY - (float64(j)+0.5)*cs
		for i := 0; i < nx; i++ {
			x := minX + (float64(i)+0.5)*cs
			lon, lat := dst.Inverse(x, y)
			if !keepAll(opts.Filters, lon, lat) {
				continue
			}
			sx, sy := src.Forward(lon, lat)
			col, row, inside := s.locate(sx, sy)
			if !inside {
				continue
			}
			var v float64
			if mode == Nearest {
				v = s.nearest(col, row)
			} else {
				v = s.bilinear(col, row)
			}
			out.Cells = append(out.Cells, domain.Cell{X: x, Y: y, Value: v, Missing: math.IsNaN(v)})
		}
	}
	return out, nil
}

// targetExtent projects every source cell corner and returns the bounding
// rectangle in target coordinates.
func targetExtent(r *domain.GeoRaster, src, dst Transformer) (minX, minY, maxX, maxY float64, ok bool) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for row := 0; row <= r.Rows; row++ {
		for col := 0; col <= r.Cols; col++ {
			sx, sy := r.Transform.Apply(float64(col), float64(row))
			lon, lat := src.Inverse(sx, sy)
			lat = math.Max(-90, math.Min(90, lat))
			x, y := dst.Forward(lon, lat)
			if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
				continue
			}
			minX, maxX = math.Min(minX, x), math.Max(maxX, x)
			minY, maxY = math.Min(minY, y), math.Max(maxY, y)
			ok = true
		}
	}
	if ok && (maxX <= minX || maxY <= minY) {
		ok = false
	}
	return minX, minY, maxX, maxY, ok
}

type sampler struct {
	r          *domain.GeoRaster
	band       []float64
	geographic bool
}

// locate maps source coordinates to fractional grid coordinates. Longitudes
// are shifted by a full turn when that brings them onto the grid.
func (s sampler) locate(sx, sy float64) (col, row float64, inside bool) {
	col, row, ok := s.r.Transform.Invert(sx, sy)
	if !ok {
		return 0, 0, false
	}
	if s.geographic && !s.onGrid(col, row) {
		for _, shift := range []float64{360, -360} {
			c, rr, _ := s.r.Transform.Invert(sx+shift, sy)
			if s.onGrid(c, rr) {
				return c, rr, true
			}
		}
	}
	return col, row, s.onGrid(col, row)
}

func (s sampler) onGrid(col, row float64) bool {
	return col >= 0 && row >= 0 && col <= float64(s.r.Cols) && row <= float64(s.r.Rows)
}

func (s sampler) value(col, row int) float64 {
	col = clampInt(col, 0, s.r.Cols-1)
	row = clampInt(row, 0, s.r.Rows-1)
	return s.band[row*s.r.Cols+col]
}

func (s sampler) nearest(col, row float64) float64 {
	return s.value(int(math.Floor(col)), int(math.Floor(row)))
}

// bilinear interpolates between the four surrounding cell centres and falls
// back to nearest when any of them is no-data.
func (s sampler) bilinear(col, row float64) float64 {
	fc, fr := col-0.5, row-0.5
	c0, r0 := int(math.Floor(fc)), int(math.Floor(fr))
	tx, ty := fc-float64(c0), fr-float64(r0)

	v00 := s.value(c0, r0)
	v10 := s.value(c0+1, r0)
	v01 := s.value(c0, r0+1)
	v11 := s.value(c0+1, r0+1)
	if math.IsNaN(v00) || math.IsNaN(v10) || math.IsNaN(v01) || math.IsNaN(v11) {
		return s.nearest(col, row)
	}
	top := v00*(1-tx) + v10*tx
	bottom := v01*(1-tx) + v11*tx
	return top*(1-ty) + bottom*ty
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
