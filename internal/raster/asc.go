package raster

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/couchcryptid/polar-layers/internal/domain"
)

// ParseError reports a malformed grid file.
type ParseError struct {
	Path   string
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s:%d: %s", e.Path, e.Line, e.Reason)
	}
	return fmt.Sprintf("parse %s: %s", e.Path, e.Reason)
}

// header is the ESRI ASCII grid preamble.
type header struct {
	cols, rows int
	x, y       float64
	center     bool
	dx, dy     float64
	noData     float64
	hasNoData  bool
}

// ReadASCIIGrid parses an ESRI ASCII grid. Values equal to NODATA_value
// become NaN. Rows are stored top to bottom as in the file.
func ReadASCIIGrid(r io.Reader, name string, crs domain.CRS) (*domain.GeoRaster, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<20), 1<<26)

	var (
		h    header
		seen = map[string]bool{}
		line int
		band []float64
	)

	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		key := strings.ToLower(fields[0])
		if band == nil && isHeaderKey(key) {
			if len(fields) != 2 {
				return nil, &ParseError{Path: name, Line: line, Reason: fmt.Sprintf("header %q needs one value", fields[0])}
			}
			if err := h.set(key, fields[1]); err != nil {
				return nil, &ParseError{Path: name, Line: line, Reason: err.Error()}
			}
			seen[key] = true
			continue
		}
		if band == nil {
			if err := h.validate(seen); err != nil {
				return nil, &ParseError{Path: name, Line: line, Reason: err.Error()}
			}
			band = make([]float64, 0, h.cols*h.rows)
		}
		for _, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, &ParseError{Path: name, Line: line, Reason: fmt.Sprintf("bad value %q", f)}
			}
			if h.hasNoData && v == h.noData {
				v = math.NaN()
			}
			band = append(band, v)
		}
		if len(band) > h.cols*h.rows {
			return nil, &ParseError{Path: name, Line: line, Reason: fmt.Sprintf("more than %d values", h.cols*h.rows)}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if band == nil {
		if err := h.validate(seen); err != nil {
			return nil, &ParseError{Path: name, Reason: err.Error()}
		}
		return nil, &ParseError{Path: name, Reason: "no data rows"}
	}
	if len(band) != h.cols*h.rows {
		return nil, &ParseError{Path: name, Line: line, Reason: fmt.Sprintf("got %d values, want %d", len(band), h.cols*h.rows)}
	}

	return domain.NewGeoRaster(name, crs, h.transform(), h.cols, h.rows, band)
}

func isHeaderKey(k string) bool {
	switch k {
	case "ncols", "nrows", "xllcorner", "yllcorner", "xllcenter", "yllcenter",
		"cellsize", "dx", "dy", "nodata_value":
		return true
	}
	return false
}

func (h *header) set(key, val string) error {
	switch key {
	case "ncols", "nrows":
		n, err := strconv.Atoi(val)
		if err != nil || n <= 0 {
			return fmt.Errorf("%s must be a positive integer, got %q", key, val)
		}
		if key == "ncols" {
			h.cols = n
		} else {
			h.rows = n
		}
		return nil
	}

	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fmt.Errorf("%s: bad number %q", key, val)
	}
	switch key {
	case "xllcorner":
		h.x = f
	case "yllcorner":
		h.y = f
	case "xllcenter":
		h.x, h.center = f, true
	case "yllcenter":
		h.y, h.center = f, true
	case "cellsize":
		h.dx, h.dy = f, f
	case "dx":
		h.dx = f
	case "dy":
		h.dy = f
	case "nodata_value":
		h.noData, h.hasNoData = f, true
	}
	return nil
}

func (h *header) validate(seen map[string]bool) error {
	for _, k := range []string{"ncols", "nrows"} {
		if !seen[k] {
			return fmt.Errorf("missing %s", k)
		}
	}
	if !(seen["xllcorner"] || seen["xllcenter"]) || !(seen["yllcorner"] || seen["yllcenter"]) {
		return fmt.Errorf("missing lower-left corner")
	}
	if h.dx <= 0 || h.dy <= 0 {
		return fmt.Errorf("cell size must be positive")
	}
	return nil
}

// transform converts the lower-left anchored header into a top-left GDAL
// transform.
func (h *header) transform() domain.GeoTransform {
	x0, y0 := h.x, h.y
	if h.center {
		x0 -= h.dx / 2
		y0 -= h.dy / 2
	}
	return domain.GeoTransform{x0, h.dx, 0, y0 + float64(h.rows)*h.dy, 0, -h.dy}
}

// WriteASCIIGrid writes band 0 of r as an ESRI ASCII grid. Rasters must be
// north-up with square cells.
func WriteASCIIGrid(w io.Writer, r *domain.GeoRaster, noData float64) error {
	t := r.Transform
	if t[2] != 0 || t[4] != 0 || t[1] != -t[5] {
		return fmt.Errorf("write %s: %w: rotated or non-square grid", r.Name, domain.ErrUnsupportedFormat)
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ncols %d\nnrows %d\n", r.Cols, r.Rows)
	fmt.Fprintf(bw, "xllcorner %s\nyllcorner %s\n", ftoa(t[0]), ftoa(t[3]+float64(r.Rows)*t[5]))
	fmt.Fprintf(bw, "cellsize %s\nNODATA_value %s\n", ftoa(t[1]), ftoa(noData))
	for row := 0; row < r.Rows; row++ {
		for col := 0; col < r.Cols; col++ {
			if col > 0 {
				bw.WriteByte(' ') //nolint:errcheck // flushed below
			}
			v := r.At(0, col, row)
			if math.IsNaN(v) {
				v = noData
			}
			bw.WriteString(ftoa(v)) //nolint:errcheck // flushed below
		}
		bw.WriteByte('\n') //nolint:errcheck // flushed below
	}
	return bw.Flush()
}

func ftoa(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }
