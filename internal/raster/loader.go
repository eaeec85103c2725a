// Package raster loads gridded inputs into memory.
package raster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/couchcryptid/polar-layers/internal/domain"
	"github.com/couchcryptid/polar-layers/internal/projection"
)

// Fetcher mirrors a remote URL into dir and returns the local path.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL, dir string) (string, error)
}

// Loader reads rasters from local paths or http(s) URLs.
type Loader struct {
	mirrorDir string
	fetcher   Fetcher
	logger    *slog.Logger
}

// NewLoader creates a loader. fetcher may be nil when only local sources are
// used.
func NewLoader(mirrorDir string, fetcher Fetcher, logger *slog.Logger) *Loader {
	return &Loader{mirrorDir: mirrorDir, fetcher: fetcher, logger: logger}
}

// Load reads the source fully into memory, marks categorical rasters, and
// crops to bbox when given.
func (l *Loader) Load(ctx context.Context, src domain.Source, bbox *domain.BoundingBox) (*domain.GeoRaster, error) {
	path, err := l.Resolve(ctx, src.Location)
	if err != nil {
		return nil, err
	}
	if src.Band != 0 {
		return nil, fmt.Errorf("load %s: band %d requested, ASCII grids have one band", path, src.Band)
	}

	crs, err := l.sidecarCRS(ctx, src.Location, path)
	if err != nil {
		return nil, err
	}

	r, err := readFile(path, crs)
	if err != nil {
		return nil, err
	}
	r.Categorical = src.Categorical
	r.Levels = append([]string(nil), src.Levels...)

	if bbox != nil {
		r, err = projection.Crop(r, *bbox)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	l.logger.Debug("raster loaded", "path", path, "cols", r.Cols, "rows", r.Rows, "crs", r.CRS().String())
	return r, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Resolve turns a source location into a local path, mirroring URLs first.
func (l *Loader) Resolve(ctx context.Context, location string) (string, error) {
	if location == "" {
		return "", fmt.Errorf("load: empty source location: %w", domain.ErrNotFound)
	}
	if isURL(location) {
		if l.fetcher == nil {
			return "", fmt.Errorf("load %s: no fetcher configured for remote sources", location)
		}
		return l.fetcher.Fetch(ctx, location, l.mirrorDir)
	}
	path := location
	if !filepath.IsAbs(path) {
		path = filepath.Join(l.mirrorDir, path)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("load %s: %w", path, domain.ErrNotFound)
		}
		return "", fmt.Errorf("load %s: %w", path, err)
	}
	return path, nil
}

// sidecarPath strips the grid extensions and appends .prj.
func sidecarPath(p string) string {
	p = strings.TrimSuffix(p, ".gz")
	return strings.TrimSuffix(p, filepath.Ext(p)) + ".prj"
}

func (l *Loader) sidecarCRS(ctx context.Context, location, path string) (domain.CRS, error) {
	prj := sidecarPath(path)
	if isURL(location) && l.fetcher != nil {
		fetched, err := l.fetcher.Fetch(ctx, sidecarPath(location), l.mirrorDir)
		switch {
		case err == nil:
			prj = fetched
		case errors.Is(err, domain.ErrNotFound):
			return domain.WGS84, nil
		default:
			return domain.CRS{}, fmt.Errorf("fetch projection sidecar: %w", err)
		}
	}
	data, err := os.ReadFile(prj)
	if errors.Is(err, os.ErrNotExist) {
		return domain.WGS84, nil
	}
	if err != nil {
		return domain.CRS{}, fmt.Errorf("read %s: %w", prj, err)
	}
	crs, err := ParseCRS(string(data))
	if err != nil {
		return domain.CRS{}, fmt.Errorf("%s: %w", prj, err)
	}
	return crs, nil
}

var epsgCode = regexp.MustCompile(`(?i)^epsg:(\d+)$`)

// ParseCRS reads a sidecar: a PROJ string or an EPSG code for one of the
// supported systems.
func ParseCRS(s string) (domain.CRS, error) {
	s = strings.TrimSpace(s)
	if m := epsgCode.FindStringSubmatch(s); m != nil {
		switch m[1] {
		case "4326":
			return domain.WGS84, nil
		case "3031":
			return domain.SouthPolarStereographic, nil
		}
		return domain.CRS{}, fmt.Errorf("%w: EPSG:%s", domain.ErrUnsupportedCRS, m[1])
	}
	if strings.HasPrefix(s, "+") {
		crs := domain.CRS{Proj: s}
		if _, err := projection.ForCRS(crs); err != nil {
			return domain.CRS{}, err
		}
		return crs, nil
	}
	return domain.CRS{}, fmt.Errorf("%w: sidecar is neither a PROJ string nor an EPSG code", domain.ErrUnsupportedCRS)
}

func readFile(path string, crs domain.CRS) (*domain.GeoRaster, error) {
	lower := strings.ToLower(path)
	if !strings.HasSuffix(lower, ".asc") && !strings.HasSuffix(lower, ".asc.gz") {
		return nil, fmt.Errorf("load %s: %w", path, domain.ErrUnsupportedFormat)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var rd io.Reader = f
	if strings.HasSuffix(lower, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, &ParseError{Path: path, Reason: "bad gzip stream: " + err.Error()}
		}
		defer gz.Close()
		rd = gz
	}
	name := strings.TrimSuffix(strings.TrimSuffix(filepath.Base(path), ".gz"), ".asc")
	r, err := ReadASCIIGrid(rd, name, crs)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return nil, err
	}
	return r, nil
}
