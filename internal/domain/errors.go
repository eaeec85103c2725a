package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by every lookup failure, including unknown keys
	// and missing cache entries.
	ErrNotFound = errors.New("not found")

	// ErrUnknownDataset is returned for selection keys outside the fixed set.
	ErrUnknownDataset = fmt.Errorf("unknown dataset: %w", ErrNotFound)

	// ErrLayerUnavailable means the key is valid but no cache entry exists.
	ErrLayerUnavailable = fmt.Errorf("layer unavailable: %w", ErrNotFound)

	ErrEmptyRaster       = errors.New("raster has no cells")
	ErrUnsupportedFormat = errors.New("unsupported raster format")
	ErrUnsupportedCRS    = errors.New("unsupported coordinate reference system")
)
