// Package display is the read side of the layer cache: selection, export
// and inspection shared by the terminal and HTTP shells. It never
// reprojects or restyles; everything it shows comes from cached layers.
package display

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/couchcryptid/polar-layers/internal/cache"
	"github.com/couchcryptid/polar-layers/internal/domain"
	"github.com/couchcryptid/polar-layers/internal/observability"
	"github.com/couchcryptid/polar-layers/internal/render"
)

// LayerStore is the read API of the layer cache.
type LayerStore interface {
	Load(ctx context.Context, key domain.DatasetID) (domain.StyledMapLayer, error)
	List(ctx context.Context) ([]cache.Entry, error)
}

// Options sizes exports and the decoded-layer cache.
type Options struct {
	Width     int
	Height    int
	CacheSize int
}

// View is the result of selecting a layer. When Available is false, Reason
// says why and Layer is zero.
type View struct {
	Key       domain.DatasetID
	Layer     domain.StyledMapLayer
	Available bool
	Reason    string
}

// Shell serves cached layers to display front ends. It is safe for
// concurrent use.
type Shell struct {
	store   LayerStore
	opts    Options
	cache   *lruCache
	metrics *observability.Metrics
	logger  *slog.Logger

	mu             sync.RWMutex
	showCoastline  bool
	showBoundaries bool
}

// NewShell creates a shell reading from store.
func NewShell(store LayerStore, opts Options, metrics *observability.Metrics, logger *slog.Logger) *Shell {
	return &Shell{
		store:          store,
		opts:           opts,
		cache:          newLRUCache(opts.CacheSize),
		metrics:        metrics,
		logger:         logger,
		showCoastline:  true,
		showBoundaries: true,
	}
}

// Layers lists every dataset with its cache availability.
func (s *Shell) Layers(ctx context.Context) ([]cache.Entry, error) {
	return s.store.List(ctx)
}

// Select resolves key to a view. Unknown keys and missing or unreadable
// entries give an unavailable view rather than an error.
func (s *Shell) Select(ctx context.Context, key string) View {
	id, err := domain.ParseDatasetID(key)
	if err != nil {
		return View{Reason: fmt.Sprintf("unknown layer %q", key)}
	}
	d, err := s.load(ctx, id)
	if err != nil {
		reason := "not available"
		if !errors.Is(err, domain.ErrNotFound) {
			reason = "not available: " + err.Error()
			s.logger.Warn("cached layer unreadable", "dataset", id, "error", err)
		}
		return View{Key: id, Reason: reason}
	}
	return View{Key: id, Layer: d.layer.Clone(), Available: true}
}

func (s *Shell) load(ctx context.Context, id domain.DatasetID) (*decoded, error) {
	if d, ok := s.cache.get(id); ok {
		s.metrics.DisplayCache.WithLabelValues("hit").Inc()
		return d, nil
	}
	s.metrics.DisplayCache.WithLabelValues("miss").Inc()

	gen := s.cache.generation(id)
	layer, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	d := &decoded{layer: layer}
	if data, ok := layer.PrimaryData(); ok {
		d.index = newCellIndex(data)
	}
	if !s.cache.put(id, d, gen) {
		s.logger.Debug("decoded layer invalidated during load", "dataset", id)
	}
	return d, nil
}

func (s *Shell) loadKey(ctx context.Context, key string) (*decoded, error) {
	id, err := domain.ParseDatasetID(key)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// Invalidate drops the decoded copy of key so the next read goes to the
// store.
func (s *Shell) Invalidate(key domain.DatasetID) {
	if s.cache.invalidate(key) {
		s.logger.Debug("decoded layer invalidated", "dataset", key)
	}
}

// SetShowCoastline stores the coastline toggle. Rendering ignores it.
func (s *Shell) SetShowCoastline(v bool) {
	s.mu.Lock()
	s.showCoastline = v
	s.mu.Unlock()
}

// SetShowBoundaries stores the boundaries toggle. Rendering ignores it.
func (s *Shell) SetShowBoundaries(v bool) {
	s.mu.Lock()
	s.showBoundaries = v
	s.mu.Unlock()
}

// Toggles returns the stored coastline and boundaries toggles.
func (s *Shell) Toggles() (coastline, boundaries bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.showCoastline, s.showBoundaries
}

// ExportImage writes the layer as a PNG at the configured size.
func (s *Shell) ExportImage(ctx context.Context, w io.Writer, key string) error {
	d, err := s.loadKey(ctx, key)
	if err != nil {
		return err
	}
	return render.WritePNG(w, d.layer, s.opts.Width, s.opts.Height)
}

// ExportTable writes the layer's data cells as CSV.
func (s *Shell) ExportTable(ctx context.Context, w io.Writer, key string) error {
	d, err := s.loadKey(ctx, key)
	if err != nil {
		return err
	}
	return render.WriteCSV(w, d.layer)
}

// Inspect returns the data cell under the projected coordinate (x, y).
func (s *Shell) Inspect(ctx context.Context, key string, x, y float64) (CellInfo, error) {
	d, err := s.loadKey(ctx, key)
	if err != nil {
		return CellInfo{}, err
	}
	if d.index == nil {
		return CellInfo{}, fmt.Errorf("inspect %s: %w", d.layer.Dataset, domain.ErrNotFound)
	}
	cell, ok := d.index.lookup(x, y)
	if !ok {
		return CellInfo{}, fmt.Errorf("inspect %s at (%.0f, %.0f): %w", d.layer.Dataset, x, y, domain.ErrNotFound)
	}

	info := CellInfo{
		Dataset: d.layer.Dataset,
		X:       cell.X,
		Y:       cell.Y,
		Missing: cell.Missing,
		Fill:    cell.Fill.Hex(),
	}
	if !cell.Missing {
		v := cell.Value
		info.Value = &v
		if legend, ok := d.layer.Legend(); ok && legend.Kind == domain.Discrete {
			if k := int(math.Round(v)); k >= 1 && k <= len(legend.Entries) {
				info.Label = legend.Entries[k-1].Label
			}
		}
	}
	return info, nil
}

// CheckReadiness reports whether the cache directory can be listed.
func (s *Shell) CheckReadiness(ctx context.Context) error {
	_, err := s.store.List(ctx)
	return err
}
