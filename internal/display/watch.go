package display

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/fsnotify/fsnotify"

	"github.com/couchcryptid/polar-layers/internal/cache"
	"github.com/couchcryptid/polar-layers/internal/domain"
)

// Invalidator drops stale decoded layers.
type Invalidator interface {
	Invalidate(key domain.DatasetID)
}

// Watcher invalidates decoded layers when their cache files change.
type Watcher struct {
	watcher *fsnotify.Watcher
	target  Invalidator
	logger  *slog.Logger
}

// NewWatcher watches dir, creating it if needed.
func NewWatcher(dir string, target Invalidator, logger *slog.Logger) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{watcher: w, target: target, logger: logger}, nil
}

// Run forwards events until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("cache watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	key, ok := cache.KeyForPath(event.Name)
	if !ok {
		return
	}
	w.logger.Debug("cache file changed", "dataset", key, "op", event.Op.String())
	w.target.Invalidate(key)
}
