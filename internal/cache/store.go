// Package cache persists styled layers, one file per dataset, and reads them
// back for the display shells.
package cache

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/couchcryptid/polar-layers/internal/domain"
)

const (
	filePrefix = "plot_"
	fileSuffix = ".gob.zst"

	// fileMode lets display shells running as other users read entries.
	fileMode = 0o644
)

// Entry describes the cache state of one dataset.
type Entry struct {
	Dataset   domain.DatasetID `json:"dataset"`
	Path      string           `json:"path"`
	Available bool             `json:"available"`
	Size      int64            `json:"size,omitempty"`
	Modified  time.Time        `json:"modified,omitzero"`
}

// Store reads and writes layer files under a single directory.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory is created on the
// first Save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the cache directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the file for key.
func (s *Store) Path(key domain.DatasetID) string {
	return filepath.Join(s.dir, filePrefix+string(key)+fileSuffix)
}

// KeyForPath reports which dataset a cache file belongs to.
func KeyForPath(path string) (domain.DatasetID, bool) {
	base := filepath.Base(path)
	if !strings.HasPrefix(base, filePrefix) || !strings.HasSuffix(base, fileSuffix) {
		return "", false
	}
	id := domain.DatasetID(strings.TrimSuffix(strings.TrimPrefix(base, filePrefix), fileSuffix))
	return id, id.Valid()
}

// Save writes layer under key, replacing any previous entry wholesale. The
// file is written beside its final name and renamed into place.
func (s *Store) Save(ctx context.Context, key domain.DatasetID, layer domain.StyledMapLayer) (string, error) {
	if !key.Valid() {
		return "", fmt.Errorf("save %q: %w", key, domain.ErrUnknownDataset)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+filePrefix+string(key)+"-*")
	if err != nil {
		return "", fmt.Errorf("save %s: %w", key, err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after rename

	if err := encode(tmp, layer); err != nil {
		tmp.Close()
		return "", fmt.Errorf("save %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("save %s: %w", key, err)
	}
	if err := os.Chmod(tmp.Name(), fileMode); err != nil {
		return "", fmt.Errorf("save %s: %w", key, err)
	}

	path := s.Path(key)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("save %s: %w", key, err)
	}
	return path, nil
}

func encode(f *os.File, layer domain.StyledMapLayer) error {
	zw, err := zstd.NewWriter(f)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(zw).Encode(layer); err != nil {
		zw.Close()
		return fmt.Errorf("encode: %w", err)
	}
	return zw.Close()
}

// Load reads the layer for key. Unknown keys wrap domain.ErrUnknownDataset
// and absent entries wrap domain.ErrLayerUnavailable; both match
// domain.ErrNotFound.
func (s *Store) Load(ctx context.Context, key domain.DatasetID) (domain.StyledMapLayer, error) {
	if !key.Valid() {
		return domain.StyledMapLayer{}, fmt.Errorf("load %q: %w", key, domain.ErrUnknownDataset)
	}
	if err := ctx.Err(); err != nil {
		return domain.StyledMapLayer{}, err
	}

	f, err := os.Open(s.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return domain.StyledMapLayer{}, fmt.Errorf("load %s: %w", key, domain.ErrLayerUnavailable)
	}
	if err != nil {
		return domain.StyledMapLayer{}, fmt.Errorf("load %s: %w", key, err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return domain.StyledMapLayer{}, fmt.Errorf("load %s: %w", key, err)
	}
	defer zr.Close()

	var layer domain.StyledMapLayer
	if err := gob.NewDecoder(zr).Decode(&layer); err != nil {
		return domain.StyledMapLayer{}, fmt.Errorf("load %s: decode: %w", key, err)
	}
	return layer, nil
}

// List reports availability of every dataset in catalog order.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	ids := domain.Datasets()
	out := make([]Entry, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e := Entry{Dataset: id, Path: s.Path(id)}
		info, err := os.Stat(e.Path)
		switch {
		case err == nil:
			e.Available = true
			e.Size = info.Size()
			e.Modified = info.ModTime().UTC()
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("stat %s: %w", e.Path, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Remove deletes the entry for key. Removing an absent entry is not an error.
func (s *Store) Remove(key domain.DatasetID) error {
	if !key.Valid() {
		return fmt.Errorf("remove %q: %w", key, domain.ErrUnknownDataset)
	}
	if err := os.Remove(s.Path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}
