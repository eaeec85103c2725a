package catalog

import (
	"fmt"

	"github.com/couchcryptid/polar-layers/internal/domain"
)

// Override replaces parts of a built-in entry. Zero fields keep the default.
type Override struct {
	Title  string              `yaml:"title"`
	Source string              `yaml:"source"`
	Band   *int                `yaml:"band"`
	Crop   *domain.BoundingBox `yaml:"crop"`
}

// Resolve returns the built-in entries with overrides applied. Keys must be
// known dataset identifiers.
func Resolve(overrides map[domain.DatasetID]Override) ([]Entry, error) {
	for id := range overrides {
		if !id.Valid() {
			return nil, fmt.Errorf("catalog override %q: %w", id, domain.ErrUnknownDataset)
		}
	}
	entries := Entries()
	for i := range entries {
		o, ok := overrides[entries[i].Dataset]
		if !ok {
			continue
		}
		if o.Title != "" {
			entries[i].Title = o.Title
		}
		if o.Source != "" {
			entries[i].Source.Location = o.Source
		}
		if o.Band != nil {
			if *o.Band < 0 {
				return nil, fmt.Errorf("catalog override %q: band %d is negative", entries[i].Dataset, *o.Band)
			}
			entries[i].Source.Band = *o.Band
		}
		if o.Crop != nil {
			if err := o.Crop.Validate(); err != nil {
				return nil, fmt.Errorf("catalog override %q: %w", entries[i].Dataset, err)
			}
			crop := *o.Crop
			entries[i].Crop = &crop
		}
	}
	return entries, nil
}
