package domain

import (
	"fmt"
	"strings"
)

// DatasetID identifies one of the fixed set of scientific layers.
type DatasetID string

const (
	Bioregions          DatasetID = "bioregions"
	HabitatImportance   DatasetID = "habitat_importance"
	PrimaryProductivity DatasetID = "primary_productivity"
	HabitatSuitability  DatasetID = "habitat_suitability"
)

var datasetOrder = []DatasetID{Bioregions, HabitatImportance, PrimaryProductivity, HabitatSuitability}

// Datasets returns every dataset identifier in processing order.
func Datasets() []DatasetID {
	out := make([]DatasetID, len(datasetOrder))
	copy(out, datasetOrder)
	return out
}

// ParseDatasetID validates a selection key. Matching is case-insensitive and
// accepts hyphens in place of underscores.
func ParseDatasetID(s string) (DatasetID, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for _, id := range datasetOrder {
		if string(id) == key {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDataset, s)
}

// Valid reports whether id is one of the known datasets.
func (id DatasetID) Valid() bool {
	for _, known := range datasetOrder {
		if id == known {
			return true
		}
	}
	return false
}

func (id DatasetID) String() string { return string(id) }

// Source describes where a dataset's raster lives and how to read it.
type Source struct {
	// Location is a local path (relative paths resolve against the mirror
	// directory) or an http(s) URL.
	Location string
	// Band selects the raster band, zero-based.
	Band int
	// Categorical marks ordinal class rasters; Levels names the classes in
	// ordinal order.
	Categorical bool
	Levels      []string
}
