// Package catalog is the static dispatch table from dataset identifier to
// its source, crop and styling policy.
package catalog

import (
	"fmt"

	"github.com/couchcryptid/polar-layers/internal/domain"
	"github.com/couchcryptid/polar-layers/internal/palette"
	"github.com/couchcryptid/polar-layers/internal/projection"
)

// Entry is the full processing policy for one dataset.
type Entry struct {
	Dataset domain.DatasetID
	Title   string
	Source  domain.Source
	Palette domain.PaletteRule

	// Crop is applied at load time and again after projection. Nil means the
	// full extent.
	Crop *domain.BoundingBox

	// Latitude is applied after projection by back-projecting each cell.
	Latitude *projection.LatitudeFilter

	// Background draws a filled circle behind the data, coloured like the
	// deepest bathymetry bin.
	Background bool
}

type bioregion struct {
	name string
	hex  string
}

var bioregions = []bioregion{
	{"Antarctic Shelf", "#1B9E77"},
	{"Antarctic Slope", "#D95F02"},
	{"Weddell Gyre", "#94FA8D"},
	{"Ross Gyre", "#7570B3"},
	{"Seasonal Ice Zone", "#E7298A"},
	{"Southern ACC", "#66A61E"},
	{"Polar Front Zone", "#E6AB02"},
	{"Subantarctic Zone", "#A6761D"},
	{"Kerguelen Plateau", "#1F78B4"},
	{"Campbell Plateau", "#FB9A99"},
	{"Scotia Arc", "#CAB2D6"},
	{"Subtropical Front", "#FFED6F"},
}

// BioregionLevels returns the class names in ordinal order.
func BioregionLevels() []string {
	out := make([]string, len(bioregions))
	for i, b := range bioregions {
		out[i] = b.name
	}
	return out
}

func bioregionRule() domain.PaletteRule {
	cats := make([]domain.Category, len(bioregions))
	for i, b := range bioregions {
		cats[i] = domain.Category{Label: b.name, Color: palette.MustParseHex(b.hex)}
	}
	return domain.PaletteRule{
		Kind:       domain.Discrete,
		Title:      "Bioregion",
		Categories: cats,
		Missing:    domain.Transparent,
	}
}

func continuousRule(title string, ramp []domain.Color) domain.PaletteRule {
	return domain.PaletteRule{
		Kind:    domain.Continuous,
		Title:   title,
		Ramp:    ramp,
		Missing: domain.Transparent,
	}
}

// Entries returns the built-in policies in processing order. Each call
// returns fresh values.
func Entries() []Entry {
	return []Entry{
		{
			Dataset: domain.Bioregions,
			Title:   "Pelagic bioregions",
			Source: domain.Source{
				Location:    "bioregions/bioregions.asc",
				Categorical: true,
				Levels:      BioregionLevels(),
			},
			Palette:    bioregionRule(),
			Background: true,
		},
		{
			Dataset: domain.HabitatImportance,
			Title:   "Habitat importance",
			Source:  domain.Source{Location: "habitat_importance/importance.asc.gz"},
			Crop:    &domain.BoundingBox{MinLon: -180, MaxLon: 180, MinLat: -80, MaxLat: -45},
			Palette: continuousRule("Importance", palette.Viridis(palette.Steps)),
		},
		{
			Dataset:  domain.PrimaryProductivity,
			Title:    "Primary productivity",
			Source:   domain.Source{Location: "primary_productivity/npp.asc.gz"},
			Latitude: &projection.LatitudeFilter{NorthOf: -45},
			Palette:  continuousRule("mg C m-2 d-1", palette.Greens(palette.Steps)),
		},
		{
			Dataset: domain.HabitatSuitability,
			Title:   "Habitat suitability",
			Source:  domain.Source{Location: "habitat_suitability/suitability.asc.gz"},
			Crop:    &domain.BoundingBox{MinLon: -180, MaxLon: 180, MinLat: -75, MaxLat: -45},
			Palette: continuousRule("Suitability", palette.SpectralReversed(palette.Steps)),
		},
	}
}

// Lookup returns the built-in entry for id.
func Lookup(id domain.DatasetID) (Entry, error) {
	for _, e := range Entries() {
		if e.Dataset == id {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("catalog %q: %w", id, domain.ErrUnknownDataset)
}
