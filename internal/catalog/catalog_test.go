package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/polar-layers/internal/domain"
	"github.com/couchcryptid/polar-layers/internal/palette"
)

func TestEntries_Order(t *testing.T) {
	entries := Entries()
	require.Len(t, entries, 4)
	for i, id := range domain.Datasets() {
		assert.Equal(t, id, entries[i].Dataset)
	}
}

func TestBioregionPolicy(t *testing.T) {
	e, err := Lookup(domain.Bioregions)
	require.NoError(t, err)

	assert.Equal(t, domain.Discrete, e.Palette.Kind)
	require.Len(t, e.Palette.Categories, 12)
	assert.Equal(t, "#94FA8D", e.Palette.ColorAt(3).Hex())
	assert.Equal(t, "#94FA8D", e.Palette.Resolve(3, false, 0, 0).Hex())
	assert.True(t, e.Background)
	assert.True(t, e.Source.Categorical)
	assert.Equal(t, BioregionLevels(), e.Source.Levels)
	assert.Equal(t, domain.Transparent, e.Palette.Missing)
}

func TestContinuousPolicies(t *testing.T) {
	t.Run("habitat importance", func(t *testing.T) {
		e, err := Lookup(domain.HabitatImportance)
		require.NoError(t, err)
		assert.Len(t, e.Palette.Ramp, palette.Steps)
		require.NotNil(t, e.Crop)
		assert.Equal(t, domain.BoundingBox{MinLon: -180, MaxLon: 180, MinLat: -80, MaxLat: -45}, *e.Crop)
	})

	t.Run("primary productivity", func(t *testing.T) {
		e, err := Lookup(domain.PrimaryProductivity)
		require.NoError(t, err)
		require.NotNil(t, e.Latitude)
		assert.Equal(t, -45.0, e.Latitude.NorthOf)
		low := e.Palette.Resolve(0, false, 0, 10)
		high := e.Palette.Resolve(10, false, 0, 10)
		assert.Greater(t, int(low.G), int(high.G), "low values are lighter")
	})

	t.Run("habitat suitability", func(t *testing.T) {
		e, err := Lookup(domain.HabitatSuitability)
		require.NoError(t, err)
		assert.Equal(t, "#5E4FA2", e.Palette.Resolve(0, false, 0, 1).Hex())
		assert.Equal(t, "#9E0142", e.Palette.Resolve(1, false, 0, 1).Hex())
		require.NotNil(t, e.Crop)
		assert.Equal(t, -75.0, e.Crop.MinLat)
	})
}

func TestLookup_Unknown(t *testing.T) {
	_, err := Lookup("krill")
	assert.ErrorIs(t, err, domain.ErrUnknownDataset)
}

func TestResolve(t *testing.T) {
	band := 2
	entries, err := Resolve(map[domain.DatasetID]Override{
		domain.HabitatSuitability: {
			Title:  "Suitability v2",
			Source: "https://example.org/suit.asc",
			Band:   &band,
			Crop:   &domain.BoundingBox{MinLon: -90, MaxLon: 90, MinLat: -70, MaxLat: -50},
		},
	})
	require.NoError(t, err)

	e := entries[3]
	assert.Equal(t, "Suitability v2", e.Title)
	assert.Equal(t, "https://example.org/suit.asc", e.Source.Location)
	assert.Equal(t, 2, e.Source.Band)
	assert.Equal(t, -70.0, e.Crop.MinLat)

	assert.Equal(t, "Pelagic bioregions", entries[0].Title, "untouched entries keep defaults")
}

func TestResolve_Errors(t *testing.T) {
	_, err := Resolve(map[domain.DatasetID]Override{"krill": {}})
	assert.ErrorIs(t, err, domain.ErrUnknownDataset)

	neg := -1
	_, err = Resolve(map[domain.DatasetID]Override{domain.Bioregions: {Band: &neg}})
	assert.Error(t, err)

	_, err = Resolve(map[domain.DatasetID]Override{
		domain.Bioregions: {Crop: &domain.BoundingBox{MinLat: 10, MaxLat: 0}},
	})
	assert.Error(t, err)
}
