// Package style turns tabulated cells into fully styled map layers and
// applies the shared presentation theme.
package style

import (
	"log/slog"

	"github.com/couchcryptid/polar-layers/internal/catalog"
	"github.com/couchcryptid/polar-layers/internal/domain"
)

// Stylist joins a tabulation with the base map under a catalog policy.
type Stylist struct {
	logger *slog.Logger
}

// NewStylist creates a stylist.
func NewStylist(logger *slog.Logger) *Stylist {
	return &Stylist{logger: logger}
}

// Style builds the layer. Drawables are, in paint order: a copy of the base
// map, the background circle when the policy asks for one, the data cells
// and the legend. The base map is not modified.
func (s *Stylist) Style(tab domain.TabularCells, entry catalog.Entry, base *domain.BaseMap) domain.StyledMapLayer {
	var extra []domain.Drawable
	if entry.Background {
		extra = append(extra, domain.Drawable{
			Name:   "background",
			Kind:   domain.KindBackground,
			Style:  domain.Style{Fill: base.Background()},
			Circle: &domain.Circle{Radius: base.Radius()},
		})
	}

	lo, hi, ok := tab.ValueRange()
	data := domain.Drawable{
		Name:     string(entry.Dataset),
		Kind:     domain.KindData,
		CellSize: tab.CellSize,
		Cells:    make([]domain.FilledCell, len(tab.Cells)),
	}
	for i, c := range tab.Cells {
		data.Cells[i] = domain.FilledCell{
			X:       c.X,
			Y:       c.Y,
			Value:   c.Value,
			Missing: c.Missing,
			Fill:    entry.Palette.Resolve(c.Value, c.Missing, lo, hi),
		}
	}
	if !ok {
		s.logger.Warn("no valid cells to style", "dataset", entry.Dataset, "cells", len(tab.Cells))
	}

	legend := buildLegend(entry.Palette, lo, hi, ok)
	extra = append(extra, data, domain.Drawable{
		Name:   "legend",
		Kind:   domain.KindLegend,
		Legend: &legend,
	})

	return domain.StyledMapLayer{
		Dataset:   entry.Dataset,
		Title:     entry.Title,
		CRS:       base.CRS(),
		Radius:    base.Radius(),
		Drawables: base.Compose(extra...),
		BuiltAt:   domain.Now(),
	}
}

func buildLegend(rule domain.PaletteRule, lo, hi float64, ok bool) domain.Legend {
	l := domain.Legend{
		Title:    rule.Title,
		Kind:     rule.Kind,
		Missing:  rule.Missing,
		Position: domain.LegendRight,
	}
	switch rule.Kind {
	case domain.Discrete:
		l.Entries = make([]domain.LegendEntry, len(rule.Categories))
		for i, c := range rule.Categories {
			l.Entries[i] = domain.LegendEntry{Label: c.Label, Color: c.Color}
		}
	case domain.Continuous:
		l.Ramp = append([]domain.Color(nil), rule.Ramp...)
		if ok {
			l.Min, l.Max = lo, hi
		}
	}
	return l
}
