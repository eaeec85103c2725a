package style

import "github.com/couchcryptid/polar-layers/internal/domain"

// Theme returns the uniform presentation for the given font settings.
func Theme(fontFamily string, fontSize float64) domain.Theme {
	return domain.Theme{
		FontFamily:     fontFamily,
		FontSize:       fontSize,
		LegendPosition: domain.LegendBottom,
		Background:     domain.Color{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF},
	}
}

// Normalize applies theme to a copy of layer: font settings from the theme,
// legend at the bottom, no axis lines, grid, axis titles or ticks. Applying
// it twice gives the same result as applying it once.
func Normalize(layer domain.StyledMapLayer, theme domain.Theme) domain.StyledMapLayer {
	out := layer.Clone()

	theme.LegendPosition = domain.LegendBottom
	theme.ShowAxisLines = false
	theme.ShowGrid = false
	theme.ShowAxisTitles = false
	theme.ShowAxisTicks = false
	out.Theme = theme

	for i := range out.Drawables {
		if out.Drawables[i].Legend != nil {
			out.Drawables[i].Legend.Position = domain.LegendBottom
		}
	}
	return out
}
