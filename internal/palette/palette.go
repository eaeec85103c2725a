// Package palette holds the fixed colour tables and ramps used to style
// layers. Ramps are built by interpolating a short list of anchor colours in
// CIE L*a*b* space.
package palette

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/couchcryptid/polar-layers/internal/domain"
)

// Steps is the length of every continuous ramp.
const Steps = 51

var (
	viridisAnchors = []string{
		"#440154", "#482878", "#3E4A89", "#31688E", "#26828E",
		"#1F9E89", "#35B779", "#6DCD59", "#B4DE2C", "#FDE725",
	}
	greensAnchors = []string{
		"#F7FCF5", "#E5F5E0", "#C7E9C0", "#A1D99B", "#74C476",
		"#41AB5D", "#238B45", "#006D2C", "#00441B",
	}
	spectralAnchors = []string{
		"#9E0142", "#D53E4F", "#F46D43", "#FDAE61", "#FEE08B", "#FFFFBF",
		"#E6F598", "#ABDDA4", "#66C2A5", "#3288BD", "#5E4FA2",
	}
	// Deepest bin first.
	bathymetryBins = []string{
		"#08306B", "#08468C", "#0B5AA4", "#1F6FB4", "#3484C1",
		"#4D98CB", "#6AACD5", "#8BC0DD", "#ADD2E6", "#CCE1EF",
	}
)

// ParseHex parses #RGB, #RRGGBB or #RRGGBBAA.
func ParseHex(s string) (domain.Color, error) {
	s = strings.TrimSpace(s)
	alpha := uint8(0xFF)
	if len(s) == 9 {
		a, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return domain.Color{}, fmt.Errorf("parse colour %q: %w", s, err)
		}
		alpha = uint8(a)
		s = s[:7]
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return domain.Color{}, fmt.Errorf("parse colour %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return domain.Color{R: r, G: g, B: b, A: alpha}, nil
}

// MustParseHex is ParseHex for package-level tables.
func MustParseHex(s string) domain.Color {
	c, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Interpolate spreads anchors evenly over n steps and blends between them.
// The first and last steps equal the first and last anchors.
func Interpolate(anchors []domain.Color, n int) []domain.Color {
	if n <= 0 || len(anchors) == 0 {
		return nil
	}
	out := make([]domain.Color, n)
	if len(anchors) == 1 || n == 1 {
		for i := range out {
			out[i] = anchors[0]
		}
		return out
	}
	segments := float64(len(anchors) - 1)
	for i := range out {
		pos := float64(i) / float64(n-1) * segments
		lo := int(pos)
		if lo >= len(anchors)-1 {
			lo = len(anchors) - 2
		}
		t := pos - float64(lo)
		out[i] = blend(anchors[lo], anchors[lo+1], t)
	}
	out[0], out[n-1] = anchors[0], anchors[len(anchors)-1]
	return out
}

func blend(a, b domain.Color, t float64) domain.Color {
	ca := colorful.Color{R: float64(a.R) / 255, G: float64(a.G) / 255, B: float64(a.B) / 255}
	cb := colorful.Color{R: float64(b.R) / 255, G: float64(b.G) / 255, B: float64(b.B) / 255}
	r, g, bl := ca.BlendLab(cb, t).Clamped().RGB255()
	alpha := float64(a.A) + (float64(b.A)-float64(a.A))*t
	return domain.Color{R: r, G: g, B: bl, A: uint8(alpha + 0.5)}
}

func parseAll(hexes []string) []domain.Color {
	out := make([]domain.Color, len(hexes))
	for i, h := range hexes {
		out[i] = MustParseHex(h)
	}
	return out
}

// Reverse returns a reversed copy.
func Reverse(ramp []domain.Color) []domain.Color {
	out := make([]domain.Color, len(ramp))
	for i, c := range ramp {
		out[len(ramp)-1-i] = c
	}
	return out
}

// Viridis is a perceptually uniform purple-to-yellow ramp.
func Viridis(n int) []domain.Color { return Interpolate(parseAll(viridisAnchors), n) }

// Greens runs from near-white for low values to dark green for high values.
func Greens(n int) []domain.Color { return Interpolate(parseAll(greensAnchors), n) }

// SpectralReversed runs from blue (#5E4FA2) for low values to red (#9E0142)
// for high values.
func SpectralReversed(n int) []domain.Color {
	return Interpolate(Reverse(parseAll(spectralAnchors)), n)
}

// Bathymetry returns the ten depth bins, deepest first.
func Bathymetry() []domain.Color { return parseAll(bathymetryBins) }
