package tui

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/couchcryptid/polar-layers/internal/domain"
	"github.com/couchcryptid/polar-layers/internal/render"
)

// preview renders layer into w x h terminal cells, two pixels per cell
// using the upper half block.
func preview(layer domain.StyledMapLayer, w, h int) string {
	if w <= 0 || h <= 0 {
		return ""
	}
	layer.Theme.LegendPosition = domain.LegendNone
	c, err := render.Draw(layer, w, h*2)
	if err != nil {
		return dimStyle.Render(err.Error())
	}
	var b strings.Builder
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			top := hex(c.Img, col, 2*row)
			bottom := hex(c.Img, col, 2*row+1)
			b.WriteString(lipgloss.NewStyle().
				Foreground(lipgloss.Color(top)).
				Background(lipgloss.Color(bottom)).
				Render("▀"))
		}
		if row < h-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func hex(img image.Image, x, y int) string {
	c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

func (m Model) mapSize() (int, int) {
	w := m.width - sidebarWidth - 6
	h := m.height - 6
	return max(0, w), max(0, h)
}

func (m Model) View() string {
	if m.width == 0 {
		return "loading..."
	}

	header := titleStyle.Render("polar layers")
	if m.view.Available {
		header += dimStyle.Render("  " + m.view.Layer.Title)
	}

	sidebar := lipgloss.JoinVertical(lipgloss.Left, m.l.View(), m.legend.View())

	w, h := m.mapSize()
	var body string
	switch {
	case m.view.Available:
		body = preview(m.view.Layer, w, h)
	case m.view.Reason != "":
		body = warnStyle.Render(m.view.Reason)
	default:
		body = dimStyle.Render("select a layer with enter")
	}
	mapCol := boxStyle.Width(w).Height(h).Render(body)

	coast, bounds := m.shell.Toggles()
	help := dimStyle.Render(fmt.Sprintf(
		"enter select  c coastline:%v  b boundaries:%v  e png  t csv  r refresh  q quit", coast, bounds))
	footer := lipgloss.JoinVertical(lipgloss.Left, m.status, help)

	ui := lipgloss.JoinVertical(lipgloss.Left,
		header,
		lipgloss.JoinHorizontal(lipgloss.Top, sidebar, " ", mapCol),
		footer,
	)
	return appStyle.Render(ui)
}
