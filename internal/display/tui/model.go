// Package tui is the terminal display shell: a layer picker, a half-block
// map preview, the legend and export shortcuts.
package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/couchcryptid/polar-layers/internal/cache"
	"github.com/couchcryptid/polar-layers/internal/display"
	"github.com/couchcryptid/polar-layers/internal/domain"
)

const sidebarWidth = 30

type layerItem struct {
	entry cache.Entry
}

func (i layerItem) Title() string { return string(i.entry.Dataset) }

func (i layerItem) Description() string {
	if !i.entry.Available {
		return "not available"
	}
	return i.entry.Modified.Format("2006-01-02 15:04")
}

func (i layerItem) FilterValue() string { return string(i.entry.Dataset) }

type layersMsg struct {
	entries []cache.Entry
	err     error
}

type exportedMsg struct {
	path string
	err  error
}

// Model is the bubbletea model of the terminal shell.
type Model struct {
	ctx       context.Context
	shell     *display.Shell
	exportDir string

	width  int
	height int

	l      list.Model
	legend table.Model
	view   display.View
	status string
}

// New creates the model. Exports are written to exportDir.
func New(ctx context.Context, shell *display.Shell, exportDir string) Model {
	d := list.NewDefaultDelegate()
	m := Model{
		ctx:       ctx,
		shell:     shell,
		exportDir: exportDir,
		status:    "loading layers",
	}
	m.l = list.New(nil, d, sidebarWidth, 10)
	m.l.Title = "Layers"
	m.l.SetShowHelp(false)
	m.l.SetShowStatusBar(false)
	m.l.SetFilteringEnabled(false)

	m.legend = table.New(
		table.WithColumns([]table.Column{{Title: "Colour", Width: 10}, {Title: "Label", Width: 22}}),
		table.WithHeight(8),
	)
	return m
}

// Init loads the layer list.
func (m Model) Init() tea.Cmd {
	return m.loadLayers
}

func (m Model) loadLayers() tea.Msg {
	entries, err := m.shell.Layers(m.ctx)
	return layersMsg{entries: entries, err: err}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.l.SetSize(sidebarWidth, max(4, msg.Height-12))
		return m, nil

	case layersMsg:
		if msg.err != nil {
			m.status = "list layers: " + msg.err.Error()
			return m, nil
		}
		items := make([]list.Item, len(msg.entries))
		for i, e := range msg.entries {
			items[i] = layerItem{entry: e}
		}
		cmd := m.l.SetItems(items)
		m.status = fmt.Sprintf("%d layers", len(items))
		return m, cmd

	case exportedMsg:
		if msg.err != nil {
			m.status = "export failed: " + msg.err.Error()
		} else {
			m.status = "wrote " + msg.path
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "enter":
			m.selectCurrent()
			return m, nil
		case "c":
			coast, _ := m.shell.Toggles()
			m.shell.SetShowCoastline(!coast)
			m.status = fmt.Sprintf("coastline: %v", !coast)
			return m, nil
		case "b":
			_, bounds := m.shell.Toggles()
			m.shell.SetShowBoundaries(!bounds)
			m.status = fmt.Sprintf("boundaries: %v", !bounds)
			return m, nil
		case "e":
			return m, m.export("png")
		case "t":
			return m, m.export("csv")
		case "r":
			return m, m.loadLayers
		}
	}

	var cmd tea.Cmd
	m.l, cmd = m.l.Update(msg)
	return m, cmd
}

func (m *Model) selectCurrent() {
	item, ok := m.l.SelectedItem().(layerItem)
	if !ok {
		return
	}
	m.view = m.shell.Select(m.ctx, string(item.entry.Dataset))
	if !m.view.Available {
		m.status = fmt.Sprintf("%s: %s", item.entry.Dataset, m.view.Reason)
		m.legend.SetRows(nil)
		return
	}
	m.status = "showing " + m.view.Layer.Title
	m.legend.SetRows(legendRows(m.view.Layer))
}

func legendRows(layer domain.StyledMapLayer) []table.Row {
	l, ok := layer.Legend()
	if !ok {
		return nil
	}
	switch l.Kind {
	case domain.Discrete:
		rows := make([]table.Row, len(l.Entries))
		for i, e := range l.Entries {
			rows[i] = table.Row{e.Color.Hex(), e.Label}
		}
		return rows
	default:
		if len(l.Ramp) == 0 {
			return nil
		}
		return []table.Row{
			{l.Ramp[0].Hex(), fmt.Sprintf("%g", l.Min)},
			{l.Ramp[len(l.Ramp)-1].Hex(), fmt.Sprintf("%g", l.Max)},
		}
	}
}

func (m Model) export(ext string) tea.Cmd {
	if !m.view.Available {
		return func() tea.Msg { return exportedMsg{err: fmt.Errorf("no layer selected")} }
	}
	key := string(m.view.Key)
	shell, ctx := m.shell, m.ctx
	path := filepath.Join(m.exportDir, key+"."+ext)
	return func() tea.Msg {
		f, err := os.Create(path)
		if err != nil {
			return exportedMsg{err: err}
		}
		if ext == "png" {
			err = shell.ExportImage(ctx, f, key)
		} else {
			err = shell.ExportTable(ctx, f, key)
		}
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		return exportedMsg{path: path, err: err}
	}
}
