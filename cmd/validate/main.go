// Command validate checks a layer cache end to end. It verifies that every
// dataset has a readable entry with drawables in paint order and a uniform
// theme, that each cell fill matches the dataset's palette, and that all
// layers come from one build run.
//
// Usage:
//
//	go run ./cmd/validate -cache-dir data/layers
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"slices"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/polar-layers/internal/cache"
	"github.com/couchcryptid/polar-layers/internal/catalog"
	"github.com/couchcryptid/polar-layers/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// loaded pairs a cached layer with the policy it was built under.
type loaded struct {
	entry catalog.Entry
	layer domain.StyledMapLayer
}

func main() {
	dir := flag.String("cache-dir", defaultCacheDir(), "layer cache directory")
	allowMissing := flag.Bool("allow-missing", false, "do not fail on datasets without a cache entry")
	flag.Parse()

	if code := run(*dir, *allowMissing); code != 0 {
		os.Exit(code)
	}
}

// defaultCacheDir follows the CACHE_DIR setting of the build.
func defaultCacheDir() string {
	return sharedcfg.EnvOrDefault("CACHE_DIR", "data/layers")
}

func run(dir string, allowMissing bool) int {
	fmt.Println("=== Layer Cache Validation ===")
	fmt.Println()

	// ── Load every catalog dataset ──
	presence := &phase{name: "Cache presence"}
	layers := loadLayers(cache.NewStore(dir), presence, allowMissing)

	// ── Run validation phases ──
	phases := []*phase{
		presence,
		validatePaintOrder(layers),
		validateTheme(layers),
		validateCells(layers),
		validateRun(layers),
	}

	// ── Report results ──
	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Layers: %d of %d datasets cached in %s\n", len(layers), len(domain.Datasets()), dir)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadLayers(store *cache.Store, p *phase, allowMissing bool) []loaded {
	var out []loaded
	for _, e := range catalog.Entries() {
		layer, err := store.Load(context.Background(), e.Dataset)
		switch {
		case err == nil:
			out = append(out, loaded{entry: e, layer: layer})
		case allowMissing && isUnavailable(err):
			fmt.Printf("  %-22s not cached (skipped)\n", e.Dataset)
		default:
			p.errorf("%s: %v", e.Dataset, err)
		}
	}
	return out
}

func isUnavailable(err error) bool {
	return errors.Is(err, domain.ErrLayerUnavailable)
}

// ── Paint order ──

// baseKinds is the base map's paint order; each layer must contain it as a
// prefix subsequence, with optional ice and coastline.
var baseKinds = []domain.DrawableKind{
	domain.KindBathymetry, domain.KindIce, domain.KindCoastline, domain.KindGraticule, domain.KindBorder,
}

func validatePaintOrder(layers []loaded) *phase {
	p := &phase{name: "Paint order"}
	for _, l := range layers {
		checkPaintOrder(p, l)
	}
	return p
}

func checkPaintOrder(p *phase, l loaded) {
	id := l.entry.Dataset
	kinds := make([]domain.DrawableKind, len(l.layer.Drawables))
	for i, d := range l.layer.Drawables {
		kinds[i] = d.Kind
	}

	last := -1
	for i, k := range kinds {
		pos := slices.Index(baseKinds, k)
		if pos < 0 {
			break
		}
		if pos <= last {
			p.errorf("%s: base drawable %s at %d is out of order", id, k, i)
		}
		last = pos
	}
	for _, required := range []domain.DrawableKind{domain.KindBathymetry, domain.KindGraticule, domain.KindBorder} {
		if !slices.Contains(kinds, required) {
			p.errorf("%s: missing base drawable %s", id, required)
		}
	}

	data, legend := l.layer.Index(domain.KindData), l.layer.Index(domain.KindLegend)
	switch {
	case data < 0:
		p.errorf("%s: no data drawable", id)
	case legend != len(kinds)-1:
		p.errorf("%s: legend is at %d, want last (%d)", id, legend, len(kinds)-1)
	case data != legend-1:
		p.errorf("%s: data drawable at %d, want directly before the legend", id, data)
	}

	bg := l.layer.Index(domain.KindBackground)
	if l.entry.Background != (bg >= 0) {
		p.errorf("%s: background circle present=%t, policy wants %t", id, bg >= 0, l.entry.Background)
	}
	if bg >= 0 && bg != data-1 {
		p.errorf("%s: background at %d, want directly before data", id, bg)
	}
}

// ── Theme ──

func validateTheme(layers []loaded) *phase {
	p := &phase{name: "Theme uniformity"}
	for i, l := range layers {
		id, th := l.entry.Dataset, l.layer.Theme
		if th.LegendPosition != domain.LegendBottom {
			p.errorf("%s: theme legend position %q", id, th.LegendPosition)
		}
		if th.ShowAxisLines || th.ShowGrid || th.ShowAxisTitles || th.ShowAxisTicks {
			p.errorf("%s: axis decorations enabled", id)
		}
		if legend, ok := l.layer.Legend(); ok && legend.Position != domain.LegendBottom {
			p.errorf("%s: legend drawable position %q", id, legend.Position)
		}
		if i > 0 {
			first := layers[0].layer.Theme
			if th.FontFamily != first.FontFamily || th.FontSize != first.FontSize {
				p.errorf("%s: font %s/%g differs from %s/%g", id, th.FontFamily, th.FontSize, first.FontFamily, first.FontSize)
			}
		}
	}
	return p
}

// ── Cells ──

func validateCells(layers []loaded) *phase {
	p := &phase{name: "Cell integrity"}
	for _, l := range layers {
		checkCells(p, l)
	}
	return p
}

func checkCells(p *phase, l loaded) {
	id := l.entry.Dataset
	data, ok := l.layer.PrimaryData()
	if !ok {
		return
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, c := range data.Cells {
		if !c.Missing {
			lo, hi = math.Min(lo, c.Value), math.Max(hi, c.Value)
		}
	}

	bad := 0
	for i, c := range data.Cells {
		if c.Missing != math.IsNaN(c.Value) {
			p.errorf("%s: cell %d missing=%t but value=%g", id, i, c.Missing, c.Value)
		}
		if want := l.entry.Palette.Resolve(c.Value, c.Missing, lo, hi); c.Fill != want {
			if bad < 5 {
				p.errorf("%s: cell %d (%.0f, %.0f) fill %s, palette gives %s", id, i, c.X, c.Y, c.Fill.Hex(), want.Hex())
			}
			bad++
		}
	}
	if bad > 5 {
		p.errorf("%s: %d more fill mismatches", id, bad-5)
	}
}

// ── Run ──

func validateRun(layers []loaded) *phase {
	p := &phase{name: "Run consistency"}
	runs := map[string][]domain.DatasetID{}
	for _, l := range layers {
		if l.layer.CRS != domain.SouthPolarStereographic {
			p.errorf("%s: CRS %s", l.entry.Dataset, l.layer.CRS)
		}
		runs[l.layer.RunID] = append(runs[l.layer.RunID], l.entry.Dataset)
	}
	if len(runs) > 1 {
		for run, ids := range runs {
			p.errorf("run %q wrote %v", run, ids)
		}
	}
	return p
}
