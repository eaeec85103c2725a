package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/polar-layers/internal/catalog"
	"github.com/couchcryptid/polar-layers/internal/domain"
	"github.com/couchcryptid/polar-layers/internal/observability"
	"github.com/couchcryptid/polar-layers/internal/projection"
	"github.com/couchcryptid/polar-layers/internal/remote"
	"github.com/couchcryptid/polar-layers/internal/style"
)

// Syncer mirrors the remote store into a local directory.
type Syncer interface {
	Sync(ctx context.Context, prefix, dir string) (remote.SyncReport, error)
}

// BaseMapBuilder produces the shared cartographic template.
type BaseMapBuilder interface {
	Build(ctx context.Context) (*domain.BaseMap, error)
}

// RasterLoader reads a dataset's raster, cropped to bbox when given.
type RasterLoader interface {
	Load(ctx context.Context, src domain.Source, bbox *domain.BoundingBox) (*domain.GeoRaster, error)
}

// Stylist joins a tabulation with the base map.
type Stylist interface {
	Style(tab domain.TabularCells, entry catalog.Entry, base *domain.BaseMap) domain.StyledMapLayer
}

// LayerStore persists styled layers.
type LayerStore interface {
	Save(ctx context.Context, key domain.DatasetID, layer domain.StyledMapLayer) (string, error)
}

// Publisher announces written layers.
type Publisher interface {
	Publish(ctx context.Context, event domain.LayerEvent) error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.LayerEvent) error { return nil }

// Stages groups the collaborators of a run. Sync may be nil.
type Stages struct {
	Sync      Syncer
	BaseMap   BaseMapBuilder
	Loader    RasterLoader
	Stylist   Stylist
	Store     LayerStore
	Publisher Publisher
}

// Options tunes a run.
type Options struct {
	Entries      []catalog.Entry
	CellSize     float64
	Workers      int
	WriteEmpty   bool
	Theme        domain.Theme
	RemotePrefix string
	MirrorDir    string
}

// Pipeline runs the batch build: sync, base map, then every dataset.
type Pipeline struct {
	stages  Stages
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool
}

// New creates a Pipeline with the given stages and observability.
func New(stages Stages, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if stages.Publisher == nil {
		stages.Publisher = NopPublisher{}
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Pipeline{stages: stages, opts: opts, logger: logger, metrics: metrics}
}

// CheckReadiness returns nil once a run has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no build run has completed yet")
	}
	return nil
}

// Run executes one build. Failures of the remote sync or the base map abort
// the run; failures of single datasets are recorded in the report and the
// remaining datasets still run.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	report := Report{RunID: uuid.NewString(), Started: domain.Now()}
	logger := p.logger.With("run_id", report.RunID)
	logger.Info("build started", "datasets", len(p.opts.Entries), "workers", p.opts.Workers)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	if p.stages.Sync != nil {
		var sync remote.SyncReport
		err := p.timed("sync", func() error {
			var err error
			sync, err = p.stages.Sync.Sync(ctx, p.opts.RemotePrefix, p.opts.MirrorDir)
			return err
		})
		if err != nil {
			return report, &StageError{Stage: "sync", Err: err}
		}
		logger.Info("remote inputs synced", "downloaded", sync.Downloaded, "skipped", sync.Skipped, "bytes", sync.Bytes)
	}

	var base *domain.BaseMap
	err := p.timed("basemap", func() error {
		var err error
		base, err = p.stages.BaseMap.Build(ctx)
		return err
	})
	if err != nil {
		return report, &StageError{Stage: "basemap", Err: err}
	}

	report.Results = make([]Result, len(p.opts.Entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, entry := range p.opts.Entries {
		g.Go(func() error {
			report.Results[i] = p.process(gctx, report.RunID, base, entry, logger)
			return nil
		})
	}
	_ = g.Wait()

	report.Finished = domain.Now()
	if err := ctx.Err(); err != nil {
		return report, err
	}
	p.ready.Store(true)
	logger.Info("build finished",
		"ok", report.Count(StatusOK),
		"empty", report.Count(StatusEmpty),
		"failed", report.Count(StatusFailed),
		"duration", report.Finished.Sub(report.Started).String(),
	)
	return report, nil
}

func (p *Pipeline) process(ctx context.Context, runID string, base *domain.BaseMap, entry catalog.Entry, logger *slog.Logger) Result {
	start := time.Now()
	res := Result{Dataset: entry.Dataset}
	logger = logger.With("dataset", entry.Dataset)

	fail := func(stage string, err error) Result {
		res.Status = StatusFailed
		res.Err = &StageError{Dataset: entry.Dataset, Stage: stage, Err: err}
		res.Duration = time.Since(start)
		logger.Warn("dataset failed", "stage", stage, "error", err)
		p.metrics.DatasetsProcessed.WithLabelValues(string(entry.Dataset), string(StatusFailed)).Inc()
		return res
	}

	var raw *domain.GeoRaster
	if err := p.timed("load", func() error {
		var err error
		raw, err = p.stages.Loader.Load(ctx, entry.Source, entry.Crop)
		return err
	}); err != nil {
		return fail("load", err)
	}

	var tab domain.TabularCells
	if err := p.timed("project", func() error {
		var err error
		tab, err = projection.Project(ctx, raw, domain.SouthPolarStereographic, projection.Options{
			CellSize: p.opts.CellSize,
			Filters:  filtersFor(entry),
		})
		return err
	}); err != nil {
		return fail("project", err)
	}
	res.Cells = tab.Len()
	p.metrics.CellsTabulated.WithLabelValues(string(entry.Dataset)).Set(float64(tab.Len()))

	_, _, hasData := tab.ValueRange()
	res.Status = StatusOK
	if !hasData {
		res.Status = StatusEmpty
	}

	var layer domain.StyledMapLayer
	_ = p.timed("style", func() error {
		layer = style.Normalize(p.stages.Stylist.Style(tab, entry, base), p.opts.Theme)
		layer.RunID = runID
		return nil
	})

	if res.Status == StatusEmpty && !p.opts.WriteEmpty {
		logger.Warn("dataset empty after projection, nothing written", "cells", tab.Len())
		res.Duration = time.Since(start)
		p.metrics.DatasetsProcessed.WithLabelValues(string(entry.Dataset), string(StatusEmpty)).Inc()
		return res
	}

	if err := p.timed("save", func() error {
		var err error
		res.Path, err = p.stages.Store.Save(ctx, entry.Dataset, layer)
		return err
	}); err != nil {
		return fail("save", err)
	}

	event := domain.LayerEvent{
		RunID:   runID,
		Dataset: entry.Dataset,
		Status:  string(res.Status),
		Path:    res.Path,
		Cells:   res.Cells,
		BuiltAt: layer.BuiltAt,
	}
	if err := p.stages.Publisher.Publish(ctx, event); err != nil {
		logger.Warn("layer event not published", "error", err)
	}

	res.Duration = time.Since(start)
	p.metrics.DatasetsProcessed.WithLabelValues(string(entry.Dataset), string(res.Status)).Inc()
	logger.Info("dataset written", "path", res.Path, "cells", res.Cells, "status", string(res.Status))
	return res
}

func filtersFor(entry catalog.Entry) []projection.Filter {
	var filters []projection.Filter
	if entry.Crop != nil {
		filters = append(filters, projection.BoundingBoxFilter{Box: *entry.Crop})
	}
	if entry.Latitude != nil {
		filters = append(filters, *entry.Latitude)
	}
	return filters
}

func (p *Pipeline) timed(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	p.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	return err
}
