package main

import (
	"fmt"
	"io"
	"log/slog"

	kafkaadapter "github.com/couchcryptid/polar-layers/internal/adapter/kafka"
	"github.com/couchcryptid/polar-layers/internal/basemap"
	"github.com/couchcryptid/polar-layers/internal/cache"
	"github.com/couchcryptid/polar-layers/internal/catalog"
	"github.com/couchcryptid/polar-layers/internal/config"
	"github.com/couchcryptid/polar-layers/internal/display"
	"github.com/couchcryptid/polar-layers/internal/observability"
	"github.com/couchcryptid/polar-layers/internal/pipeline"
	"github.com/couchcryptid/polar-layers/internal/raster"
	"github.com/couchcryptid/polar-layers/internal/remote"
	"github.com/couchcryptid/polar-layers/internal/style"
)

// app holds the process-wide collaborators shared by every subcommand.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	store   *cache.Store
}

func newApp() (*app, error) {
	return newAppLogging(nil)
}

// newAppLogging is newApp with the log destination overridden; nil keeps
// stderr.
func newAppLogging(w io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg)
	if w != nil {
		logger = observability.NewLoggerTo(w, cfg.LogLevel, cfg.LogFormat)
	}
	return &app{
		cfg:     cfg,
		logger:  logger,
		metrics: observability.NewMetrics(),
		store:   cache.NewStore(cfg.CacheDir),
	}, nil
}

// pipeline wires the batch build. The returned close function releases the
// Kafka writer when one is configured.
func (a *app) pipeline() (*pipeline.Pipeline, func() error, error) {
	entries, err := catalog.Resolve(a.cfg.Overrides)
	if err != nil {
		return nil, nil, err
	}

	var (
		fetcher raster.Fetcher
		syncer  pipeline.Syncer
	)
	if a.cfg.Remote.Enabled() {
		client := remote.NewClient(a.cfg.Remote.Endpoint, a.cfg.Remote.Bucket, a.cfg.Remote.Timeout, a.logger, a.metrics)
		fetcher, syncer = client, client
		a.logger.Info("remote store enabled", "endpoint", a.cfg.Remote.Endpoint, "bucket", a.cfg.Remote.Bucket)
	}
	loader := raster.NewLoader(a.cfg.MirrorDir, fetcher, a.logger)

	closeFn := func() error { return nil }
	var publisher pipeline.Publisher = pipeline.NopPublisher{}
	if len(a.cfg.KafkaBrokers) > 0 {
		w := kafkaadapter.NewWriter(a.cfg.KafkaBrokers, a.cfg.KafkaTopic, a.logger)
		publisher, closeFn = w, w.Close
		a.logger.Info("layer notifications enabled", "topic", a.cfg.KafkaTopic)
	}

	p := pipeline.New(pipeline.Stages{
		Sync:      syncer,
		BaseMap:   basemap.NewBuilder(a.cfg.BaseMap, a.cfg.TargetCellSize, loader, a.logger),
		Loader:    loader,
		Stylist:   style.NewStylist(a.logger),
		Store:     a.store,
		Publisher: publisher,
	}, pipeline.Options{
		Entries:      entries,
		CellSize:     a.cfg.TargetCellSize,
		Workers:      a.cfg.Workers,
		WriteEmpty:   a.cfg.WriteEmptyLayers,
		Theme:        style.Theme(a.cfg.FontFamily, a.cfg.FontSize),
		RemotePrefix: a.cfg.Remote.Prefix,
		MirrorDir:    a.cfg.MirrorDir,
	}, a.logger, a.metrics)
	return p, closeFn, nil
}

func (a *app) shell() *display.Shell {
	return display.NewShell(a.store, display.Options{
		Width:     a.cfg.ExportWidth,
		Height:    a.cfg.ExportHeight,
		CacheSize: a.cfg.DisplayCacheSize,
	}, a.metrics, a.logger)
}
