//go:build integration

package integration_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/polar-layers/internal/adapter/kafka"
	"github.com/couchcryptid/polar-layers/internal/basemap"
	"github.com/couchcryptid/polar-layers/internal/cache"
	"github.com/couchcryptid/polar-layers/internal/catalog"
	"github.com/couchcryptid/polar-layers/internal/config"
	"github.com/couchcryptid/polar-layers/internal/domain"
	"github.com/couchcryptid/polar-layers/internal/observability"
	"github.com/couchcryptid/polar-layers/internal/pipeline"
	"github.com/couchcryptid/polar-layers/internal/raster"
	"github.com/couchcryptid/polar-layers/internal/style"
)

const testTopic = "test-layers"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("polar-layers-test"))
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start kafka container")

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     2,
		ReplicationFactor: 1,
	}))
}

// writeFixtures lays out a mirror directory holding every catalog raster and
// a bathymetry grid, all on the same synthetic 5 degree grid.
func writeFixtures(t *testing.T) (mirror string, base config.BaseMapConfig) {
	t.Helper()
	mirror = t.TempDir()

	const cols, rows = 72, 12
	values := make([]float64, cols*rows)
	depth := make([]float64, cols*rows)
	for i := range values {
		values[i] = float64((i/cols)%4 + 1)
		depth[i] = -float64(500 * (i / cols))
	}
	write := func(rel string, vals []float64) {
		r, err := domain.NewGeoRaster(rel, domain.WGS84, domain.GeoTransform{-180, 5, 0, -30, 0, -5}, cols, rows, vals)
		require.NoError(t, err)
		path := filepath.Join(mirror, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		f, err := os.Create(path)
		require.NoError(t, err)
		require.NoError(t, raster.WriteASCIIGrid(f, r, -9999))
		require.NoError(t, f.Close())
	}

	for _, e := range catalog.Entries() {
		write(plainName(e.Source.Location), values)
	}
	write("basemap/bathymetry.asc", depth)
	return mirror, config.BaseMapConfig{
		BathymetrySource: "basemap/bathymetry.asc",
		TrimLatitude:     -45,
		BorderWidth:      2,
		MeridianStep:     30,
		ParallelStep:     15,
	}
}

// plainName drops a .gz suffix so fixtures can be written uncompressed; the
// catalog locations are overridden to match.
func plainName(loc string) string {
	if filepath.Ext(loc) == ".gz" {
		return loc[:len(loc)-3]
	}
	return loc
}

// TestBuildPublishesLayerEvents runs a full build against real Kafka and
// checks that one event per written layer reaches the topic.
func TestBuildPublishesLayerEvents(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	mirror, baseCfg := writeFixtures(t)
	entries := catalog.Entries()
	for i := range entries {
		entries[i].Source.Location = plainName(entries[i].Source.Location)
	}

	loader := raster.NewLoader(mirror, nil, discardLogger())
	store := cache.NewStore(t.TempDir())
	writer := kafka.NewWriter([]string{broker}, testTopic, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(pipeline.Stages{
		BaseMap:   basemap.NewBuilder(baseCfg, 500_000, loader, discardLogger()),
		Loader:    loader,
		Stylist:   style.NewStylist(discardLogger()),
		Store:     store,
		Publisher: writer,
	}, pipeline.Options{
		Entries:  entries,
		CellSize: 500_000,
		Workers:  2,
		Theme:    style.Theme("Helvetica", 12),
	}, discardLogger(), observability.NewMetricsForTesting())

	report, err := p.Run(ctx)
	require.NoError(t, err)
	require.Empty(t, report.Failed())
	require.Equal(t, 4, report.Count(pipeline.StatusOK))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	seen := map[domain.DatasetID]domain.LayerEvent{}
	for len(seen) < 4 {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err, "read layer event")

		event, err := kafka.DeserializeMessage(msg)
		require.NoError(t, err)
		assert.Equal(t, string(event.Dataset), string(msg.Key))

		headers := map[string]string{}
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		assert.Equal(t, report.RunID, headers["run_id"])
		_, err = time.Parse(time.RFC3339, headers["built_at"])
		assert.NoError(t, err, "built_at should be RFC3339")

		seen[event.Dataset] = event
	}

	for _, res := range report.Results {
		event, ok := seen[res.Dataset]
		require.True(t, ok, "missing event for %s", res.Dataset)
		assert.Equal(t, res.Path, event.Path)
		assert.Equal(t, res.Cells, event.Cells)
		assert.Equal(t, "ok", event.Status)

		layer, err := store.Load(ctx, res.Dataset)
		require.NoError(t, err)
		assert.Equal(t, report.RunID, layer.RunID)
		assert.Greater(t, layer.Radius, 0.0)
		assert.False(t, math.IsNaN(layer.Radius))
	}
}
