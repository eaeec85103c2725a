package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/polar-layers/internal/adapter/http"
	"github.com/couchcryptid/polar-layers/internal/cache"
	"github.com/couchcryptid/polar-layers/internal/display"
	"github.com/couchcryptid/polar-layers/internal/domain"
	"github.com/couchcryptid/polar-layers/internal/observability"
	"github.com/couchcryptid/polar-layers/internal/style"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testLayer() domain.StyledMapLayer {
	return style.Normalize(domain.StyledMapLayer{
		Dataset: domain.HabitatImportance,
		Title:   "Habitat importance",
		CRS:     domain.SouthPolarStereographic,
		Radius:  1000,
		RunID:   "run-7",
		Drawables: []domain.Drawable{
			{Kind: domain.KindData, CellSize: 100, Cells: []domain.FilledCell{
				{X: 50, Y: 50, Value: 0.25, Fill: domain.Color{R: 0x44, G: 0x01, B: 0x54, A: 0xFF}},
				{X: 150, Y: 50, Value: math.NaN(), Missing: true, Fill: domain.Transparent},
			}},
			{Kind: domain.KindLegend, Legend: &domain.Legend{
				Title: "Importance", Kind: domain.Continuous, Min: 0.25, Max: 0.25,
				Ramp: []domain.Color{{A: 0xFF}}, Position: domain.LegendBottom,
			}},
		},
	}, style.Theme("Helvetica", 12))
}

type fixture struct {
	srv     *httpadapter.Server
	metrics *observability.Metrics
}

func newFixture(t *testing.T, readyErr error) fixture {
	t.Helper()
	store := cache.NewStore(t.TempDir())
	_, err := store.Save(context.Background(), domain.HabitatImportance, testLayer())
	require.NoError(t, err)

	m := observability.NewMetricsForTesting()
	shell := display.NewShell(store, display.Options{Width: 200, Height: 272, CacheSize: 2}, m, discardLogger())
	return fixture{
		srv:     httpadapter.NewServer(":0", shell, &mockReadiness{err: readyErr}, m, discardLogger()),
		metrics: m,
	}
}

func (f fixture) do(method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHealthzReturns200(t *testing.T) {
	rec := newFixture(t, nil).do(http.MethodGet, "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := newFixture(t, nil).do(http.MethodGet, "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := newFixture(t, fmt.Errorf("not ready yet")).do(http.MethodGet, "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := newFixture(t, nil).do(http.MethodGet, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestListLayers(t *testing.T) {
	rec := newFixture(t, nil).do(http.MethodGet, "/layers")
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []struct {
		Dataset   string `json:"dataset"`
		Available bool   `json:"available"`
	}
	decode(t, rec, &entries)
	require.Len(t, entries, 4)
	assert.Equal(t, "habitat_importance", entries[1].Dataset)
	assert.True(t, entries[1].Available)
	assert.False(t, entries[0].Available)
}

func TestGetLayer(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodGet, "/layers/habitat-importance")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Title     string   `json:"title"`
		Cells     int      `json:"cells"`
		Drawables []string `json:"drawables"`
		RunID     string   `json:"run_id"`
		Legend    struct {
			Kind string   `json:"kind"`
			Min  *float64 `json:"min"`
		} `json:"legend"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "Habitat importance", body.Title)
	assert.Equal(t, 2, body.Cells)
	assert.Equal(t, []string{"data", "legend"}, body.Drawables)
	assert.Equal(t, "run-7", body.RunID)
	assert.Equal(t, "continuous", body.Legend.Kind)
	require.NotNil(t, body.Legend.Min)

	rec = f.do(http.MethodGet, "/layers/bioregions")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var errBody map[string]string
	decode(t, rec, &errBody)
	assert.Equal(t, "not available", errBody["error"])

	rec = f.do(http.MethodGet, "/layers/penguins")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DisplayRequests.WithLabelValues("layer", "200")))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.DisplayRequests.WithLabelValues("layer", "404")))
}

func TestImageAndCells(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodGet, "/layers/habitat_importance/image.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())

	rec = f.do(http.MethodGet, "/layers/habitat_importance/cells.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "x,y,value,missing,fill\n")
	assert.Contains(t, rec.Body.String(), "150.000,50.000,,true,#FFFFFF00")

	rec = f.do(http.MethodGet, "/layers/primary_productivity/image.png")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestInspect(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodGet, "/layers/habitat_importance/inspect?x=60&y=40")
	require.Equal(t, http.StatusOK, rec.Code)
	var info display.CellInfo
	decode(t, rec, &info)
	require.NotNil(t, info.Value)
	assert.Equal(t, 0.25, *info.Value)

	rec = f.do(http.MethodGet, "/layers/habitat_importance/inspect?x=abc&y=1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/layers/habitat_importance/inspect?x=9000&y=9000")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestToggles(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodPut, "/toggles?coastline=false")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]bool
	decode(t, rec, &body)
	assert.False(t, body["coastline"])
	assert.True(t, body["boundaries"])

	rec = f.do(http.MethodPut, "/toggles?boundaries=maybe")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/toggles")
	decode(t, rec, &body)
	assert.False(t, body["coastline"])
}
