package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/polar-layers/internal/cache"
	"github.com/couchcryptid/polar-layers/internal/display"
	"github.com/couchcryptid/polar-layers/internal/domain"
	"github.com/couchcryptid/polar-layers/internal/observability"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker = sharedobs.ReadinessChecker

// Display is the read API the HTTP shell serves.
type Display interface {
	Layers(ctx context.Context) ([]cache.Entry, error)
	Select(ctx context.Context, key string) display.View
	ExportImage(ctx context.Context, w io.Writer, key string) error
	ExportTable(ctx context.Context, w io.Writer, key string) error
	Inspect(ctx context.Context, key string, x, y float64) (display.CellInfo, error)
	SetShowCoastline(v bool)
	SetShowBoundaries(v bool)
	Toggles() (coastline, boundaries bool)
}

// Server exposes the layer display routes plus health, readiness, and
// metrics endpoints.
type Server struct {
	httpServer *http.Server
	display    Display
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the /layers routes, /healthz,
// /readyz, and /metrics.
func NewServer(addr string, d Display, ready ReadinessChecker, metrics *observability.Metrics, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		display: d,
		metrics: metrics,
		logger:  logger,
	}

	mux.HandleFunc("GET /layers", s.instrument("layers", s.handleLayers))
	mux.HandleFunc("GET /layers/{key}", s.instrument("layer", s.handleLayer))
	mux.HandleFunc("GET /layers/{key}/image.png", s.instrument("image", s.handleImage))
	mux.HandleFunc("GET /layers/{key}/cells.csv", s.instrument("cells", s.handleCells))
	mux.HandleFunc("GET /layers/{key}/inspect", s.instrument("inspect", s.handleInspect))
	mux.HandleFunc("GET /toggles", s.instrument("toggles", s.handleToggles))
	mux.HandleFunc("PUT /toggles", s.instrument("toggles", s.handleToggles))
	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		h(rec, r)
		s.metrics.DisplayRequests.WithLabelValues(route, strconv.Itoa(rec.code)).Inc()
	}
}

type layerSummary struct {
	Dataset   domain.DatasetID `json:"dataset"`
	Title     string           `json:"title"`
	CRS       string           `json:"crs"`
	Radius    float64          `json:"radius_m"`
	Cells     int              `json:"cells"`
	Drawables []string         `json:"drawables"`
	Legend    *legendJSON      `json:"legend,omitempty"`
	RunID     string           `json:"run_id,omitempty"`
	BuiltAt   time.Time        `json:"built_at"`
}

type legendJSON struct {
	Title    string            `json:"title"`
	Kind     string            `json:"kind"`
	Entries  map[string]string `json:"entries,omitempty"`
	Min      *float64          `json:"min,omitempty"`
	Max      *float64          `json:"max,omitempty"`
	Position string            `json:"position"`
}

func summarize(layer domain.StyledMapLayer) layerSummary {
	sum := layerSummary{
		Dataset: layer.Dataset,
		Title:   layer.Title,
		CRS:     layer.CRS.String(),
		Radius:  layer.Radius,
		RunID:   layer.RunID,
		BuiltAt: layer.BuiltAt,
	}
	for _, d := range layer.Drawables {
		sum.Drawables = append(sum.Drawables, string(d.Kind))
	}
	if data, ok := layer.PrimaryData(); ok {
		sum.Cells = len(data.Cells)
	}
	if l, ok := layer.Legend(); ok {
		lj := &legendJSON{Title: l.Title, Kind: l.Kind.String(), Position: string(l.Position)}
		if l.Kind == domain.Discrete {
			lj.Entries = make(map[string]string, len(l.Entries))
			for _, e := range l.Entries {
				lj.Entries[e.Label] = e.Color.Hex()
			}
		} else {
			lo, hi := l.Min, l.Max
			lj.Min, lj.Max = &lo, &hi
		}
		sum.Legend = lj
	}
	return sum
}

func (s *Server) handleLayers(w http.ResponseWriter, r *http.Request) {
	entries, err := s.display.Layers(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, entries)
}

func (s *Server) handleLayer(w http.ResponseWriter, r *http.Request) {
	v := s.display.Select(r.Context(), r.PathValue("key"))
	if !v.Available {
		sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"error": v.Reason})
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, summarize(v.Layer))
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.display.ExportImage(r.Context(), &buf, r.PathValue("key")); err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck // client gone
}

func (s *Server) handleCells(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.display.ExportTable(r.Context(), &buf, r.PathValue("key")); err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck // client gone
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	x, errX := strconv.ParseFloat(q.Get("x"), 64)
	y, errY := strconv.ParseFloat(q.Get("y"), 64)
	if errX != nil || errY != nil {
		sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "x and y must be numbers"})
		return
	}
	info, err := s.display.Inspect(r.Context(), r.PathValue("key"), x, y)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, info)
}

func (s *Server) handleToggles(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPut {
		q := r.URL.Query()
		for name, set := range map[string]func(bool){
			"coastline":  s.display.SetShowCoastline,
			"boundaries": s.display.SetShowBoundaries,
		} {
			raw := q.Get(name)
			if raw == "" {
				continue
			}
			v, err := strconv.ParseBool(raw)
			if err != nil {
				sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": name + " must be a boolean"})
				return
			}
			set(v)
		}
	}
	coast, bounds := s.display.Toggles()
	sharedobs.WriteJSON(w, http.StatusOK, map[string]bool{"coastline": coast, "boundaries": bounds})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, domain.ErrNotFound) {
		status = http.StatusNotFound
	} else {
		s.logger.Error("display request failed", "error", err)
	}
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}
