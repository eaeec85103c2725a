package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "polar_layers"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// layer pipeline and the display shells.
type Metrics struct {
	DatasetsProcessed *prometheus.CounterVec   // labels: dataset, status={ok,empty,failed}
	CellsTabulated    *prometheus.GaugeVec     // labels: dataset
	StageDuration     *prometheus.HistogramVec // labels: stage
	PipelineRunning   prometheus.Gauge

	RemoteObjectsSynced prometheus.Counter

	// Display metrics.
	DisplayRequests *prometheus.CounterVec // labels: route, code
	DisplayCache    *prometheus.CounterVec // labels: result={hit,miss}
}

var stageBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.DatasetsProcessed,
		m.CellsTabulated,
		m.StageDuration,
		m.PipelineRunning,
		m.RemoteObjectsSynced,
		m.DisplayRequests,
		m.DisplayCache,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		DatasetsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datasets_total",
			Help:      "Datasets processed by outcome.",
		}, []string{"dataset", "status"}),
		CellsTabulated: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cells_tabulated",
			Help:      "Cells in the most recent tabulation of each dataset.",
		}, []string{"dataset"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   stageBuckets,
		}, []string{"stage"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a build run is active, 0 otherwise.",
		}),
		RemoteObjectsSynced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_objects_synced_total",
			Help:      "Objects downloaded from the remote store.",
		}),
		DisplayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "display_requests_total",
			Help:      "Display requests by route and status code.",
		}, []string{"route", "code"}),
		DisplayCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "display_cache_total",
			Help:      "Decoded layer cache lookups by result.",
		}, []string{"result"}),
	}
}
