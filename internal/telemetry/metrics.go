// Package telemetry holds the Prometheus metrics and the OpenTelemetry trace
// exporter setup.
package telemetry

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records pipeline stage outcomes and HTTP traffic. It satisfies
// basinanalysis.StageObserver.
type Metrics struct {
	StageDuration *prometheus.HistogramVec
	StageOutcomes *prometheus.CounterVec
	Issues        *prometheus.CounterVec
	Analyses      *prometheus.CounterVec
	HTTPRequests  *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics registers the metrics on registry, which must not already hold them.
func NewMetrics(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "basin_stage_duration_seconds",
			Help:    "Time spent in a pipeline stage, including reasoning calls.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"stage", "status"},
	)
	m.StageOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basin_stage_outcomes_total",
			Help: "Pipeline stage outcomes by status.",
		},
		[]string{"stage", "status"},
	)
	m.Issues = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basin_extraction_issues_total",
			Help: "Extraction gaps, invariant violations and data-quality notes raised while building records.",
		},
		[]string{"stage", "kind"},
	)
	m.Analyses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basin_analyses_total",
			Help: "Finished analyses by terminal status.",
		},
		[]string{"status"},
	)
	m.HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basin_http_requests_total",
			Help: "HTTP requests by route and status code.",
		},
		[]string{"route", "code"},
	)
	for _, c := range []prometheus.Collector{m.StageDuration, m.StageOutcomes, m.Issues, m.Analyses, m.HTTPRequests} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register basin metrics: %w", err)
		}
	}
	return m, nil
}

// NewDefaultMetrics uses a fresh registry that also carries the Go runtime
// and process collectors.
func NewDefaultMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewMetrics(registry)
}

func (m *Metrics) ObserveStage(stage, status string, elapsed time.Duration) {
	m.StageDuration.WithLabelValues(stage, status).Observe(elapsed.Seconds())
	m.StageOutcomes.WithLabelValues(stage, status).Inc()
}

func (m *Metrics) ObserveIssue(stage, kind string) {
	m.Issues.WithLabelValues(stage, kind).Inc()
}

func (m *Metrics) ObserveAnalysis(status string) {
	m.Analyses.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveRequest(route string, code int) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
