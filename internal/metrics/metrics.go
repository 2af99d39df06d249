// Package metrics exposes Prometheus counters for the analysis pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "xblueprint"

// Metrics holds the pipeline collectors and the registry they live in
type Metrics struct {
	registry *prometheus.Registry

	Requests           *prometheus.CounterVec
	SourceAttempts     *prometheus.CounterVec
	GenerationAttempts *prometheus.CounterVec
	RequestDuration    prometheus.Histogram
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyze_requests_total",
			Help:      "Analyze requests by outcome.",
		}, []string{"outcome"}),
		SourceAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_attempts_total",
			Help:      "Source endpoint attempts by endpoint and result.",
		}, []string{"source", "result"}),
		GenerationAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_attempts_total",
			Help:      "Generation calls by api version, model and result.",
		}, []string{"version", "model", "result"}),
		RequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analyze_duration_seconds",
			Help:      "End-to-end analyze latency.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}),
	}
	reg.MustRegister(
		m.Requests,
		m.SourceAttempts,
		m.GenerationAttempts,
		m.RequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(outcome).Inc()
	m.RequestDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveSource(source, result string) {
	if m == nil {
		return
	}
	m.SourceAttempts.WithLabelValues(source, result).Inc()
}

func (m *Metrics) ObserveGeneration(version, model, result string) {
	if m == nil {
		return
	}
	m.GenerationAttempts.WithLabelValues(version, model, result).Inc()
}
