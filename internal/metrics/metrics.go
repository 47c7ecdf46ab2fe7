// Package metrics exposes worker request counters on a private Prometheus
// registry.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "scriptbridge"

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds the worker's collectors. The zero value is not usable; a nil
// *Metrics is, and records nothing.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	symbols  prometheus.Gauge

	symbolCount atomic.Int64
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests handled, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time spent handling a request, by kind.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"kind"}),
		symbols: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_symbols",
			Help:      "Names currently bound in the symbol registry.",
		}),
	}
	m.registry.MustRegister(
		m.requests,
		m.duration,
		m.symbols,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRequest counts one handled request.
func (m *Metrics) ObserveRequest(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(kind, outcome).Inc()
	m.duration.WithLabelValues(kind).Observe(d.Seconds())
}

// SetSymbols records the registry size.
func (m *Metrics) SetSymbols(n int) {
	if m == nil {
		return
	}
	m.symbolCount.Store(int64(n))
	m.symbols.Set(float64(n))
}

// Symbols returns the last value passed to SetSymbols. Safe to call from
// any goroutine.
func (m *Metrics) Symbols() int {
	if m == nil {
		return 0
	}
	return int(m.symbolCount.Load())
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
