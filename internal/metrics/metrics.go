// Package metrics provides Prometheus metrics for fetch, import and the
// record store.
//
// A nil *Manager is valid and records nothing, so components can be built
// without metrics in tests and CLI tools.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithRegistry sets the registry metrics are registered on and served from.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// WithHistogramBuckets sets custom histogram buckets (seconds) for durations.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.buckets = buckets
		}
	}
}

// Manager owns every collector of the service.
type Manager struct {
	namespace string
	buckets   []float64
	registry  *prometheus.Registry

	detailRequests *prometheus.CounterVec
	fetchDuration  prometheus.Histogram
	fetchRecords   prometheus.Gauge
	importRows     prometheus.Counter
	importDuration prometheus.Histogram
	storeRecords   prometheus.Gauge
	jobs           *prometheus.CounterVec

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewManager creates a manager with its own registry unless one is given.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "pokelab",
		buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.detailRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "fetch",
		Name:      "detail_requests_total",
		Help:      "Detail requests issued during batched fetches, by result",
	}, []string{"result"})

	m.fetchDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "fetch",
		Name:      "duration_seconds",
		Help:      "Duration of complete catalog fetches",
		Buckets:   m.buckets,
	})

	m.fetchRecords = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "fetch",
		Name:      "last_records",
		Help:      "Records returned by the most recent fetch",
	})

	m.importRows = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "import",
		Name:      "rows_total",
		Help:      "CSV rows converted into records",
	})

	m.importDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "import",
		Name:      "duration_seconds",
		Help:      "Duration of CSV imports",
		Buckets:   m.buckets,
	})

	m.storeRecords = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "store",
		Name:      "records",
		Help:      "Records currently held in the store",
	})

	m.jobs = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "jobs_total",
		Help:      "Fetch and import jobs by kind and outcome",
	}, []string{"kind", "outcome"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status",
	}, []string{"route", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration by route and method",
		Buckets:   m.buckets,
	}, []string{"route", "method"})
}

// Handler serves the manager's registry in the Prometheus text format.
func (m *Manager) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Manager) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordDetail counts one detail request.
func (m *Manager) RecordDetail(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.detailRequests.WithLabelValues(result).Inc()
}

// ObserveFetch records a finished fetch.
func (m *Manager) ObserveFetch(d time.Duration, records int) {
	if m == nil {
		return
	}
	m.fetchDuration.Observe(d.Seconds())
	m.fetchRecords.Set(float64(records))
}

// ObserveImport records a finished import.
func (m *Manager) ObserveImport(d time.Duration, rows int) {
	if m == nil {
		return
	}
	m.importDuration.Observe(d.Seconds())
	m.importRows.Add(float64(rows))
}

// SetStoreRecords updates the store size gauge.
func (m *Manager) SetStoreRecords(n int) {
	if m == nil {
		return
	}
	m.storeRecords.Set(float64(n))
}

// RecordJob counts a finished job.
func (m *Manager) RecordJob(kind, outcome string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(kind, outcome).Inc()
}

// ObserveHTTP records one served request.
func (m *Manager) ObserveHTTP(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}
