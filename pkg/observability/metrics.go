package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics is a MetricsClient backed by client_golang. Vectors are
// created lazily on first use per metric name, keyed by that name, with
// the label names observed on that first call (queries_total{project_id,status},
// cache_hits_total, query_duration_seconds{operation,status},
// collection_size{project_id}, ...).
type PrometheusMetrics struct {
	registry *prometheus.Registry
	mu       sync.Mutex

	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// NewPrometheusMetrics creates a new MetricsClient registered against a
// fresh Prometheus registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		registry:   prometheus.NewRegistry(),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

// Registry exposes the underlying registry so a composition root can wire
// it into an HTTP /metrics handler (out of core scope, consumed by the
// surface).
func (m *PrometheusMetrics) Registry() *prometheus.Registry { return m.registry }

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	return names
}

func (m *PrometheusMetrics) counterVec(name string, labels map[string]string) *prometheus.CounterVec {
	m.mu.Lock()
	defer m.mu.Unlock()

	cv, ok := m.counters[name]
	if !ok {
		cv = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: name}, labelNames(labels))
		m.registry.MustRegister(cv)
		m.counters[name] = cv
	}
	return cv
}

func (m *PrometheusMetrics) gaugeVec(name string, labels map[string]string) *prometheus.GaugeVec {
	m.mu.Lock()
	defer m.mu.Unlock()

	gv, ok := m.gauges[name]
	if !ok {
		gv = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: name}, labelNames(labels))
		m.registry.MustRegister(gv)
		m.gauges[name] = gv
	}
	return gv
}

func (m *PrometheusMetrics) histogramVec(name string, labels map[string]string) *prometheus.HistogramVec {
	m.mu.Lock()
	defer m.mu.Unlock()

	hv, ok := m.histograms[name]
	if !ok {
		hv = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: name}, labelNames(labels))
		m.registry.MustRegister(hv)
		m.histograms[name] = hv
	}
	return hv
}

// IncrementCounter increments an unlabeled counter by value.
func (m *PrometheusMetrics) IncrementCounter(name string, value float64) {
	m.counterVec(name, nil).With(nil).Add(value)
}

// IncrementCounterWithLabels increments a labeled counter by value.
func (m *PrometheusMetrics) IncrementCounterWithLabels(name string, value float64, labels map[string]string) {
	m.counterVec(name, labels).With(labels).Add(value)
}

// RecordGauge sets a gauge to value.
func (m *PrometheusMetrics) RecordGauge(name string, value float64, labels map[string]string) {
	m.gaugeVec(name, labels).With(labels).Set(value)
}

// RecordHistogram observes value on a histogram.
func (m *PrometheusMetrics) RecordHistogram(name string, value float64, labels map[string]string) {
	m.histogramVec(name, labels).With(labels).Observe(value)
}

// StartTimer returns a function that, when called, records the elapsed
// time since StartTimer was called as a histogram observation.
func (m *PrometheusMetrics) StartTimer(name string, labels map[string]string) func() {
	start := time.Now()
	return func() {
		m.RecordHistogram(name, time.Since(start).Seconds(), labels)
	}
}

// Close is a no-op; the registry has no external connection to release.
func (m *PrometheusMetrics) Close() error { return nil }

// NoopMetrics discards every observation. Used by components constructed
// without an observability stack.
type NoopMetrics struct{}

func NewNoopMetrics() MetricsClient { return &NoopMetrics{} }

func (*NoopMetrics) IncrementCounter(string, float64)                                {}
func (*NoopMetrics) IncrementCounterWithLabels(string, float64, map[string]string)    {}
func (*NoopMetrics) RecordGauge(string, float64, map[string]string)                  {}
func (*NoopMetrics) RecordHistogram(string, float64, map[string]string)              {}
func (*NoopMetrics) StartTimer(string, map[string]string) func()                      { return func() {} }
func (*NoopMetrics) Close() error                                                     { return nil }
