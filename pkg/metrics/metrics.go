// Package metrics provides Prometheus metrics for console executions,
// response delivery, interactive sessions and the ops HTTP server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "console"
)

// Delivery paths recorded by ObserveDelivery.
const (
	DeliveryDirect    = "direct"
	DeliveryOverflow  = "overflow"
	DeliveryTruncated = "truncated"
	DeliveryFailed    = "failed"
)

// Metrics owns a private registry. All methods are safe on a nil receiver so
// components can run without metrics in tests.
type Metrics struct {
	reg *prometheus.Registry

	ExecutionsCounter  *prometheus.CounterVec
	ExecutionDuration  *prometheus.HistogramVec
	DeliveriesCounter  *prometheus.CounterVec
	ActiveSessions     prometheus.Gauge
	ReplaysCounter     prometheus.Counter
	HTTPRequestsCount  *prometheus.CounterVec
	HTTPDurationHistog prometheus.Histogram
}

// NewMetrics creates the console collectors. withRuntime adds the Go runtime
// and process collectors.
func NewMetrics(withRuntime bool) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		ExecutionsCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Snippet executions by mode and outcome",
		}, []string{"mode", "outcome"}),
		ExecutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Snippet execution duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30, 120},
		}, []string{"mode"}),
		DeliveriesCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Responses delivered by path (direct, overflow, truncated, failed)",
		}, []string{"path"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "repl_sessions_active",
			Help:      "Interactive sessions currently open",
		}),
		ReplaysCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edit_replays_total",
			Help:      "Commands re-dispatched after an edit",
		}),
		HTTPRequestsCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Ops HTTP requests by status code",
		}, []string{"code"}),
		HTTPDurationHistog: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Ops HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.3, 0.5, 0.7, 1.0, 3.0, 5.0, 7.0, 10.0},
		}),
	}
	m.reg.MustRegister(
		m.ExecutionsCounter,
		m.ExecutionDuration,
		m.DeliveriesCounter,
		m.ActiveSessions,
		m.ReplaysCounter,
		m.HTTPRequestsCount,
		m.HTTPDurationHistog,
	)
	if withRuntime {
		m.reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// AddCustomMetric registers a custom Prometheus collector.
func (m *Metrics) AddCustomMetric(c prometheus.Collector) {
	m.reg.MustRegister(c)
}

// ObserveExecution records one finished execution.
func (m *Metrics) ObserveExecution(mode, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ExecutionsCounter.WithLabelValues(mode, outcome).Inc()
	m.ExecutionDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// ObserveDelivery records how a response reached the channel.
func (m *Metrics) ObserveDelivery(path string) {
	if m == nil {
		return
	}
	m.DeliveriesCounter.WithLabelValues(path).Inc()
}

// SessionOpened increments the active session gauge.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

// SessionClosed decrements the active session gauge.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

// ObserveReplay counts an edit-triggered re-dispatch.
func (m *Metrics) ObserveReplay() {
	if m == nil {
		return
	}
	m.ReplaysCounter.Inc()
}

// HTTPMiddleware returns a Chi-compatible middleware that tracks HTTP metrics
func (m *Metrics) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			m.HTTPDurationHistog.Observe(time.Since(start).Seconds())
			m.HTTPRequestsCount.WithLabelValues(strconv.Itoa(rw.statusCode)).Inc()
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
