package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleMetrics(t *testing.T) {
	m := NewMetrics(false)

	m.ObserveExecution("eval", "success", 10*time.Millisecond)
	m.ObserveExecution("eval", "success", 20*time.Millisecond)
	m.ObserveExecution("sh", "failure", time.Second)
	m.ObserveDelivery(DeliveryDirect)
	m.ObserveDelivery(DeliveryOverflow)
	m.ObserveDelivery(DeliveryOverflow)
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()
	m.ObserveReplay()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ExecutionsCounter.WithLabelValues("eval", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExecutionsCounter.WithLabelValues("sh", "failure")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DeliveriesCounter.WithLabelValues(DeliveryOverflow)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSessions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReplaysCounter))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveExecution("eval", "success", time.Millisecond)
		m.ObserveDelivery(DeliveryFailed)
		m.SessionOpened()
		m.SessionClosed()
		m.ObserveReplay()
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewMetrics(true)
	m.ObserveDelivery(DeliveryTruncated)

	custom := prometheus.NewCounter(prometheus.CounterOpts{Name: "custom_total", Help: "custom"})
	m.AddCustomMetric(custom)
	custom.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `console_deliveries_total{path="truncated"} 1`)
	assert.Contains(t, string(body), "custom_total 1")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestHTTPMiddleware(t *testing.T) {
	m := NewMetrics(false)
	handler := m.HTTPMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsCount.WithLabelValues("200")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsCount.WithLabelValues("404")))
}
