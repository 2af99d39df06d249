package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveCounters(t *testing.T) {
	m := New()

	m.ObserveRequest("live", 2*time.Second)
	m.ObserveRequest("live", time.Second)
	m.ObserveSource("poast", "too_few")
	m.ObserveGeneration("v1", "gemini-pro", "transient")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("live")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SourceAttempts.WithLabelValues("poast", "too_few")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GenerationAttempts.WithLabelValues("v1", "gemini-pro", "transient")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("live", time.Second)
	m.ObserveSource("a", "ok")
	m.ObserveGeneration("v1", "m", "ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.ObserveRequest("degraded", time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `xblueprint_analyze_requests_total{outcome="degraded"} 1`)
}
