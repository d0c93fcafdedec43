package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveModel("random_forest", "success", time.Second)
		m.ObserveComparison("success")
		m.JobStarted()
		m.JobFinished("SUCCESS")
		m.ObserveHTTP("/health", 200, time.Millisecond)
	})
}

func TestCounters(t *testing.T) {
	m := New()

	m.ObserveModel("random_forest", "success", 2*time.Second)
	m.ObserveModel("random_forest", "timeout", 0)
	m.ObserveModel("random_forest", "success", time.Second)
	m.JobStarted()
	m.JobStarted()
	m.JobFinished("SUCCESS")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.modelEvaluations.WithLabelValues("random_forest", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.modelEvaluations.WithLabelValues("random_forest", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobsInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobsTotal.WithLabelValues("SUCCESS")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveComparison("success")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `modelcmp_comparison_runs_total{status="success"} 1`)
}
