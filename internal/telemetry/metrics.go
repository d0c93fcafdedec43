// Package telemetry exposes Prometheus metrics of comparisons, jobs and the API.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "modelcmp"

// Metrics holds every collector on its own registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	modelEvaluations *prometheus.CounterVec
	modelDuration    *prometheus.HistogramVec
	modelScore       *prometheus.GaugeVec
	comparisons      *prometheus.CounterVec
	symbolsCompared  *prometheus.CounterVec
	jobsInFlight     prometheus.Gauge
	jobsTotal        *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		modelEvaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_evaluations_total",
			Help:      "Model train+evaluate units by family and outcome kind",
		}, []string{"family", "status"}),

		modelDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_training_seconds",
			Help:      "Model training duration by family",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"family"}),

		modelScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_score",
			Help:      "Latest composite score per symbol and model",
		}, []string{"symbol", "model"}),

		comparisons: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comparison_runs_total",
			Help:      "Single-symbol comparison runs by status",
		}, []string{"status"}),

		symbolsCompared: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregate_symbols_total",
			Help:      "Symbols processed by batch comparisons by status",
		}, []string{"status"}),

		jobsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_in_flight",
			Help:      "Comparison jobs currently running",
		}),

		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Finished comparison jobs by terminal state",
		}, []string{"state"}),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by route and status code",
		}, []string{"route", "code"}),

		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.modelEvaluations, m.modelDuration, m.modelScore,
		m.comparisons, m.symbolsCompared,
		m.jobsInFlight, m.jobsTotal,
		m.httpRequests, m.httpDuration,
	)
	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveModel records one model unit; status is "success" or an error kind
func (m *Metrics) ObserveModel(family, status string, training time.Duration) {
	if m == nil {
		return
	}
	m.modelEvaluations.WithLabelValues(family, status).Inc()
	if status == "success" {
		m.modelDuration.WithLabelValues(family).Observe(training.Seconds())
	}
}

// SetModelScore records the composite score of a model on a symbol
func (m *Metrics) SetModelScore(symbol, model string, score float64) {
	if m == nil {
		return
	}
	m.modelScore.WithLabelValues(symbol, model).Set(score)
}

// ObserveComparison records a finished single-symbol comparison
func (m *Metrics) ObserveComparison(status string) {
	if m == nil {
		return
	}
	m.comparisons.WithLabelValues(status).Inc()
}

// ObserveSymbol records one symbol of a batch comparison
func (m *Metrics) ObserveSymbol(status string) {
	if m == nil {
		return
	}
	m.symbolsCompared.WithLabelValues(status).Inc()
}

// JobStarted increments the in-flight gauge
func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.jobsInFlight.Inc()
}

// JobFinished decrements the in-flight gauge and counts the terminal state
func (m *Metrics) JobFinished(state string) {
	if m == nil {
		return
	}
	m.jobsInFlight.Dec()
	m.jobsTotal.WithLabelValues(state).Inc()
}

// ObserveHTTP records one API request
func (m *Metrics) ObserveHTTP(route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
