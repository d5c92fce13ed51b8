// Package metrics provides Prometheus metrics for analysis runs and the HTTP API.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns every metric the service records.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	runsAnalyzed        prometheus.Counter
	runErrors           *prometheus.CounterVec
	warnings            *prometheus.CounterVec
	strategiesEvaluated prometheus.Counter
	lapsExtracted       prometheus.Counter
	analyzeDuration     prometheus.Histogram
	lastEffectiveRate   prometheus.Gauge
	lastBestTotalTime   prometheus.Gauge

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var globalManager = NewManager() //nolint:gochecknoglobals // process-wide metrics

// NewManager creates a metrics manager on its own registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "pitstrat",
		subsystem:        "engine",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		registry:         prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.runsAnalyzed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "runs_analyzed_total",
		Help:      "Total number of telemetry runs analyzed",
	})

	m.runErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "run_errors_total",
		Help:      "Total number of failed analyses by error kind",
	}, []string{"kind"})

	m.warnings = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "insufficient_data_warnings_total",
		Help:      "Insufficient-data warnings raised during analysis, by kind",
	}, []string{"kind"})

	m.strategiesEvaluated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "strategies_evaluated_total",
		Help:      "Total number of candidate strategies scored",
	})

	m.lapsExtracted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "laps_extracted_total",
		Help:      "Total number of qualifying laps extracted from telemetry",
	})

	m.analyzeDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "analyze_duration_milliseconds",
		Help:      "Time to run the full analysis pipeline in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.lastEffectiveRate = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "last_effective_deg_rate_seconds",
		Help:      "Effective degradation rate (s/lap) of the most recent run",
	})

	m.lastBestTotalTime = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "last_best_total_time_seconds",
		Help:      "Projected total race time of the best strategy of the most recent run",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests by route, method and status code",
	}, []string{"route", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"route", "method"})
}

// Registry returns the registry the manager registers on.
func (m *Manager) Registry() *prometheus.Registry { return m.registry }

// Handler serves the manager's registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRun records a successful analysis.
func (m *Manager) RecordRun(laps, strategies int, durationMs, effectiveRate, bestTotal float64) {
	m.runsAnalyzed.Inc()
	m.lapsExtracted.Add(float64(laps))
	m.strategiesEvaluated.Add(float64(strategies))
	m.analyzeDuration.Observe(durationMs)
	m.lastEffectiveRate.Set(effectiveRate)
	m.lastBestTotalTime.Set(bestTotal)
}

// RecordRunError records a failed analysis.
func (m *Manager) RecordRunError(kind string) { m.runErrors.WithLabelValues(kind).Inc() }

// RecordWarning records one insufficient-data warning.
func (m *Manager) RecordWarning(kind string) { m.warnings.WithLabelValues(kind).Inc() }

// RecordHTTPRequest records one served request.
func (m *Manager) RecordHTTPRequest(route, method, statusCode string, durationMs float64) {
	m.httpRequests.WithLabelValues(route, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(durationMs)
}

// Default returns the process-wide manager.
func Default() *Manager { return globalManager }
