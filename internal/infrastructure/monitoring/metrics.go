// Package monitoring provides Prometheus metrics collection
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/mealforge/v1/internal/application/planner"
)

// MetricsCollector exposes generation metrics to Prometheus
type MetricsCollector struct {
	logger *zap.Logger

	runsTotal     *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	dbCoverage    prometheus.Histogram
	fallbackSlots prometheus.Counter
}

// NewMetricsCollector creates a new metrics collector registered on reg
func NewMetricsCollector(reg prometheus.Registerer, logger *zap.Logger) *MetricsCollector {
	factory := promauto.With(reg)
	return &MetricsCollector{
		logger: logger,

		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mealplan_runs_total",
				Help: "Total number of plan generation runs",
			},
			[]string{"type", "status"},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mealplan_run_duration_seconds",
				Help:    "Plan generation run duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type", "status"},
		),
		dbCoverage: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mealplan_db_coverage_ratio",
				Help:    "Share of plan slots filled from database candidates",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
		),
		fallbackSlots: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mealplan_fallback_slots_total",
				Help: "Total number of plan slots filled by generative fallback",
			},
		),
	}
}

var _ planner.Metrics = (*MetricsCollector)(nil)

// ObserveRun records one completed or failed generation run
func (m *MetricsCollector) ObserveRun(runType, status string, duration time.Duration) {
	m.runsTotal.WithLabelValues(runType, status).Inc()
	m.runDuration.WithLabelValues(runType, status).Observe(duration.Seconds())
}

// ObserveDBCoverage records the db-sourced share of one generated plan
func (m *MetricsCollector) ObserveDBCoverage(coverage float64) {
	m.dbCoverage.Observe(coverage)
}

// ObserveFallbackSlots counts slots that needed the generative fallback
func (m *MetricsCollector) ObserveFallbackSlots(count int) {
	m.fallbackSlots.Add(float64(count))
}
