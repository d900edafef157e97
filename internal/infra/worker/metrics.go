package worker

import (
	"newsfeed-pipeline/internal/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CycleMetrics provides Prometheus metrics for the worker process's three
// run loops (fresh-link collection, page-fetch dispatch, embedding
// scheduling), each identified by a "stage" label so one set of metrics
// covers all three instead of duplicating counters per loop. Embeds
// ConfigMetrics for the same configuration-load observability every
// fail-open loader in this module exposes.
type CycleMetrics struct {
	// Embedded configuration metrics
	*config.ConfigMetrics

	// CycleRunsTotal counts cycle executions by stage and outcome.
	// Type: Counter
	// Labels: stage (collector, dispatcher, scheduler), status (success, failure)
	CycleRunsTotal *prometheus.CounterVec

	// CycleDurationSeconds observes wall-clock time per cycle.
	// Type: Histogram
	// Labels: stage
	CycleDurationSeconds *prometheus.HistogramVec

	// CycleItemsProcessedTotal counts items (links claimed, articles
	// claimed) handled per cycle.
	// Type: Counter
	// Labels: stage
	CycleItemsProcessedTotal *prometheus.CounterVec

	// CycleLastSuccessTimestamp records the Unix time of each stage's
	// last successful cycle.
	// Type: Gauge
	// Labels: stage
	CycleLastSuccessTimestamp *prometheus.GaugeVec
}

// NewCycleMetrics creates a CycleMetrics instance. Metrics are registered
// automatically via promauto.
func NewCycleMetrics() *CycleMetrics {
	return &CycleMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),

		CycleRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_cycle_runs_total",
			Help: "Total number of run-loop cycles by stage and outcome",
		}, []string{"stage", "status"}),

		CycleDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "worker_cycle_duration_seconds",
			Help:    "Duration of one run-loop cycle in seconds, by stage",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300},
		}, []string{"stage"}),

		CycleItemsProcessedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_cycle_items_processed_total",
			Help: "Total number of items claimed/processed per cycle, by stage",
		}, []string{"stage"}),

		CycleLastSuccessTimestamp: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "worker_cycle_last_success_timestamp",
			Help: "Unix timestamp of the last successful cycle, by stage",
		}, []string{"stage"}),
	}
}

// RecordCycleRun increments the cycle counter for stage/status.
func (m *CycleMetrics) RecordCycleRun(stage, status string) {
	m.CycleRunsTotal.WithLabelValues(stage, status).Inc()
}

// RecordCycleDuration observes a cycle's duration in seconds for stage.
func (m *CycleMetrics) RecordCycleDuration(stage string, seconds float64) {
	m.CycleDurationSeconds.WithLabelValues(stage).Observe(seconds)
}

// RecordItemsProcessed adds count to stage's items-processed total.
func (m *CycleMetrics) RecordItemsProcessed(stage string, count int) {
	m.CycleItemsProcessedTotal.WithLabelValues(stage).Add(float64(count))
}

// RecordLastSuccess sets stage's last-success gauge to the current time.
func (m *CycleMetrics) RecordLastSuccess(stage string) {
	m.CycleLastSuccessTimestamp.WithLabelValues(stage).SetToCurrentTime()
}
