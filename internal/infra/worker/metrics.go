package worker

import (
	"threatwatch/internal/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkerMetrics provides Prometheus metrics for the poll worker. It embeds
// ConfigMetrics for configuration monitoring and adds counters for scheduled
// poll runs.
//
// Worker-specific metrics:
//   - worker_poll_runs_total: total poll runs by status (success/failure)
//   - worker_poll_duration_seconds: duration histogram of poll execution
//   - worker_poll_items_total: total items collected across all runs
//   - worker_poll_last_success_timestamp: Unix timestamp of last successful run
type WorkerMetrics struct {
	*config.ConfigMetrics

	// PollRunsTotal counts scheduled poll runs by outcome.
	PollRunsTotal *prometheus.CounterVec

	// PollDurationSeconds measures how long a full poll takes across all feeds.
	PollDurationSeconds prometheus.Histogram

	// PollItemsTotal counts news items collected across all runs.
	PollItemsTotal prometheus.Counter

	// PollLastSuccessTimestamp records when the last successful poll finished.
	PollLastSuccessTimestamp prometheus.Gauge
}

// NewWorkerMetrics creates all worker metrics. Registration happens via
// promauto at construction time; MustRegister is kept as a no-op for the
// usual init sequence.
func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),

		PollRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_poll_runs_total",
			Help: "Total number of poll runs by status (success/failure)",
		}, []string{"status"}),

		PollDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_poll_duration_seconds",
			Help:    "Duration of a full poll across all feeds in seconds",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 300},
		}),

		PollItemsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "worker_poll_items_total",
			Help: "Total number of news items collected across all poll runs",
		}),

		PollLastSuccessTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "worker_poll_last_success_timestamp",
			Help: "Unix timestamp of the last successful poll run",
		}),
	}
}

// MustRegister is a no-op: metrics are auto-registered via promauto.
func (m *WorkerMetrics) MustRegister() {}

// RecordPollRun increments the run counter. Status is "success" or "failure".
func (m *WorkerMetrics) RecordPollRun(status string) {
	m.PollRunsTotal.WithLabelValues(status).Inc()
}

// RecordPollDuration observes the duration of one poll run in seconds.
func (m *WorkerMetrics) RecordPollDuration(seconds float64) {
	m.PollDurationSeconds.Observe(seconds)
}

// RecordItemsCollected adds the number of items collected by one run.
func (m *WorkerMetrics) RecordItemsCollected(count int) {
	m.PollItemsTotal.Add(float64(count))
}

// RecordLastSuccess marks the current time as the last successful run.
func (m *WorkerMetrics) RecordLastSuccess() {
	m.PollLastSuccessTimestamp.SetToCurrentTime()
}
