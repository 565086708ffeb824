package watch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the retry loop and the batch scheduler.
var (
	watchFetchAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "watch_fetch_attempts_total",
		Help: "Total number of fetch attempts by classified outcome",
	}, []string{"outcome"})

	watchRetrySleepSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "watch_retry_sleep_seconds",
		Help:    "Sleep duration between fetch attempts by reason",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"reason"})

	watchRetriesExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "watch_retries_exhausted_total",
		Help: "Total number of items that exhausted their retry budget",
	})

	watchItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "watch_items_total",
		Help: "Total number of resolved items by report result",
	}, []string{"result"})

	watchNoValueTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "watch_no_value_total",
		Help: "Total number of items whose directory entry exposed no count",
	})

	watchSinkErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "watch_sink_errors_total",
		Help: "Total number of failed sink inserts",
	})

	watchSubRoundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "watch_sub_rounds_total",
		Help: "Total number of retry sub-rounds issued across all batches",
	})

	watchRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "watch_runs_total",
		Help: "Total number of runs by final status",
	}, []string{"status"})

	watchRunDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "watch_run_duration_seconds",
		Help:    "Wall-clock duration of a full run",
		Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
	})
)

// Sleep reasons for watch_retry_sleep_seconds.
const (
	sleepReasonBackoff   = "backoff"
	sleepReasonRateLimit = "rate_limit"
)

// Result labels for watch_items_total.
const (
	itemResultSuccess = "success"
	itemResultFailed  = "failed"
)

// Status labels for watch_runs_total.
const (
	runStatusCompleted = "completed"
	runStatusCancelled = "cancelled"
)
