// Package metrics provides the centralized Prometheus registry surface for
// the watcher. All metrics are defined in their owning packages (watch,
// directory, store) via promauto to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation for the catalog and the HTTP handler
// for the optional metrics listener.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the watcher.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the /metrics handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Resolver Metrics (pkg/watch):
//   - watch_fetch_attempts_total{outcome} (Counter): Fetch attempts by classified outcome
//   - watch_retry_sleep_seconds{reason} (Histogram): Retry sleeps by reason (backoff, rate_limit)
//   - watch_retries_exhausted_total (Counter): Items that exhausted the transient retry budget
//
// Scheduler Metrics (pkg/watch):
//   - watch_items_total{result} (Counter): Items by final result (success, failed)
//   - watch_no_value_total (Counter): Items that resolved without a usable count
//   - watch_sink_errors_total (Counter): Failed sink writes
//   - watch_sub_rounds_total (Counter): Retry passes run inside batches
//   - watch_runs_total{status} (Counter): Runs by status (completed, cancelled)
//   - watch_run_duration_seconds (Histogram): Whole-run duration including sleeps
//
// Directory Metrics (pkg/directory):
//   - directory_requests_total{outcome} (Counter): Directory requests by classified outcome
//   - directory_request_duration_seconds (Histogram): Request duration
//
// Store Metrics (pkg/store):
//   - store_queries_total{query, status} (Counter): Store queries by name and status
//
// Example Prometheus Queries:
//
//   # Item Success Rate
//   sum(rate(watch_items_total{result="success"}[6h])) /
//   sum(rate(watch_items_total[6h]))
//
//   # Rate Limit Pressure
//   rate(watch_retry_sleep_seconds_sum{reason="rate_limit"}[6h])
//
//   # P95 Directory Latency
//   histogram_quantile(0.95, rate(directory_request_duration_seconds_bucket[6h]))
//
//   # Sink Write Failures
//   rate(watch_sink_errors_total[6h])
