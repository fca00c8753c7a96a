// Package metrics exposes the Prometheus registry used by the occupancy proxy.
// All metrics are defined in their respective packages (schedule, batch,
// ratelimit, internal/api) via promauto and land on the default registry.
//
// This package provides the scrape handler and a reference of every metric.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Gatherer is the registry scraped by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Fetch Metrics (pkg/schedule):
//   - occupancy_fetch_requests_total{outcome} (Counter): Upstream schedule fetches by outcome
//   - occupancy_fetch_duration_seconds (Histogram): Upstream schedule fetch duration
//   - occupancy_fetch_retries_total{outcome} (Counter): Retry attempts by the outcome that triggered them
//
// Scheduler Metrics (pkg/batch):
//   - occupancy_batch_runs_total{result} (Counter): Runs by result (success, partial, aborted)
//   - occupancy_batches_total (Counter): Batches dispatched
//   - occupancy_batch_run_duration_seconds (Histogram): Run duration
//   - occupancy_batch_aborts_total{reason} (Counter): Early stops (auth_failure, cancelled)
//
// Guard Metrics (pkg/ratelimit):
//   - occupancy_upstream_cooldown_active (Gauge): 1 while runs are refused
//   - occupancy_guard_trips_total{status} (Counter): Cooldowns started by upstream status
//   - occupancy_guard_rejections_total (Counter): Runs refused during a cooldown
//   - occupancy_guard_errors_total (Counter): Redis errors (guard failed open)
//
// HTTP Metrics (internal/api):
//   - occupancy_http_requests_total{route, status} (Counter): Inbound requests
//   - occupancy_http_request_duration_seconds{route} (Histogram): Inbound request duration
//
// Example Prometheus Queries:
//
//   # Upstream failure ratio
//   sum(rate(occupancy_fetch_requests_total{outcome!="success"}[5m])) /
//   sum(rate(occupancy_fetch_requests_total[5m]))
//
//   # Session expiries per hour
//   increase(occupancy_batch_aborts_total{reason="auth_failure"}[1h])
//
//   # P95 run latency
//   histogram_quantile(0.95, rate(occupancy_batch_run_duration_seconds_bucket[5m]))
//
//   # Cooldown in effect
//   occupancy_upstream_cooldown_active == 1
