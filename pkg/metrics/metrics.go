// Package metrics bridges measured registries to Prometheus.
//
// Self-metrics of this library are defined in their own packages via
// promauto and land in Registry. A measured registry itself is exposed by
// registering a Collector, which renders every metric at scrape time.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the library.
// All self-metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Registry Metrics (pkg/registry):
//   - measured_registry_metrics_created_total{registry, kind} (Counter): Metrics created
//   - measured_registry_metrics_removed_total{registry} (Counter): Metrics removed or released on shutdown
//   - measured_registry_rejected_calls_total{registry, reason} (Counter): Calls rejected (closed, kind_mismatch, invalid_name)
//
// Snapshot Metrics (pkg/snapshot):
//   - measured_snapshots_total{scope} (Counter): Snapshots rendered (measured, prefix, all)
//   - measured_snapshot_duration_seconds{scope} (Histogram): Snapshot rendering time
//   - measured_snapshot_metrics_omitted_total{reason} (Counter): Metrics left out (error, timeout)
//
// Cache Metrics (pkg/cache):
//   - measured_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - measured_cache_misses_total (Counter): Cache misses
//   - measured_cache_size_bytes{layer="redis"} (Gauge): Bytes moved through the cache
//   - measured_cache_not_modified_total (Counter): 304 Not Modified responses
//   - measured_cache_publishes_total{outcome} (Counter): Published snapshots (stored, refreshed)
//   - measured_cache_errors_total{operation} (Counter): Cache operation errors
//
// Reporter Metrics (pkg/reporter):
//   - measured_reporter_runs_total{reporter, result} (Counter): Report runs (ok, error, empty)
//   - measured_reporter_publish_duration_seconds{sink} (Histogram): Publish latency per sink
//   - measured_reporter_sink_errors_total{sink} (Counter): Publish failures per sink
//
// Exported Registry Metrics (Collector, namespace = JMXDomain):
//   - counter    -> <ns>_<name> (Gauge)
//   - gauge      -> <ns>_<name> (Gauge, numeric values only)
//   - throughput -> <ns>_<name> (Gauge)
//   - meter      -> <ns>_<name>_total (Counter), <ns>_<name>_rate_{mean,1m,5m,15m} (Gauge)
//   - histogram  -> <ns>_<name> (Summary)
//   - timer      -> <ns>_<name>_seconds (Summary), <ns>_<name>_rate_1m (Gauge)
//
// Example Prometheus Queries:
//
//   # Requests per second of one server
//   measured_app_http_servers_0_0_0_0_8080_requests_rate_1m
//
//   # P99 latency in seconds
//   measured_app_http_servers_0_0_0_0_8080_requests_seconds{quantile="0.99"}
//
//   # Gauges failing during snapshots
//   rate(measured_snapshot_metrics_omitted_total[5m])
