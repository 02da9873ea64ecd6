package snapshot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for snapshot rendering.
var (
	snapshotsRendered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "measured_snapshots_total",
			Help: "Total number of snapshots rendered by scope",
		},
		[]string{"scope"}, // "measured", "prefix", "all"
	)

	snapshotDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "measured_snapshot_duration_seconds",
			Help:    "Time spent rendering a snapshot",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		},
		[]string{"scope"},
	)

	metricsOmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "measured_snapshot_metrics_omitted_total",
			Help: "Total number of metrics omitted from snapshots by reason",
		},
		[]string{"reason"}, // "error", "timeout"
	)
)
