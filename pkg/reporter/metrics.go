package reporter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for scheduled reporting.
var (
	reporterRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "measured_reporter_runs_total",
			Help: "Total number of reporter runs by result",
		},
		[]string{"reporter", "result"}, // "ok", "error", "empty"
	)

	publishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "measured_reporter_publish_duration_seconds",
			Help:    "Time spent publishing a snapshot to a sink",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"sink"},
	)

	sinkErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "measured_reporter_sink_errors_total",
			Help: "Total number of failed sink publishes",
		},
		[]string{"sink"},
	)
)
