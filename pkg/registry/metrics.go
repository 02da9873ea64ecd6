package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics describing registry activity.
var (
	metricsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "measured_registry_metrics_created_total",
			Help: "Total number of metrics created in measured registries",
		},
		[]string{"registry", "kind"},
	)

	metricsRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "measured_registry_metrics_removed_total",
			Help: "Total number of metrics removed from measured registries",
		},
		[]string{"registry"},
	)

	rejectedCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "measured_registry_rejected_calls_total",
			Help: "Total number of registry calls rejected by reason",
		},
		[]string{"registry", "reason"}, // "closed", "kind_mismatch", "invalid_name", "nil_metric"
	)
)
