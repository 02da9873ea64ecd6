package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by layer (redis)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "measured_cache_hits_total",
			Help: "Total number of snapshot cache hits",
		},
		[]string{"layer"}, // "redis"
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "measured_cache_misses_total",
			Help: "Total number of snapshot cache misses",
		},
	)

	// CacheSize tracks bytes moved through the cache by layer
	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "measured_cache_size_bytes",
			Help: "Bytes written to or read from the snapshot cache",
		},
		[]string{"layer"}, // "redis"
	)

	// NotModifiedResponses tracks 304 Not Modified responses
	NotModifiedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "measured_cache_not_modified_total",
			Help: "Total number of 304 Not Modified snapshot responses",
		},
	)

	// CachePublishes tracks Publish calls by outcome
	CachePublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "measured_cache_publishes_total",
			Help: "Total number of snapshots published to the cache",
		},
		[]string{"outcome"}, // "stored", "refreshed"
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "measured_cache_errors_total",
			Help: "Total number of snapshot cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "publish", "delete", "scan", "encode"
	)
)
