package reporter

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/Sternrassler/measured-metrics/pkg/cache"
	"github.com/Sternrassler/measured-metrics/pkg/snapshot"
)

// Sink receives reported snapshots. Within a run, Publish is called
// concurrently with the other sinks.
type Sink interface {
	Name() string
	Publish(ctx context.Context, snap snapshot.Snapshot) error
}

// SinkFunc adapts a function to a Sink named "func".
type SinkFunc func(ctx context.Context, snap snapshot.Snapshot) error

// Name implements Sink.
func (f SinkFunc) Name() string { return "func" }

// Publish implements Sink.
func (f SinkFunc) Publish(ctx context.Context, snap snapshot.Snapshot) error { return f(ctx, snap) }

// LogSink writes one log event per metric.
type LogSink struct {
	logger zerolog.Logger
	level  zerolog.Level
}

// NewLogSink creates a sink logging at level through logger.
func NewLogSink(logger zerolog.Logger, level zerolog.Level) *LogSink {
	return &LogSink{logger: logger, level: level}
}

// Name implements Sink.
func (s *LogSink) Name() string { return "log" }

// Publish implements Sink. Metrics are logged in name order.
func (s *LogSink) Publish(_ context.Context, snap snapshot.Snapshot) error {
	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		s.logger.WithLevel(s.level).
			Str("metric", name).
			Fields(map[string]any(snap[name])).
			Msg("Metrics snapshot")
	}
	return nil
}

// RedisSinkConfig holds RedisSink configuration.
type RedisSinkConfig struct {
	// Key is where the latest snapshot is stored.
	Key cache.Key

	// TTL is how long a published snapshot stays readable.
	TTL time.Duration

	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold uint32

	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// DefaultRedisSinkConfig returns a default configuration for key.
func DefaultRedisSinkConfig(key cache.Key) RedisSinkConfig {
	return RedisSinkConfig{
		Key:              key,
		TTL:              time.Minute,
		FailureThreshold: 3,
		OpenTimeout:      30 * time.Second,
	}
}

// RedisSink stores the latest snapshot through a cache.Manager behind a
// circuit breaker, so an unavailable Redis costs one fast failure per run.
type RedisSink struct {
	manager *cache.Manager
	cfg     RedisSinkConfig
	breaker *gobreaker.CircuitBreaker
	logger  zerolog.Logger
}

// NewRedisSink creates a Redis sink. It panics when manager is nil.
func NewRedisSink(manager *cache.Manager, cfg RedisSinkConfig, logger zerolog.Logger) *RedisSink {
	if manager == nil {
		panic("cache manager cannot be nil")
	}
	def := DefaultRedisSinkConfig(cfg.Key)
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}

	s := &RedisSink{manager: manager, cfg: cfg, logger: logger}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-sink:" + cfg.Key.String(),
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn().
				Str("circuit", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})
	return s
}

// Name implements Sink.
func (s *RedisSink) Name() string { return "redis" }

// State returns the breaker state.
func (s *RedisSink) State() gobreaker.State { return s.breaker.State() }

// Publish implements Sink. When the stored snapshot has the same ETag only
// its expiry is extended.
func (s *RedisSink) Publish(ctx context.Context, snap snapshot.Snapshot) error {
	entry := cache.NewEntry(snap, s.cfg.TTL)

	res, err := s.breaker.Execute(func() (interface{}, error) {
		return s.manager.Publish(ctx, s.cfg.Key, entry)
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", s.cfg.Key, err)
	}
	s.logger.Debug().
		Str("key", s.cfg.Key.String()).
		Str("etag", entry.ETag).
		Str("outcome", string(res.(cache.Outcome))).
		Msg("Snapshot published")
	return nil
}
