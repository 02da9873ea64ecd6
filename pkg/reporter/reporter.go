// Package reporter periodically renders a snapshot and hands it to sinks.
//
// A Reporter runs on a cron schedule. Each run takes one snapshot from its
// Source, drops the metrics rejected by the filter and publishes the rest to
// every sink concurrently. Sinks only ever receive the latest snapshot.
package reporter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/measured-metrics/pkg/logging"
	"github.com/Sternrassler/measured-metrics/pkg/measured"
	"github.com/Sternrassler/measured-metrics/pkg/metric"
	"github.com/Sternrassler/measured-metrics/pkg/snapshot"
)

const (
	// DefaultSchedule runs a report every ten seconds.
	DefaultSchedule = "@every 10s"

	// DefaultTimeout bounds a single run.
	DefaultTimeout = 5 * time.Second
)

var (
	// ErrRunning is returned when an operation requires a stopped reporter.
	ErrRunning = errors.New("reporter is running")

	// ErrNotRunning is returned by Stop on a stopped reporter.
	ErrNotRunning = errors.New("reporter is not running")
)

// Source produces the snapshot to report. A nil snapshot means nothing to report.
type Source func() (snapshot.Snapshot, error)

// ForMeasured reports the metrics of m, keyed by suffix.
func ForMeasured(svc *snapshot.Service, m measured.Measured) Source {
	return func() (snapshot.Snapshot, error) { return svc.Measured(m) }
}

// ForPrefix reports every metric under prefix, keyed by full name.
func ForPrefix(svc *snapshot.Service, prefix string) Source {
	return func() (snapshot.Snapshot, error) { return svc.Prefix(prefix) }
}

// ForRegistry reports the whole registry.
func ForRegistry(svc *snapshot.Service) Source {
	return svc.All
}

// Filter decides whether a metric is reported.
type Filter func(name string, doc metric.Document) bool

// AllowAll is the default filter.
func AllowAll(string, metric.Document) bool { return true }

// Config holds reporter configuration.
type Config struct {
	// Name labels logs and self-metrics.
	Name string

	// Schedule is a cron spec, e.g. "@every 30s" or "*/1 * * * *".
	Schedule string

	// Timeout bounds one run including every publish.
	Timeout time.Duration
}

// DefaultConfig returns a default reporter configuration.
func DefaultConfig() Config {
	return Config{
		Name:     "default",
		Schedule: DefaultSchedule,
		Timeout:  DefaultTimeout,
	}
}

// Reporter publishes snapshots on a schedule.
type Reporter struct {
	cfg    Config
	source Source
	sinks  []Sink
	logger zerolog.Logger

	mu      sync.Mutex
	filter  Filter
	cron    *cron.Cron
	running bool
}

// New creates a stopped reporter. It panics when source is nil.
func New(cfg Config, source Source, sinks ...Sink) *Reporter {
	if source == nil {
		panic("reporter source cannot be nil")
	}
	def := DefaultConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.Schedule == "" {
		cfg.Schedule = def.Schedule
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Reporter{
		cfg:    cfg,
		source: source,
		sinks:  sinks,
		logger: logging.NewLogger("reporter").With().Str("reporter", cfg.Name).Logger(),
		filter: AllowAll,
	}
}

// SetFilter replaces the filter. The filter cannot change while running.
func (r *Reporter) SetFilter(f Filter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return ErrRunning
	}
	if f == nil {
		f = AllowAll
	}
	r.filter = f
	return nil
}

// Running reports whether the schedule is active.
func (r *Reporter) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Start schedules runs according to the configured cron spec.
func (r *Reporter) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return ErrRunning
	}

	c := cron.New()
	if _, err := c.AddFunc(r.cfg.Schedule, r.run); err != nil {
		return fmt.Errorf("schedule %q: %w", r.cfg.Schedule, err)
	}
	c.Start()

	r.cron = c
	r.running = true
	r.logger.Info().Str("schedule", r.cfg.Schedule).Int("sinks", len(r.sinks)).Msg("Reporter started")
	return nil
}

// Stop cancels the schedule and waits for a run in progress to finish or
// for ctx to expire.
func (r *Reporter) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return ErrNotRunning
	}
	c := r.cron
	r.cron = nil
	r.running = false
	r.mu.Unlock()

	done := c.Stop()
	select {
	case <-done.Done():
		r.logger.Info().Msg("Reporter stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for running report: %w", ctx.Err())
	}
}

func (r *Reporter) run() {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Timeout)
	defer cancel()

	if _, err := r.Report(ctx); err != nil {
		r.logger.Warn().Err(err).Msg("Report failed")
	}
}

// Report takes one snapshot and publishes it to every sink. It returns the
// filtered snapshot, or nil when there was nothing to report.
func (r *Reporter) Report(ctx context.Context) (snapshot.Snapshot, error) {
	snap, err := r.source()
	if err != nil {
		reporterRuns.WithLabelValues(r.cfg.Name, "error").Inc()
		return nil, fmt.Errorf("take snapshot: %w", err)
	}

	snap = r.apply(snap)
	if snap == nil {
		reporterRuns.WithLabelValues(r.cfg.Name, "empty").Inc()
		r.logger.Debug().Msg("Nothing to report")
		return nil, nil
	}

	var g errgroup.Group
	for _, sink := range r.sinks {
		g.Go(func() error {
			start := time.Now()
			err := sink.Publish(ctx, snap)
			publishDuration.WithLabelValues(sink.Name()).Observe(time.Since(start).Seconds())
			if err != nil {
				sinkErrors.WithLabelValues(sink.Name()).Inc()
				r.logger.Warn().Err(err).Str(logging.FieldSink, sink.Name()).Msg("Publish failed")
				return fmt.Errorf("sink %s: %w", sink.Name(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		reporterRuns.WithLabelValues(r.cfg.Name, "error").Inc()
		return snap, err
	}

	reporterRuns.WithLabelValues(r.cfg.Name, "ok").Inc()
	return snap, nil
}

func (r *Reporter) apply(snap snapshot.Snapshot) snapshot.Snapshot {
	if snap == nil {
		return nil
	}

	r.mu.Lock()
	filter := r.filter
	r.mu.Unlock()

	out := make(snapshot.Snapshot, len(snap))
	for name, doc := range snap {
		if filter(name, doc) {
			out[name] = doc
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
