// Package registry owns the mapping from metric name to metric instance.
//
// Creation is get-or-create and linearizable per name: concurrent callers
// asking for the same name always receive the same instance. The registry
// stores whatever it is asked to; deciding whether a name is worth recording
// is left to the call site (see package match).
//
// After Shutdown every operation fails with ErrRegistryClosed. The plain
// accessors Name, Clock, Closed and Len are exempt: they keep answering
// (Len reports 0) so callers can inspect a closed registry.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/measured-metrics/pkg/logging"
	"github.com/Sternrassler/measured-metrics/pkg/metric"
)

// Registry is a thread-safe set of named metrics.
type Registry struct {
	name   string
	clock  metric.Clock
	logger zerolog.Logger

	mu      sync.RWMutex
	metrics map[string]metric.Metric
	closed  bool

	// onShutdown is set for shared registries to drop them from the shared set.
	onShutdown func()
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the clock handed to time-dependent metrics.
func WithClock(clock metric.Clock) Option {
	return func(r *Registry) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithLogger sets the registry logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// New creates an empty, unshared registry.
func New(name string, opts ...Option) *Registry {
	r := &Registry{
		name:    name,
		clock:   metric.SystemClock,
		logger:  logging.NewLogger("registry"),
		metrics: make(map[string]metric.Metric),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.WithRegistry(r.logger, name)
	return r
}

// Name returns the registry name.
func (r *Registry) Name() string { return r.name }

// Clock returns the clock used for new metrics.
func (r *Registry) Clock() metric.Clock { return r.clock }

// Closed reports whether Shutdown has been called.
func (r *Registry) Closed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// Counter returns the counter registered under name, creating it if needed.
func (r *Registry) Counter(name string) (*metric.Counter, error) {
	return getOrCreate(r, name, metric.KindCounter, func() *metric.Counter {
		return metric.NewCounter()
	})
}

// Gauge returns the gauge registered under name, creating it with fn if
// needed. When the gauge already exists fn is ignored.
func (r *Registry) Gauge(name string, fn metric.GaugeFunc) (*metric.Gauge, error) {
	return getOrCreate(r, name, metric.KindGauge, func() *metric.Gauge {
		return metric.NewGauge(fn)
	})
}

// Histogram returns the histogram registered under name, creating it if needed.
func (r *Registry) Histogram(name string) (*metric.Histogram, error) {
	return getOrCreate(r, name, metric.KindHistogram, func() *metric.Histogram {
		return metric.NewHistogram(r.clock)
	})
}

// Meter returns the meter registered under name, creating it if needed.
func (r *Registry) Meter(name string) (*metric.Meter, error) {
	return getOrCreate(r, name, metric.KindMeter, func() *metric.Meter {
		return metric.NewMeter(r.clock)
	})
}

// Timer returns the timer registered under name, creating it if needed.
func (r *Registry) Timer(name string) (*metric.Timer, error) {
	return getOrCreate(r, name, metric.KindTimer, func() *metric.Timer {
		return metric.NewTimer(r.clock)
	})
}

// Throughput returns the throughput metric registered under name, creating it if needed.
func (r *Registry) Throughput(name string) (*metric.Throughput, error) {
	return getOrCreate(r, name, metric.KindThroughput, func() *metric.Throughput {
		return metric.NewThroughput(r.clock)
	})
}

// Register stores m under name unless a metric already exists there, and
// returns the stored instance. An existing metric of another kind yields
// ErrKindMismatch.
func (r *Registry) Register(name string, m metric.Metric) (metric.Metric, error) {
	if m == nil {
		rejectedCalls.WithLabelValues(r.name, "nil_metric").Inc()
		return nil, &MetricError{Name: name, Err: ErrNilMetric}
	}
	return getOrCreate(r, name, m.Kind(), func() metric.Metric { return m })
}

// getOrCreate implements the double-checked create shared by all kinds.
func getOrCreate[T metric.Metric](r *Registry, name string, kind metric.Kind, create func() T) (T, error) {
	var zero T

	if strings.TrimSpace(name) == "" {
		rejectedCalls.WithLabelValues(r.name, "invalid_name").Inc()
		return zero, &MetricError{Name: name, Kind: kind, Err: ErrInvalidName}
	}

	r.mu.RLock()
	existing, ok := r.metrics[name]
	closed := r.closed
	r.mu.RUnlock()

	if closed {
		return zero, r.closedError()
	}
	if ok {
		return typed[T](r, name, kind, existing)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return zero, r.closedError()
	}
	if existing, ok = r.metrics[name]; ok {
		r.mu.Unlock()
		return typed[T](r, name, kind, existing)
	}
	created := create()
	r.metrics[name] = created
	r.mu.Unlock()

	metricsCreated.WithLabelValues(r.name, string(kind)).Inc()
	r.logger.Debug().Str(logging.FieldMetric, name).Str(logging.FieldKind, string(kind)).Msg("Metric created")
	return created, nil
}

func typed[T metric.Metric](r *Registry, name string, kind metric.Kind, existing metric.Metric) (T, error) {
	m, ok := existing.(T)
	if !ok || existing.Kind() != kind {
		var zero T
		rejectedCalls.WithLabelValues(r.name, "kind_mismatch").Inc()
		return zero, &MetricError{
			Name:         name,
			Kind:         kind,
			Existing:     existing.Kind(),
			ExistingType: fmt.Sprintf("%T", existing),
			Err:          ErrKindMismatch,
		}
	}
	return m, nil
}

func (r *Registry) closedError() error {
	rejectedCalls.WithLabelValues(r.name, "closed").Inc()
	return ErrRegistryClosed
}

// Get returns the metric registered under name.
func (r *Registry) Get(name string) (metric.Metric, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, false, r.closedError()
	}
	m, ok := r.metrics[name]
	return m, ok, nil
}

// Remove unregisters name. It reports false when nothing was registered.
func (r *Registry) Remove(name string) (bool, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false, r.closedError()
	}
	_, ok := r.metrics[name]
	delete(r.metrics, name)
	r.mu.Unlock()

	if ok {
		metricsRemoved.WithLabelValues(r.name).Inc()
		r.logger.Debug().Str(logging.FieldMetric, name).Msg("Metric removed")
	}
	return ok, nil
}

// RemoveMatching unregisters every metric in namespace ns (ns itself and
// everything below ns + ".") and returns how many were removed.
func (r *Registry) RemoveMatching(ns string) (int, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return 0, r.closedError()
	}
	removed := 0
	for name := range r.metrics {
		if metric.InNamespace(name, ns) {
			delete(r.metrics, name)
			removed++
		}
	}
	r.mu.Unlock()

	if removed > 0 {
		metricsRemoved.WithLabelValues(r.name).Add(float64(removed))
		r.logger.Debug().Str(logging.FieldNamespace, ns).Int("count", removed).Msg("Metrics removed")
	}
	return removed, nil
}

// Names returns a sorted copy of all registered names.
func (r *Registry) Names() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, r.closedError()
	}
	names := make([]string, 0, len(r.metrics))
	for name := range r.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Select returns a copy of the metrics in namespace ns. The lock is released
// before the copy is returned, so callers may render the metrics freely.
func (r *Registry) Select(ns string) (map[string]metric.Metric, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, r.closedError()
	}
	selected := make(map[string]metric.Metric)
	for name, m := range r.metrics {
		if metric.InNamespace(name, ns) {
			selected[name] = m
		}
	}
	return selected, nil
}

// Len returns the number of registered metrics. It never fails; a closed
// registry holds no metrics and reports 0.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.metrics)
}

// Shutdown releases all metrics. Every later call fails with
// ErrRegistryClosed. Calling Shutdown more than once is a no-op.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	released := len(r.metrics)
	r.metrics = make(map[string]metric.Metric)
	onShutdown := r.onShutdown
	r.mu.Unlock()

	if onShutdown != nil {
		onShutdown()
	}
	metricsRemoved.WithLabelValues(r.name).Add(float64(released))
	r.logger.Info().Int("released", released).Msg("Registry shut down")
}
