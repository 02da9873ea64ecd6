// Package measured defines the capability a component exposes to be
// instrumented, and a helper that registers its metrics under its base name.
package measured

import (
	"github.com/rs/zerolog"

	"github.com/Sternrassler/measured-metrics/pkg/logging"
	"github.com/Sternrassler/measured-metrics/pkg/metric"
	"github.com/Sternrassler/measured-metrics/pkg/registry"
)

// Measured is implemented by every component whose metrics are namespaced
// under a stable base name.
type Measured interface {
	BaseName() string
}

// BaseName returns m's base name, or "" for a nil m.
func BaseName(m Measured) string {
	if m == nil {
		return ""
	}
	return m.BaseName()
}

// Base registers metrics for one measured object. Instrumentation never
// fails: when the registry is nil, closed, or holds a metric of another kind
// under the requested name, Base logs the problem and hands out a detached
// metric that records into nothing visible.
//
// Objects sharing a base name share metric instances, so their updates
// aggregate.
type Base struct {
	registry *registry.Registry
	baseName string
	logger   zerolog.Logger
}

// NewBase creates a helper for baseName. A nil registry disables recording.
func NewBase(reg *registry.Registry, baseName string) *Base {
	logger := logging.WithBaseName(logging.NewLogger("measured"), baseName)
	if reg != nil {
		logger = logging.WithRegistry(logger, reg.Name())
	}
	return &Base{
		registry: reg,
		baseName: baseName,
		logger:   logger,
	}
}

// BaseName implements Measured.
func (b *Base) BaseName() string { return b.baseName }

// Registry returns the backing registry, possibly nil.
func (b *Base) Registry() *registry.Registry { return b.registry }

// Enabled reports whether metrics are recorded into a live registry.
func (b *Base) Enabled() bool {
	return b.registry != nil && !b.registry.Closed()
}

// Name builds a metric name below the base name.
func (b *Base) Name(names ...string) string {
	return metric.Name(append([]string{b.baseName}, names...)...)
}

// Counter returns the counter at Name(names...).
func (b *Base) Counter(names ...string) *metric.Counter {
	return orDetached(b, names, metric.KindCounter, (*registry.Registry).Counter, metric.NewCounter)
}

// Gauge returns the gauge at Name(names...), backed by fn on creation.
func (b *Base) Gauge(fn metric.GaugeFunc, names ...string) *metric.Gauge {
	create := func(r *registry.Registry, name string) (*metric.Gauge, error) {
		return r.Gauge(name, fn)
	}
	return orDetached(b, names, metric.KindGauge, create, func() *metric.Gauge {
		return metric.NewGauge(fn)
	})
}

// Histogram returns the histogram at Name(names...).
func (b *Base) Histogram(names ...string) *metric.Histogram {
	return orDetached(b, names, metric.KindHistogram, (*registry.Registry).Histogram, func() *metric.Histogram {
		return metric.NewHistogram(b.clock())
	})
}

// Meter returns the meter at Name(names...).
func (b *Base) Meter(names ...string) *metric.Meter {
	return orDetached(b, names, metric.KindMeter, (*registry.Registry).Meter, func() *metric.Meter {
		return metric.NewMeter(b.clock())
	})
}

// Timer returns the timer at Name(names...).
func (b *Base) Timer(names ...string) *metric.Timer {
	return orDetached(b, names, metric.KindTimer, (*registry.Registry).Timer, func() *metric.Timer {
		return metric.NewTimer(b.clock())
	})
}

// Throughput returns the throughput metric at Name(names...).
func (b *Base) Throughput(names ...string) *metric.Throughput {
	return orDetached(b, names, metric.KindThroughput, (*registry.Registry).Throughput, func() *metric.Throughput {
		return metric.NewThroughput(b.clock())
	})
}

// Remove unregisters the metric at Name(names...).
func (b *Base) Remove(names ...string) bool {
	if b.registry == nil {
		return false
	}
	removed, err := b.registry.Remove(b.Name(names...))
	if err != nil {
		b.logger.Debug().Err(err).Msg("Remove skipped")
	}
	return removed
}

// RemoveAll unregisters every metric under the base name and returns the count.
func (b *Base) RemoveAll() int {
	if b.registry == nil {
		return 0
	}
	removed, err := b.registry.RemoveMatching(b.baseName)
	if err != nil {
		b.logger.Debug().Err(err).Msg("RemoveAll skipped")
	}
	return removed
}

func (b *Base) clock() metric.Clock {
	if b.registry == nil {
		return metric.SystemClock
	}
	return b.registry.Clock()
}

func orDetached[T metric.Metric](
	b *Base,
	names []string,
	kind metric.Kind,
	create func(*registry.Registry, string) (T, error),
	detached func() T,
) T {
	if b.registry == nil {
		return detached()
	}

	name := b.Name(names...)
	m, err := create(b.registry, name)
	if err != nil {
		b.logger.Warn().
			Err(err).
			Str("metric", name).
			Str("kind", string(kind)).
			Msg("Using detached metric")
		return detached()
	}
	return m
}
