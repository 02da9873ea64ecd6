// Package snapshot renders the live state of a registry into plain documents.
//
// Each metric is read independently; a snapshot is not atomic across
// metrics. A gauge whose supplier fails, panics or exceeds the gauge timeout
// is left out of the result without affecting the other metrics.
package snapshot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/measured-metrics/pkg/logging"
	"github.com/Sternrassler/measured-metrics/pkg/measured"
	"github.com/Sternrassler/measured-metrics/pkg/metric"
	"github.com/Sternrassler/measured-metrics/pkg/registry"
)

// DefaultGaugeTimeout bounds the evaluation of a single gauge.
const DefaultGaugeTimeout = time.Second

// ErrGaugeTimeout is returned by Render when a gauge does not answer in time.
var ErrGaugeTimeout = metric.ErrGaugeTimeout

// Snapshot maps metric names (or name suffixes) to rendered documents.
type Snapshot map[string]metric.Document

// Service renders snapshots of one registry.
type Service struct {
	registry     *registry.Registry
	logger       zerolog.Logger
	gaugeTimeout time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used to report omitted metrics.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithGaugeTimeout bounds each gauge evaluation. Non-positive values are ignored.
func WithGaugeTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.gaugeTimeout = d
		}
	}
}

// New binds a service to reg. A nil registry behaves as metrics disabled:
// no names and nil snapshots.
func New(reg *registry.Registry, opts ...Option) *Service {
	s := &Service{
		registry:     reg,
		logger:       logging.NewLogger("snapshot"),
		gaugeTimeout: DefaultGaugeTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the bound registry, possibly nil.
func (s *Service) Registry() *registry.Registry { return s.registry }

// BaseName returns the base name of m.
func (s *Service) BaseName(m measured.Measured) string {
	return measured.BaseName(m)
}

// MetricsNames returns the sorted names known to the registry.
func (s *Service) MetricsNames() ([]string, error) {
	if s.registry == nil {
		return []string{}, nil
	}
	return s.registry.Names()
}

// Measured renders every metric under m's base name, keyed by the name with
// the base name and its trailing "." removed. A metric named exactly like the
// base name keeps its full name as key. The result is nil when no metric is
// registered under the base name.
func (s *Service) Measured(m measured.Measured) (Snapshot, error) {
	baseName := measured.BaseName(m)
	if baseName == "" {
		return nil, nil
	}

	return s.collect("measured", baseName, func(name string) string {
		if name == baseName {
			return name
		}
		return strings.TrimPrefix(name, baseName+".")
	})
}

// Prefix renders every metric in namespace prefix, keyed by full name. The
// result is nil when nothing matches. An empty prefix selects every metric.
func (s *Service) Prefix(prefix string) (Snapshot, error) {
	return s.collect("prefix", prefix, func(name string) string { return name })
}

// All renders the whole registry keyed by full name, or nil when it is empty.
func (s *Service) All() (Snapshot, error) {
	return s.collect("all", "", func(name string) string { return name })
}

func (s *Service) collect(scope, ns string, key func(string) string) (Snapshot, error) {
	if s.registry == nil {
		return nil, nil
	}

	start := time.Now()
	defer func() {
		snapshotsRendered.WithLabelValues(scope).Inc()
		snapshotDuration.WithLabelValues(scope).Observe(time.Since(start).Seconds())
	}()

	selected, err := s.registry.Select(ns)
	if err != nil {
		return nil, fmt.Errorf("select %q: %w", ns, err)
	}
	if len(selected) == 0 {
		return nil, nil
	}

	result := make(Snapshot, len(selected))
	for name, m := range selected {
		doc, err := s.Render(m)
		if err != nil {
			reason := "error"
			if errors.Is(err, ErrGaugeTimeout) {
				reason = "timeout"
			}
			metricsOmitted.WithLabelValues(reason).Inc()
			s.logger.Warn().
				Err(err).
				Str("metric", name).
				Str("kind", string(m.Kind())).
				Msg("Metric omitted from snapshot")
			continue
		}
		result[key(name)] = doc
	}
	return result, nil
}

// Render produces the document for a single metric. Gauges are evaluated
// with the service's gauge timeout, and a gauge still stuck in an earlier
// evaluation fails fast with ErrGaugeTimeout.
func (s *Service) Render(m metric.Metric) (metric.Document, error) {
	if g, ok := m.(*metric.Gauge); ok {
		return g.SnapshotWithin(s.gaugeTimeout)
	}
	return m.Snapshot()
}
