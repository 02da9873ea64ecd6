package metrics

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/measured-metrics/pkg/logging"
	"github.com/Sternrassler/measured-metrics/pkg/metric"
	"github.com/Sternrassler/measured-metrics/pkg/options"
	"github.com/Sternrassler/measured-metrics/pkg/snapshot"
)

var quantiles = []float64{0.5, 0.75, 0.95, 0.98, 0.99, 0.999}

// Collector is an unchecked prometheus.Collector over the registry bound to
// a snapshot service. Metric names are sanitized to the Prometheus charset;
// when two exported names collide, the metric first in sorted order wins.
type Collector struct {
	svc       *snapshot.Service
	namespace string
	logger    zerolog.Logger
}

// NewCollector creates a collector exporting under namespace.
func NewCollector(svc *snapshot.Service, namespace string) *Collector {
	if svc == nil {
		panic("snapshot service cannot be nil")
	}
	return &Collector{
		svc:       svc,
		namespace: SanitizeName(namespace),
		logger:    logging.NewLogger("prometheus-bridge"),
	}
}

// ErrAlreadyExposed is returned when a registerer already exports another
// snapshot service under the same namespace.
var ErrAlreadyExposed = errors.New("namespace already exposed")

type exposure struct {
	registerer prometheus.Registerer
	namespace  string
}

// Collectors are unchecked, so the registerer cannot detect a second
// registration; exposed tracks them instead.
var (
	exposedMu sync.Mutex
	exposed   = make(map[exposure]*Collector)
)

// Expose registers a collector for svc when opts.JMXEnabled is set, using
// the JMX domain as namespace. It returns nil without error when disabled.
// Exposing the same service twice on one registerer returns the collector
// registered first.
func Expose(opts options.Options, svc *snapshot.Service, registerer prometheus.Registerer) (*Collector, error) {
	if !opts.JMXEnabled {
		return nil, nil
	}
	if registerer == nil {
		registerer = Registry
	}

	c := NewCollector(svc, opts.EffectiveJMXDomain())
	key := exposure{registerer: registerer, namespace: c.namespace}

	exposedMu.Lock()
	defer exposedMu.Unlock()

	if existing, ok := exposed[key]; ok {
		if existing.svc != svc {
			return nil, fmt.Errorf("%w: %q", ErrAlreadyExposed, c.namespace)
		}
		return existing, nil
	}
	if err := registerer.Register(c); err != nil {
		return nil, fmt.Errorf("register collector: %w", err)
	}
	exposed[key] = c
	return c, nil
}

// Describe sends nothing, which makes the collector unchecked: the exported
// set changes as metrics are created and removed.
func (c *Collector) Describe(chan<- *prometheus.Desc) {}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	reg := c.svc.Registry()
	if reg == nil {
		return
	}

	selected, err := reg.Select("")
	if err != nil {
		c.logger.Debug().Err(err).Msg("Collect skipped")
		return
	}

	names := make([]string, 0, len(selected))
	for name := range selected {
		names = append(names, name)
	}
	sort.Strings(names)

	e := &emitter{ch: ch, logger: c.logger, seen: make(map[string]string, len(names))}
	for _, name := range names {
		e.source = name
		c.collectMetric(e, name, prometheus.BuildFQName(c.namespace, "", SanitizeName(name)), selected[name])
	}
}

func (c *Collector) collectMetric(e *emitter, name, fq string, m metric.Metric) {
	help := fmt.Sprintf("Measured %s %s", m.Kind(), name)

	switch v := m.(type) {
	case *metric.Counter:
		e.value(fq, help, prometheus.GaugeValue, float64(v.Count()))

	case *metric.Throughput:
		e.value(fq, help, prometheus.GaugeValue, float64(v.Value()))

	case *metric.Gauge:
		doc, err := c.svc.Render(v)
		if err != nil {
			c.logger.Warn().Err(err).Str("metric", name).Msg("Gauge omitted from scrape")
			return
		}
		if f, ok := toFloat(doc["value"]); ok {
			e.value(fq, help, prometheus.GaugeValue, f)
		}

	case *metric.Meter:
		e.value(fq+"_total", help, prometheus.CounterValue, float64(v.Count()))
		e.value(fq+"_rate_mean", help+" mean rate", prometheus.GaugeValue, v.MeanRate())
		e.value(fq+"_rate_1m", help+" one-minute rate", prometheus.GaugeValue, v.Rate1())
		e.value(fq+"_rate_5m", help+" five-minute rate", prometheus.GaugeValue, v.Rate5())
		e.value(fq+"_rate_15m", help+" fifteen-minute rate", prometheus.GaugeValue, v.Rate15())

	case *metric.Histogram:
		e.summary(fq, help, v.Count(), v.Distribution(), 1)

	case *metric.Timer:
		e.summary(fq+"_seconds", help, v.Count(), v.Distribution(), float64(time.Second))
		e.value(fq+"_rate_1m", help+" one-minute rate", prometheus.GaugeValue, v.Meter().Rate1())
	}
}

// emitter writes const metrics for one scrape and drops names already sent.
type emitter struct {
	ch     chan<- prometheus.Metric
	logger zerolog.Logger
	seen   map[string]string // exported name -> source metric
	source string
}

func (e *emitter) claim(fq string) bool {
	if other, dup := e.seen[fq]; dup {
		e.logger.Debug().Str("metric", e.source).Str("collides_with", other).Str("exported", fq).Msg("Duplicate exported name skipped")
		return false
	}
	e.seen[fq] = e.source
	return true
}

func (e *emitter) value(fq, help string, vt prometheus.ValueType, v float64) {
	if !e.claim(fq) {
		return
	}
	m, err := prometheus.NewConstMetric(prometheus.NewDesc(fq, help, nil, nil), vt, v)
	e.send(m, err)
}

// summary converts a distribution divided by unit into a constant summary.
func (e *emitter) summary(fq, help string, count int64, d *metric.Distribution, unit float64) {
	if !e.claim(fq) {
		return
	}
	q := make(map[float64]float64, len(quantiles))
	for _, quantile := range quantiles {
		q[quantile] = d.Quantile(quantile) / unit
	}
	sum := d.Mean() * float64(count) / unit
	m, err := prometheus.NewConstSummary(prometheus.NewDesc(fq, help, nil, nil), uint64(count), sum, q)
	e.send(m, err)
}

func (e *emitter) send(m prometheus.Metric, err error) {
	if err != nil {
		e.logger.Debug().Err(err).Str("metric", e.source).Msg("Invalid exported metric")
		return
	}
	e.ch <- m
}

// SanitizeName maps a dotted metric name to the Prometheus name charset.
func SanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	lastUnderscore := false
	for _, r := range name {
		valid := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !valid {
			r = '_'
		}
		if r == '_' {
			if lastUnderscore {
				continue
			}
			lastUnderscore = true
		} else {
			lastUnderscore = false
		}
		b.WriteRune(r)
	}
	out := strings.Trim(b.String(), "_")
	if out != "" && out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
