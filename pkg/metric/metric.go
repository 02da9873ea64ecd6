// Package metric defines the metric kinds that a registry holds and the
// plain documents they render to.
//
// Every kind implements the Metric interface. Update operations (Inc, Mark,
// Update, ...) are safe for any number of concurrent callers and never block
// a concurrent Snapshot for longer than a short critical section.
package metric

import (
	"strings"
)

// Kind identifies the variant of a Metric.
type Kind string

const (
	// KindCounter is a signed 64-bit count that can be incremented and decremented.
	KindCounter Kind = "counter"

	// KindGauge reads its value from a caller-provided supplier at snapshot time.
	KindGauge Kind = "gauge"

	// KindHistogram tracks the distribution of int64 samples.
	KindHistogram Kind = "histogram"

	// KindMeter tracks event counts and exponentially weighted rates.
	KindMeter Kind = "meter"

	// KindTimer combines a meter and a histogram of durations.
	KindTimer Kind = "timer"

	// KindThroughput counts events observed during the last whole second.
	KindThroughput Kind = "throughput"
)

// Document is the rendered, point-in-time state of a single metric.
// Values are plain numbers or strings so that any transport can serialize it.
type Document map[string]any

// Metric is the capability shared by every metric kind.
type Metric interface {
	// Kind returns the variant of the metric.
	Kind() Kind

	// Snapshot renders the current state. Only gauges return an error.
	Snapshot() (Document, error)
}

// Name joins the non-empty parts with "." to build a hierarchical metric name.
//
//	Name("app", "http.servers", "0.0.0.0:8080", "requests")
//	// app.http.servers.0.0.0.0:8080.requests
func Name(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(p)
	}
	return b.String()
}

// InNamespace reports whether name equals ns or lies below it (ns + ".").
// The empty namespace contains every name.
func InNamespace(name, ns string) bool {
	if ns == "" {
		return true
	}
	if name == ns {
		return true
	}
	return len(name) > len(ns) && name[len(ns)] == '.' && strings.HasPrefix(name, ns)
}
