package metric

import "sync/atomic"

// Counter is a thread-safe signed counter.
type Counter struct {
	count atomic.Int64
}

// NewCounter returns a zeroed counter.
func NewCounter() *Counter {
	return &Counter{}
}

// Inc adds one.
func (c *Counter) Inc() { c.count.Add(1) }

// Dec subtracts one.
func (c *Counter) Dec() { c.count.Add(-1) }

// Add adds n, which may be negative.
func (c *Counter) Add(n int64) { c.count.Add(n) }

// Count returns the current value.
func (c *Counter) Count() int64 { return c.count.Load() }

// Kind implements Metric.
func (c *Counter) Kind() Kind { return KindCounter }

// Snapshot implements Metric.
func (c *Counter) Snapshot() (Document, error) {
	return Document{"count": c.Count()}, nil
}
