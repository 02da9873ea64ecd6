package metric

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"
)

var (
	// ErrGaugeEvaluation is returned when a gauge supplier fails, panics or
	// yields a value no document can carry (NaN, ±Inf).
	ErrGaugeEvaluation = errors.New("gauge evaluation failed")

	// ErrGaugeTimeout is returned by SnapshotWithin when the supplier does not
	// answer in time, or while an earlier evaluation is still running.
	ErrGaugeTimeout = errors.New("gauge evaluation timed out")
)

// GaugeFunc supplies the current value of a gauge.
type GaugeFunc func() (any, error)

// FuncOf adapts an infallible supplier to a GaugeFunc.
func FuncOf[T any](fn func() T) GaugeFunc {
	return func() (any, error) {
		return fn(), nil
	}
}

// Gauge reports a value computed on demand by its supplier.
type Gauge struct {
	fn GaugeFunc

	// pending is set while a SnapshotWithin evaluation runs.
	pending atomic.Bool
}

// NewGauge creates a gauge backed by fn.
func NewGauge(fn GaugeFunc) *Gauge {
	if fn == nil {
		panic("gauge supplier cannot be nil")
	}
	return &Gauge{fn: fn}
}

// Value evaluates the supplier. A panic inside the supplier is recovered
// and reported as ErrGaugeEvaluation.
func (g *Gauge) Value() (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v = nil
			err = fmt.Errorf("%w: panic: %v", ErrGaugeEvaluation, r)
		}
	}()

	v, err = g.fn()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGaugeEvaluation, err)
	}
	if !finite(v) {
		return nil, fmt.Errorf("%w: non-finite value %v", ErrGaugeEvaluation, v)
	}
	return v, nil
}

func finite(v any) bool {
	switch f := v.(type) {
	case float64:
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	case float32:
		return !math.IsNaN(float64(f)) && !math.IsInf(float64(f), 0)
	default:
		return true
	}
}

// Kind implements Metric.
func (g *Gauge) Kind() Kind { return KindGauge }

// Snapshot implements Metric.
func (g *Gauge) Snapshot() (Document, error) {
	v, err := g.Value()
	if err != nil {
		return nil, err
	}
	return Document{"value": v}, nil
}

// SnapshotWithin is Snapshot bounded by d. At most one evaluation runs at a
// time: while a supplier that already timed out is still running, further
// calls fail immediately with ErrGaugeTimeout instead of starting another.
func (g *Gauge) SnapshotWithin(d time.Duration) (Document, error) {
	if !g.pending.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%w: previous evaluation still running", ErrGaugeTimeout)
	}

	type result struct {
		doc Document
		err error
	}
	// Buffered so a late supplier never blocks after the deadline passed.
	done := make(chan result, 1)
	go func() {
		defer g.pending.Store(false)
		doc, err := g.Snapshot()
		done <- result{doc: doc, err: err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.doc, r.err
	case <-timer.C:
		return nil, fmt.Errorf("%w after %s", ErrGaugeTimeout, d)
	}
}
