package metric

import "sync/atomic"

// Histogram tracks the distribution of int64 samples.
type Histogram struct {
	count     atomic.Int64
	reservoir *Reservoir
}

// NewHistogram creates a histogram over an exponentially decaying reservoir.
func NewHistogram(clock Clock) *Histogram {
	return &Histogram{reservoir: NewReservoir(clock)}
}

// Update records a sample.
func (h *Histogram) Update(v int64) {
	h.count.Add(1)
	h.reservoir.Update(v)
}

// Count returns the total number of samples ever recorded.
func (h *Histogram) Count() int64 { return h.count.Load() }

// Distribution returns the current sample distribution.
func (h *Histogram) Distribution() *Distribution { return h.reservoir.Distribution() }

// Kind implements Metric.
func (h *Histogram) Kind() Kind { return KindHistogram }

// Snapshot implements Metric.
func (h *Histogram) Snapshot() (Document, error) {
	doc := Document{"count": h.Count()}
	populateDistribution(doc, h.Distribution(), 1)
	return doc, nil
}
