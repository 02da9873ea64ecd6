package metric

import "time"

// Timer measures the rate and duration distribution of an operation.
type Timer struct {
	clock     Clock
	meter     *Meter
	durations *Histogram
}

// NewTimer creates a timer. A nil clock means SystemClock.
func NewTimer(clock Clock) *Timer {
	clock = clockOrDefault(clock)
	return &Timer{
		clock:     clock,
		meter:     NewMeter(clock),
		durations: NewHistogram(clock),
	}
}

// Update records one event of duration d. Negative durations are ignored.
func (t *Timer) Update(d time.Duration) {
	if d < 0 {
		return
	}
	t.durations.Update(int64(d))
	t.meter.Mark(1)
}

// UpdateSince records the time elapsed since start.
func (t *Timer) UpdateSince(start time.Time) {
	t.Update(t.clock.Now().Sub(start))
}

// Time runs fn and records its duration.
func (t *Timer) Time(fn func()) {
	start := t.clock.Now()
	defer t.UpdateSince(start)
	fn()
}

// Count returns the number of recorded events.
func (t *Timer) Count() int64 { return t.meter.Count() }

// Meter exposes the rate side of the timer.
func (t *Timer) Meter() *Meter { return t.meter }

// Distribution returns the duration distribution in nanoseconds.
func (t *Timer) Distribution() *Distribution { return t.durations.Distribution() }

// Kind implements Metric.
func (t *Timer) Kind() Kind { return KindTimer }

// Snapshot implements Metric. Durations are rendered in milliseconds.
func (t *Timer) Snapshot() (Document, error) {
	doc := Document{}
	populateMetered(doc, t.meter)
	populateDistribution(doc, t.Distribution(), float64(time.Millisecond))
	doc["durationRate"] = "milliseconds"
	return doc, nil
}
