package metric

import "sync"

// Throughput reports how many events were marked during the last whole
// second. Used for instantaneous request rates where a moving average is
// too smooth.
type Throughput struct {
	clock Clock

	mu       sync.Mutex
	second   int64
	current  int64
	previous int64
}

// NewThroughput creates a throughput metric. A nil clock means SystemClock.
func NewThroughput(clock Clock) *Throughput {
	clock = clockOrDefault(clock)
	return &Throughput{
		clock:  clock,
		second: clock.Now().Unix(),
	}
}

// Mark records one event.
func (t *Throughput) Mark() {
	now := t.clock.Now().Unix()

	t.mu.Lock()
	t.roll(now)
	t.current++
	t.mu.Unlock()
}

// Value returns the number of events in the previous whole second.
func (t *Throughput) Value() int64 {
	now := t.clock.Now().Unix()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.roll(now)
	return t.previous
}

func (t *Throughput) roll(now int64) {
	switch {
	case now == t.second:
		return
	case now == t.second+1:
		t.previous = t.current
	default:
		t.previous = 0
	}
	t.current = 0
	t.second = now
}

// Kind implements Metric.
func (t *Throughput) Kind() Kind { return KindThroughput }

// Snapshot implements Metric.
func (t *Throughput) Snapshot() (Document, error) {
	return Document{"value": t.Value()}, nil
}
