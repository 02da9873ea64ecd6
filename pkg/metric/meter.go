package metric

import (
	"sync/atomic"
	"time"
)

// Meter counts events and tracks their mean rate and 1, 5 and 15 minute
// exponentially weighted rates. Rates are advanced lazily on Mark and on
// reads, so a meter owns no goroutine.
type Meter struct {
	clock    Clock
	start    time.Time
	count    atomic.Int64
	lastTick atomic.Int64 // unix nanos of the last processed tick boundary

	m1, m5, m15 *ewma
}

// NewMeter creates a meter. A nil clock means SystemClock.
func NewMeter(clock Clock) *Meter {
	clock = clockOrDefault(clock)
	now := clock.Now()

	m := &Meter{
		clock: clock,
		start: now,
		m1:    newEWMA(1),
		m5:    newEWMA(5),
		m15:   newEWMA(15),
	}
	m.lastTick.Store(now.UnixNano())
	return m
}

// Mark records n events.
func (m *Meter) Mark(n int64) {
	m.tickIfNecessary()
	m.count.Add(n)
	m.m1.update(n)
	m.m5.update(n)
	m.m15.update(n)
}

// Count returns the number of recorded events.
func (m *Meter) Count() int64 { return m.count.Load() }

// MeanRate returns events per second since the meter was created.
func (m *Meter) MeanRate() float64 {
	count := m.Count()
	if count == 0 {
		return 0
	}
	elapsed := m.clock.Now().Sub(m.start).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(count) / elapsed
}

// Rate1 returns the one-minute rate in events per second.
func (m *Meter) Rate1() float64 {
	m.tickIfNecessary()
	return m.m1.ratePerSecond()
}

// Rate5 returns the five-minute rate in events per second.
func (m *Meter) Rate5() float64 {
	m.tickIfNecessary()
	return m.m5.ratePerSecond()
}

// Rate15 returns the fifteen-minute rate in events per second.
func (m *Meter) Rate15() float64 {
	m.tickIfNecessary()
	return m.m15.ratePerSecond()
}

func (m *Meter) tickIfNecessary() {
	old := m.lastTick.Load()
	now := m.clock.Now().UnixNano()
	age := now - old
	if age <= int64(tickInterval) {
		return
	}

	boundary := now - age%int64(tickInterval)
	if !m.lastTick.CompareAndSwap(old, boundary) {
		// another caller is ticking
		return
	}

	ticks := age / int64(tickInterval)
	for i := int64(0); i < ticks; i++ {
		m.m1.tick()
		m.m5.tick()
		m.m15.tick()
	}
}

// Kind implements Metric.
func (m *Meter) Kind() Kind { return KindMeter }

// Snapshot implements Metric.
func (m *Meter) Snapshot() (Document, error) {
	doc := Document{}
	populateMetered(doc, m)
	return doc, nil
}

func populateMetered(doc Document, m *Meter) {
	doc["count"] = m.Count()
	doc["meanRate"] = m.MeanRate()
	doc["oneMinuteRate"] = m.Rate1()
	doc["fiveMinuteRate"] = m.Rate5()
	doc["fifteenMinuteRate"] = m.Rate15()
	doc["rate"] = "events/second"
}
