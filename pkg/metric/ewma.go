package metric

import (
	"math"
	"sync/atomic"
	"time"
)

// tickInterval is the period at which meter rates are folded into their
// moving averages.
const tickInterval = 5 * time.Second

// ewma is an exponentially weighted moving average of an event rate.
// update may be called concurrently; tick must be called by one goroutine
// at a time (Meter guarantees this through its tick CAS).
type ewma struct {
	alpha       float64
	uncounted   atomic.Int64
	rate        atomic.Uint64 // float64 bits, events per second
	initialized atomic.Bool
}

func newEWMA(minutes float64) *ewma {
	return &ewma{
		alpha: 1 - math.Exp(-tickInterval.Seconds()/60/minutes),
	}
}

func (e *ewma) update(n int64) {
	e.uncounted.Add(n)
}

func (e *ewma) tick() {
	count := e.uncounted.Swap(0)
	instant := float64(count) / tickInterval.Seconds()

	if !e.initialized.Load() {
		e.rate.Store(math.Float64bits(instant))
		e.initialized.Store(true)
		return
	}

	old := math.Float64frombits(e.rate.Load())
	e.rate.Store(math.Float64bits(old + e.alpha*(instant-old)))
}

func (e *ewma) ratePerSecond() float64 {
	return math.Float64frombits(e.rate.Load())
}
