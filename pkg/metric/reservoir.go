package metric

import (
	"container/heap"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"
)

const (
	// DefaultReservoirSize is the number of samples kept by a reservoir.
	DefaultReservoirSize = 1028

	// DefaultReservoirAlpha biases the reservoir towards roughly the last five minutes.
	DefaultReservoirAlpha = 0.015

	rescaleThreshold = time.Hour
)

// Reservoir is an exponentially decaying random sample of int64 values.
// Recent samples are weighted more heavily so that the distribution follows
// the recent behaviour of the measured component.
type Reservoir struct {
	clock Clock
	size  int
	alpha float64

	mu          sync.Mutex
	start       time.Time
	nextRescale time.Time
	samples     sampleHeap
}

type sample struct {
	value    int64
	weight   float64
	priority float64
}

// sampleHeap is a min-heap on priority.
type sampleHeap []sample

func (h sampleHeap) Len() int           { return len(h) }
func (h sampleHeap) Less(i, j int) bool { return h[i].priority < h[j].priority }
func (h sampleHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *sampleHeap) Push(x any)        { *h = append(*h, x.(sample)) }
func (h *sampleHeap) Pop() any {
	old := *h
	n := len(old)
	s := old[n-1]
	*h = old[:n-1]
	return s
}

// NewReservoir creates a reservoir with the default size and alpha.
func NewReservoir(clock Clock) *Reservoir {
	return NewReservoirSize(clock, DefaultReservoirSize, DefaultReservoirAlpha)
}

// NewReservoirSize creates a reservoir holding at most size samples.
func NewReservoirSize(clock Clock, size int, alpha float64) *Reservoir {
	if size <= 0 {
		size = DefaultReservoirSize
	}
	if alpha <= 0 {
		alpha = DefaultReservoirAlpha
	}
	clock = clockOrDefault(clock)
	now := clock.Now()
	return &Reservoir{
		clock:       clock,
		size:        size,
		alpha:       alpha,
		start:       now,
		nextRescale: now.Add(rescaleThreshold),
		samples:     make(sampleHeap, 0, size),
	}
}

// Update adds a value to the sample.
func (r *Reservoir) Update(v int64) {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if now.After(r.nextRescale) {
		r.rescale(now)
	}

	weight := math.Exp(r.alpha * now.Sub(r.start).Seconds())
	s := sample{
		value:    v,
		weight:   weight,
		priority: weight / (1 - rand.Float64()),
	}

	if len(r.samples) < r.size {
		heap.Push(&r.samples, s)
		return
	}
	if s.priority > r.samples[0].priority {
		r.samples[0] = s
		heap.Fix(&r.samples, 0)
	}
}

// rescale renormalizes weights against a new landmark; ordering is preserved
// because every priority is scaled by the same factor.
func (r *Reservoir) rescale(now time.Time) {
	factor := math.Exp(-r.alpha * now.Sub(r.start).Seconds())
	for i := range r.samples {
		r.samples[i].weight *= factor
		r.samples[i].priority *= factor
	}
	r.start = now
	r.nextRescale = now.Add(rescaleThreshold)
}

// Size returns the number of samples currently held.
func (r *Reservoir) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

// Distribution copies the current sample into an immutable Distribution.
func (r *Reservoir) Distribution() *Distribution {
	r.mu.Lock()
	copied := make([]sample, len(r.samples))
	copy(copied, r.samples)
	r.mu.Unlock()

	return newDistribution(copied)
}

// Distribution is a weighted, sorted view of a reservoir sample.
type Distribution struct {
	values    []int64
	weights   []float64 // normalized, sums to 1
	quantiles []float64 // cumulative weight before each value
}

func newDistribution(samples []sample) *Distribution {
	sort.Slice(samples, func(i, j int) bool { return samples[i].value < samples[j].value })

	d := &Distribution{
		values:    make([]int64, len(samples)),
		weights:   make([]float64, len(samples)),
		quantiles: make([]float64, len(samples)),
	}

	var total float64
	for _, s := range samples {
		total += s.weight
	}

	for i, s := range samples {
		d.values[i] = s.value
		if total > 0 {
			d.weights[i] = s.weight / total
		}
		if i > 0 {
			d.quantiles[i] = d.quantiles[i-1] + d.weights[i-1]
		}
	}
	return d
}

// Len returns the number of values in the distribution.
func (d *Distribution) Len() int { return len(d.values) }

// Min returns the smallest sampled value, or 0 when empty.
func (d *Distribution) Min() int64 {
	if len(d.values) == 0 {
		return 0
	}
	return d.values[0]
}

// Max returns the largest sampled value, or 0 when empty.
func (d *Distribution) Max() int64 {
	if len(d.values) == 0 {
		return 0
	}
	return d.values[len(d.values)-1]
}

// Mean returns the weighted mean.
func (d *Distribution) Mean() float64 {
	var sum float64
	for i, v := range d.values {
		sum += float64(v) * d.weights[i]
	}
	return sum
}

// StdDev returns the weighted standard deviation.
func (d *Distribution) StdDev() float64 {
	if len(d.values) <= 1 {
		return 0
	}
	mean := d.Mean()
	var variance float64
	for i, v := range d.values {
		diff := float64(v) - mean
		variance += d.weights[i] * diff * diff
	}
	return math.Sqrt(variance)
}

// Quantile returns the value at quantile q in [0, 1].
func (d *Distribution) Quantile(q float64) float64 {
	n := len(d.values)
	if n == 0 {
		return 0
	}
	if q <= 0 {
		return float64(d.values[0])
	}
	if q >= 1 {
		return float64(d.values[n-1])
	}
	i := sort.Search(n, func(i int) bool { return d.quantiles[i] > q }) - 1
	if i < 0 {
		i = 0
	}
	return float64(d.values[i])
}

// populateDistribution writes the distribution fields divided by unit.
func populateDistribution(doc Document, d *Distribution, unit float64) {
	doc["min"] = float64(d.Min()) / unit
	doc["max"] = float64(d.Max()) / unit
	doc["mean"] = d.Mean() / unit
	doc["stddev"] = d.StdDev() / unit
	doc["median"] = d.Quantile(0.5) / unit
	doc["75%"] = d.Quantile(0.75) / unit
	doc["95%"] = d.Quantile(0.95) / unit
	doc["98%"] = d.Quantile(0.98) / unit
	doc["99%"] = d.Quantile(0.99) / unit
	doc["99.9%"] = d.Quantile(0.999) / unit
}
