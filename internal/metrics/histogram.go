package metrics

import (
	"math"
	"sort"
	"sync"
)

// maxRetainedSamples caps histogram memory for long-running processes. Beyond
// the cap, new samples overwrite the oldest retained slot; the total count
// keeps growing.
const maxRetainedSamples = 100_000

// Histogram accumulates duration samples and computes nearest-rank
// percentiles over the retained sample set.
type Histogram struct {
	mu      sync.Mutex
	samples []float64
	next    int
	count   uint64
}

// HistogramStats is a point-in-time view of a histogram.
type HistogramStats struct {
	Count uint64  `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	P999  float64 `json:"p999"`
}

// NewHistogram creates an empty histogram.
func NewHistogram() *Histogram {
	return &Histogram{}
}

// Record appends a sample.
func (h *Histogram) Record(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	if len(h.samples) < maxRetainedSamples {
		h.samples = append(h.samples, value)
		return
	}
	h.samples[h.next] = value
	h.next = (h.next + 1) % maxRetainedSamples
}

// Count returns the total number of recorded samples, including any that have
// aged out of the retained window.
func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Reset discards all samples.
func (h *Histogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples = nil
	h.next = 0
	h.count = 0
}

// Stats computes min/max/avg and percentiles over the retained samples.
// Deterministic for a fixed sample set; all fields are zero when empty.
func (h *Histogram) Stats() HistogramStats {
	h.mu.Lock()
	sorted := make([]float64, len(h.samples))
	copy(sorted, h.samples)
	count := h.count
	h.mu.Unlock()

	if len(sorted) == 0 {
		return HistogramStats{}
	}
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}

	return HistogramStats{
		Count: count,
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Avg:   sum / float64(len(sorted)),
		P50:   percentile(sorted, 0.50),
		P95:   percentile(sorted, 0.95),
		P99:   percentile(sorted, 0.99),
		P999:  percentile(sorted, 0.999),
	}
}

// percentile applies the nearest-rank method to an ascending sample slice.
func percentile(sorted []float64, q float64) float64 {
	rank := int(math.Ceil(q * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}
