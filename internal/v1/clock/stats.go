package clock

import (
	"sort"
	"sync"
	"time"
)

// TickStats summarizes per-wake processing durations over the rolling window.
type TickStats struct {
	Count uint64
	Min   time.Duration
	Avg   time.Duration
	Max   time.Duration
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
}

// rollingStats keeps the last N durations in a ring buffer. Percentiles are
// computed on demand from a sorted copy.
type rollingStats struct {
	mu     sync.Mutex
	window []time.Duration
	next   int
	filled bool
	count  uint64
}

func newRollingStats(size int) *rollingStats {
	return &rollingStats{window: make([]time.Duration, size)}
}

func (r *rollingStats) record(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.window[r.next] = d
	r.next++
	if r.next == len(r.window) {
		r.next = 0
		r.filled = true
	}
	r.count++
}

func (r *rollingStats) snapshot() TickStats {
	r.mu.Lock()
	n := r.next
	if r.filled {
		n = len(r.window)
	}
	samples := make([]time.Duration, n)
	copy(samples, r.window[:n])
	count := r.count
	r.mu.Unlock()

	stats := TickStats{Count: count}
	if n == 0 {
		return stats
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	var sum time.Duration
	for _, d := range samples {
		sum += d
	}
	stats.Min = samples[0]
	stats.Max = samples[n-1]
	stats.Avg = sum / time.Duration(n)
	stats.P50 = samples[percentileIndex(n, 50)]
	stats.P95 = samples[percentileIndex(n, 95)]
	stats.P99 = samples[percentileIndex(n, 99)]
	return stats
}

func percentileIndex(n, p int) int {
	idx := n*p/100 - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return idx
}
