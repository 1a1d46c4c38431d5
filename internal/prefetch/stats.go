package prefetch

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// durationWindow is how many recent job durations feed the rolling stats.
const durationWindow = 256

// StatsSnapshot is a point-in-time copy of the cumulative counters.
type StatsSnapshot struct {
	Processed   uint64    `json:"processed"`
	Failed      uint64    `json:"failed"`
	AvgSeconds  float64   `json:"avg_seconds"`
	P90Seconds  float64   `json:"p90_seconds"`
	LastSuccess time.Time `json:"last_success"`
}

// Stats aggregates job outcome counters. It is mutated only by the
// Dispatcher after each job attempt and read by the health reporter.
type Stats struct {
	mu          sync.Mutex
	processed   uint64
	failed      uint64
	durations   []float64 // seconds, most recent durationWindow successes
	lastSuccess time.Time
}

// NewStats creates a new stats aggregate
func NewStats() *Stats {
	return &Stats{}
}

// RecordSuccess counts a processed job and folds its duration into the
// rolling window.
func (s *Stats) RecordSuccess(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.processed++
	s.lastSuccess = time.Now()

	s.durations = append(s.durations, d.Seconds())
	if len(s.durations) > durationWindow {
		s.durations = s.durations[len(s.durations)-durationWindow:]
	}
}

// RecordFailure counts a failed job attempt.
func (s *Stats) RecordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failed++
}

// Snapshot returns a copy of the current counters with rolling duration
// statistics over the recent window.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		Processed:   s.processed,
		Failed:      s.failed,
		LastSuccess: s.lastSuccess,
	}

	if len(s.durations) > 0 {
		snap.AvgSeconds = stat.Mean(s.durations, nil)

		sorted := make([]float64, len(s.durations))
		copy(sorted, s.durations)
		sort.Float64s(sorted)
		snap.P90Seconds = stat.Quantile(0.9, stat.Empirical, sorted, nil)
	}

	return snap
}
