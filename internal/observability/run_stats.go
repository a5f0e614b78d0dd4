// Package observability tracks per-run timing statistics for the audit
// pipeline: how long each check took and how long each dataset took to load.
package observability

import (
	"sort"
	"sync"
	"time"
)

// RunStats tracks check and dataset timings for one audit run.
type RunStats struct {
	mu       sync.RWMutex
	checks   map[string]*CheckStats
	datasets []DatasetStats
}

// CheckStats holds timing for a single named check.
type CheckStats struct {
	Check    string
	Count    int64
	Duration time.Duration
}

// DatasetStats holds load timing for one dataset.
type DatasetStats struct {
	Dataset  string
	Rows     int64
	Duration time.Duration
}

// NewRunStats creates a new run statistics tracker.
func NewRunStats() *RunStats {
	return &RunStats{
		checks: make(map[string]*CheckStats),
	}
}

// RecordCheck records one execution of a named check.
// This method is O(1) and thread-safe.
func (r *RunStats) RecordCheck(check string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats, exists := r.checks[check]
	if !exists {
		stats = &CheckStats{Check: check}
		r.checks[check] = stats
	}

	stats.Count++
	stats.Duration += d
}

// RecordLoad records the load of one dataset.
func (r *RunStats) RecordLoad(dataset string, rows int64, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.datasets = append(r.datasets, DatasetStats{
		Dataset:  dataset,
		Rows:     rows,
		Duration: d,
	})
}

// TopSlowChecks returns the top N checks by cumulative duration.
// Returns copies sorted by duration (descending).
func (r *RunStats) TopSlowChecks(n int) []CheckStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 || len(r.checks) == 0 {
		return []CheckStats{}
	}

	stats := make([]CheckStats, 0, len(r.checks))
	for _, s := range r.checks {
		stats = append(stats, *s)
	}

	// Sort by duration descending; name breaks ties so output is stable
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Duration != stats[j].Duration {
			return stats[i].Duration > stats[j].Duration
		}
		return stats[i].Check < stats[j].Check
	})

	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}

// Datasets returns the recorded dataset loads in record order.
func (r *RunStats) Datasets() []DatasetStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]DatasetStats, len(r.datasets))
	copy(out, r.datasets)
	return out
}

// TotalCheckTime returns the cumulative duration across all checks.
func (r *RunStats) TotalCheckTime() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total time.Duration
	for _, s := range r.checks {
		total += s.Duration
	}
	return total
}
