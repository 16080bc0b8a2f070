// Package metrics tracks per-stage latency of the query planner.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// Planner stages recorded by the search service.
const (
	StageReasoning = "reasoning"
	StageStore     = "store_query"
	StageVector    = "vector_search"
	StageHydrate   = "hydrate"
	StageTotal     = "total"
)

// =============================================================================
// Latency Tracker with P50/P95/P99 Percentiles
// =============================================================================

// LatencyTracker keeps a sliding window of samples for one stage.
type LatencyTracker struct {
	mu         sync.Mutex
	samples    []int64 // microseconds
	maxSamples int
	sorted     []int64
	dirty      bool
}

// NewLatencyTracker creates a tracker keeping the last windowSize samples.
func NewLatencyTracker(windowSize int) *LatencyTracker {
	if windowSize <= 0 {
		windowSize = 1000
	}
	return &LatencyTracker{
		samples:    make([]int64, 0, windowSize),
		maxSamples: windowSize,
	}
}

// Record adds a sample, evicting the oldest tenth of the window when full.
func (lt *LatencyTracker) Record(d time.Duration) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	if len(lt.samples) >= lt.maxSamples {
		drop := max(lt.maxSamples/10, 1)
		lt.samples = append(lt.samples[:0], lt.samples[drop:]...)
	}
	lt.samples = append(lt.samples, d.Microseconds())
	lt.dirty = true
}

// Stats summarises the current window.
func (lt *LatencyTracker) Stats() LatencyStats {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	n := len(lt.samples)
	if n == 0 {
		return LatencyStats{}
	}
	// Sort a copy so the window keeps insertion order for eviction.
	if lt.dirty {
		lt.sorted = append(lt.sorted[:0], lt.samples...)
		sort.Slice(lt.sorted, func(i, j int) bool { return lt.sorted[i] < lt.sorted[j] })
		lt.dirty = false
	}

	var sum int64
	for _, v := range lt.sorted {
		sum += v
	}
	us := func(v int64) time.Duration { return time.Duration(v) * time.Microsecond }

	return LatencyStats{
		Count: n,
		Min:   us(lt.sorted[0]),
		Max:   us(lt.sorted[n-1]),
		Avg:   us(sum / int64(n)),
		P50:   us(lt.percentile(0.50)),
		P95:   us(lt.percentile(0.95)),
		P99:   us(lt.percentile(0.99)),
	}
}

func (lt *LatencyTracker) percentile(p float64) int64 {
	idx := int(float64(len(lt.sorted)-1) * p)
	return lt.sorted[idx]
}

// LatencyStats holds latency statistics.
type LatencyStats struct {
	Count int
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
}

// ToMap renders the stats in milliseconds for JSON output.
func (s LatencyStats) ToMap() map[string]any {
	ms := func(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }
	return map[string]any{
		"count":  s.Count,
		"min_ms": ms(s.Min),
		"max_ms": ms(s.Max),
		"avg_ms": ms(s.Avg),
		"p50_ms": ms(s.P50),
		"p95_ms": ms(s.P95),
		"p99_ms": ms(s.P99),
	}
}

// =============================================================================
// Stage Registry
// =============================================================================

// StageRecorder receives stage timings. A nil *LatencyRegistry is a valid no-op recorder.
type StageRecorder interface {
	Record(stage string, d time.Duration)
}

// LatencyRegistry manages one tracker per planner stage.
type LatencyRegistry struct {
	mu       sync.RWMutex
	trackers map[string]*LatencyTracker
	window   int
}

// NewLatencyRegistry creates a new latency registry.
func NewLatencyRegistry(windowSize int) *LatencyRegistry {
	return &LatencyRegistry{
		trackers: make(map[string]*LatencyTracker),
		window:   windowSize,
	}
}

// Record records a latency for the given stage.
func (r *LatencyRegistry) Record(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.mu.RLock()
	tracker, ok := r.trackers[stage]
	r.mu.RUnlock()

	if !ok {
		r.mu.Lock()
		if tracker, ok = r.trackers[stage]; !ok {
			tracker = NewLatencyTracker(r.window)
			r.trackers[stage] = tracker
		}
		r.mu.Unlock()
	}
	tracker.Record(d)
}

// Since records the time elapsed since start. Intended for defer.
func (r *LatencyRegistry) Since(stage string, start time.Time) {
	r.Record(stage, time.Since(start))
}

// Stats returns latency statistics for a specific stage.
func (r *LatencyRegistry) Stats(stage string) LatencyStats {
	if r == nil {
		return LatencyStats{}
	}
	r.mu.RLock()
	tracker, ok := r.trackers[stage]
	r.mu.RUnlock()

	if !ok {
		return LatencyStats{}
	}
	return tracker.Stats()
}

// Snapshot returns every stage's stats keyed by stage name.
func (r *LatencyRegistry) Snapshot() map[string]map[string]any {
	if r == nil {
		return map[string]map[string]any{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]map[string]any, len(r.trackers))
	for name, tracker := range r.trackers {
		out[name] = tracker.Stats().ToMap()
	}
	return out
}
