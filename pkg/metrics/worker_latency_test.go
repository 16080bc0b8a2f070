package metrics

import (
	"testing"
	"time"
)

func TestLatencyTracker_Percentiles(t *testing.T) {
	lt := NewLatencyTracker(100)
	for i := 100; i >= 1; i-- {
		lt.Record(time.Duration(i) * time.Millisecond)
	}

	s := lt.Stats()
	if s.Count != 100 {
		t.Fatalf("count = %d, want 100", s.Count)
	}
	if s.Min != time.Millisecond || s.Max != 100*time.Millisecond {
		t.Errorf("min/max = %v/%v", s.Min, s.Max)
	}
	if s.P50 != 50*time.Millisecond {
		t.Errorf("p50 = %v, want 50ms", s.P50)
	}
	if s.P99 != 99*time.Millisecond {
		t.Errorf("p99 = %v, want 99ms", s.P99)
	}
}

func TestLatencyTracker_EvictsOldest(t *testing.T) {
	lt := NewLatencyTracker(10)
	for i := 1; i <= 10; i++ {
		lt.Record(time.Duration(i) * time.Second)
	}
	// Window is full: the oldest sample (1s) goes.
	lt.Record(20 * time.Second)

	s := lt.Stats()
	if s.Count != 10 {
		t.Fatalf("count = %d, want 10", s.Count)
	}
	if s.Min != 2*time.Second {
		t.Errorf("min = %v, want 2s after eviction", s.Min)
	}
	if s.Max != 20*time.Second {
		t.Errorf("max = %v, want 20s", s.Max)
	}
}

func TestLatencyRegistry_Snapshot(t *testing.T) {
	r := NewLatencyRegistry(10)
	r.Record(StageReasoning, 5*time.Millisecond)
	r.Record(StageStore, 2*time.Millisecond)
	r.Record(StageStore, 4*time.Millisecond)

	snap := r.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(snap))
	}
	if got := snap[StageStore]["count"]; got != 2 {
		t.Errorf("store count = %v, want 2", got)
	}
	if got := r.Stats(StageVector); got.Count != 0 {
		t.Errorf("unknown stage should be empty, got %+v", got)
	}
}

func TestLatencyRegistry_NilIsNoop(t *testing.T) {
	var r *LatencyRegistry
	r.Record(StageTotal, time.Second)
}
