package metrics

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// =============================================================================
// Database Pool Monitor
// =============================================================================

// PoolStats is a JSON-friendly view of a pgx pool.
type PoolStats struct {
	TotalConns      int32         `json:"total_conns"`
	AcquiredConns   int32         `json:"acquired_conns"`
	IdleConns       int32         `json:"idle_conns"`
	MaxConns        int32         `json:"max_conns"`
	AcquireCount    int64         `json:"acquire_count"`
	EmptyAcquires   int64         `json:"empty_acquire_count"`
	AcquireDuration time.Duration `json:"acquire_duration"`
}

// Utilization is acquired/max in [0,1].
func (s PoolStats) Utilization() float64 {
	if s.MaxConns == 0 {
		return 0
	}
	return float64(s.AcquiredConns) / float64(s.MaxConns)
}

// ToMap converts stats to a map for JSON serialization.
func (s PoolStats) ToMap() map[string]any {
	return map[string]any{
		"total_conns":         s.TotalConns,
		"acquired_conns":      s.AcquiredConns,
		"idle_conns":          s.IdleConns,
		"max_conns":           s.MaxConns,
		"acquire_count":       s.AcquireCount,
		"empty_acquire_count": s.EmptyAcquires,
		"acquire_duration_ms": s.AcquireDuration.Milliseconds(),
		"utilization":         s.Utilization(),
	}
}

// CollectPoolStats reads the pool counters. A nil pool yields zero stats.
func CollectPoolStats(pool *pgxpool.Pool) PoolStats {
	if pool == nil {
		return PoolStats{}
	}
	st := pool.Stat()
	return PoolStats{
		TotalConns:      st.TotalConns(),
		AcquiredConns:   st.AcquiredConns(),
		IdleConns:       st.IdleConns(),
		MaxConns:        st.MaxConns(),
		AcquireCount:    st.AcquireCount(),
		EmptyAcquires:   st.EmptyAcquireCount(),
		AcquireDuration: st.AcquireDuration(),
	}
}
