package http

import (
	"time"

	"github.com/InboxGenie/IG-Gmail-MCP/pkg/metrics"

	"github.com/gofiber/fiber/v2"
)

// CacheStatter reports hit counters of a cache.
type CacheStatter interface {
	Stats() (hits, misses int64, hitRate float64)
}

// MetricsHandler exposes planner stage latencies and backend pool usage.
type MetricsHandler struct {
	latency *metrics.LatencyRegistry
	pools   map[string]func() map[string]any
	caches  map[string]CacheStatter
}

func NewMetricsHandler(latency *metrics.LatencyRegistry) *MetricsHandler {
	return &MetricsHandler{
		latency: latency,
		pools:   make(map[string]func() map[string]any),
		caches:  make(map[string]CacheStatter),
	}
}

// WithPool adds a connection pool snapshot under name.
func (h *MetricsHandler) WithPool(name string, snapshot func() map[string]any) *MetricsHandler {
	h.pools[name] = snapshot
	return h
}

// WithCache adds cache hit counters under name.
func (h *MetricsHandler) WithCache(name string, cache CacheStatter) *MetricsHandler {
	if cache != nil {
		h.caches[name] = cache
	}
	return h
}

func (h *MetricsHandler) Register(app fiber.Router) {
	app.Get("/metrics/planner", h.Planner)
}

// Planner reports per-stage latency percentiles in milliseconds.
// GET /metrics/planner
func (h *MetricsHandler) Planner(c *fiber.Ctx) error {
	pools := make(map[string]any, len(h.pools))
	for name, snapshot := range h.pools {
		pools[name] = snapshot()
	}

	caches := make(map[string]any, len(h.caches))
	for name, cache := range h.caches {
		hits, misses, hitRate := cache.Stats()
		caches[name] = fiber.Map{"hits": hits, "misses": misses, "hit_rate": hitRate}
	}

	return c.JSON(fiber.Map{
		"stages":    h.latency.Snapshot(),
		"pools":     pools,
		"caches":    caches,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
