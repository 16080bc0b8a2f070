package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/InboxGenie/IG-Gmail-MCP/pkg/apperr"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// RateLimiter provides per-user token-bucket rate limiting. Every query costs
// one reasoning call and a vector search, so the limit applies to the caller
// rather than the IP. Unauthenticated requests fall back to the IP.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rate     rate.Limit
	burst    int
	idleTTL  time.Duration
	now      func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter.
// rps is requests per second, burst is the maximum burst size.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     rate.Limit(rps),
		burst:    burst,
		idleTTL:  10 * time.Minute,
		now:      time.Now,
	}
}

// Allow checks if a request from the given key should be allowed.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	entry, ok := rl.limiters[key]
	if !ok {
		rl.evictIdle(now)
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// evictIdle drops limiters not used for idleTTL. Called with mu held.
func (rl *RateLimiter) evictIdle(now time.Time) {
	for key, e := range rl.limiters {
		if now.Sub(e.lastSeen) > rl.idleTTL {
			delete(rl.limiters, key)
		}
	}
}

// Handler rate limits by user key, then by IP.
func (rl *RateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := GetUserKey(c)
		if key == "" {
			key = "ip:" + c.IP()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(rl.burst))
		if !rl.Allow(key) {
			c.Set("Retry-After", "1")
			return apperr.ErrRateLimited
		}
		return c.Next()
	}
}
