package guard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/safestake/registry/internal/domain"
	"golang.org/x/time/rate"
)

// DefaultLimiterIdle is how long a key's bucket is kept after its last request.
const DefaultLimiterIdle = 10 * time.Minute

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds one token bucket per key, typically a client IP.
// Buckets idle for longer than the idle window are evicted.
type RateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter allows burst requests per key, refilled at perSecond.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	idle := DefaultLimiterIdle
	if perSecond > 0 {
		// an evicted bucket must already have refilled
		if refill := time.Duration(float64(burst) / perSecond * float64(time.Second)); refill > idle {
			idle = refill
		}
	}
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		idle:    idle,
		now:     time.Now,
	}
}

// Check returns a GuardResult indicating whether the key is within rate limits.
func (rl *RateLimiter) Check(_ context.Context, key string) domain.GuardResult {
	if rl.limiter(key).AllowN(rl.now(), 1) {
		return domain.GuardResult{Allowed: true}
	}
	return domain.GuardResult{
		Allowed: false,
		Reason:  fmt.Sprintf("rate limit exceeded: %g/s, burst %d", float64(rl.limit), rl.burst),
		Guard:   "rate_limiter",
	}
}

// Len reports how many keys currently hold a bucket.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.evict(now)

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim
}

// evict sweeps idle buckets at most once per idle window.
func (rl *RateLimiter) evict(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.idle {
		return
	}
	rl.lastSweep = now
	for k, b := range rl.buckets {
		if now.Sub(b.lastSeen) >= rl.idle {
			delete(rl.buckets, k)
		}
	}
}
