package guard

import (
	"context"
	"sync"
	"time"

	"github.com/safestake/registry/internal/domain"
)

// IdempotencyGuard deduplicates requests by idempotency key. A key is held
// while its request runs; committed keys are forgotten after ttl.
type IdempotencyGuard struct {
	mu   sync.Mutex
	seen map[string]*idemEntry
	ttl  time.Duration
	now  func() time.Time
}

type idemEntry struct {
	at        time.Time
	committed bool
	done      chan struct{}
}

// NewIdempotencyGuard creates a new in-memory idempotency guard.
func NewIdempotencyGuard(ttl time.Duration) *IdempotencyGuard {
	return &IdempotencyGuard{
		seen: make(map[string]*idemEntry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Acquire claims key for one request. The returned finish must be called
// exactly once with whether the request committed. If another request holds
// the key, Acquire waits for it: a committed key is a duplicate, a released
// one is claimed by the waiter.
func (ig *IdempotencyGuard) Acquire(ctx context.Context, key string) (finish func(committed bool), res domain.GuardResult) {
	if key == "" {
		return func(bool) {}, domain.GuardResult{Allowed: true}
	}

	for {
		ig.mu.Lock()
		ig.evict(ig.now())

		e, ok := ig.seen[key]
		if !ok {
			e = &idemEntry{at: ig.now(), done: make(chan struct{})}
			ig.seen[key] = e
			ig.mu.Unlock()
			return ig.finisher(key, e), domain.GuardResult{Allowed: true}
		}
		if e.committed {
			ig.mu.Unlock()
			return func(bool) {}, domain.GuardResult{
				Allowed: false,
				Reason:  "duplicate request: idempotency key already processed",
				Guard:   "idempotency",
			}
		}
		done := e.done
		ig.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return func(bool) {}, domain.GuardResult{
				Allowed: false,
				Reason:  "request with this idempotency key still in progress",
				Guard:   "idempotency",
			}
		}
	}
}

func (ig *IdempotencyGuard) finisher(key string, e *idemEntry) func(bool) {
	var once sync.Once
	return func(committed bool) {
		once.Do(func() {
			ig.mu.Lock()
			defer ig.mu.Unlock()
			if committed {
				e.committed = true
				e.at = ig.now()
			} else if ig.seen[key] == e {
				delete(ig.seen, key)
			}
			close(e.done)
		})
	}
}

func (ig *IdempotencyGuard) evict(now time.Time) {
	if ig.ttl <= 0 {
		return
	}
	for k, e := range ig.seen {
		if e.committed && now.Sub(e.at) >= ig.ttl {
			delete(ig.seen, k)
		}
	}
}
