package guard

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/safestake/registry/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_AllowsBurst(t *testing.T) {
	rl := NewRateLimiter(0.001, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result := rl.Check(ctx, "10.0.0.1")
		assert.True(t, result.Allowed, "request %d should be allowed", i+1)
	}
}

func TestRateLimiter_BlocksOverBurst(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	ctx := context.Background()

	rl.Check(ctx, "10.0.0.1")
	rl.Check(ctx, "10.0.0.1")
	result := rl.Check(ctx, "10.0.0.1")

	assert.False(t, result.Allowed)
	assert.Equal(t, "rate_limiter", result.Guard)
	assert.Contains(t, result.Reason, "burst 2")
}

func TestRateLimiter_SeparateKeys(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	ctx := context.Background()

	r1 := rl.Check(ctx, "key-a")
	r2 := rl.Check(ctx, "key-b")

	assert.True(t, r1.Allowed)
	assert.True(t, r2.Allowed)
	assert.False(t, rl.Check(ctx, "key-a").Allowed)
}

func TestRateLimiter_EvictsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	clock := time.Date(2024, time.May, 10, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		rl.Check(ctx, fmt.Sprintf("10.0.0.%d", i))
	}
	assert.Equal(t, 100, rl.Len())

	clock = clock.Add(DefaultLimiterIdle)
	assert.True(t, rl.Check(ctx, "10.0.0.200").Allowed)
	assert.Equal(t, 1, rl.Len(), "idle buckets are dropped on the next sweep")
}

func TestRateLimiter_IdleWindowCoversRefill(t *testing.T) {
	rl := NewRateLimiter(0.5, 1000)
	assert.Equal(t, 2000*time.Second, rl.idle)
	assert.Equal(t, DefaultLimiterIdle, NewRateLimiter(1, 5).idle)
}

func TestCircuitBreaker_ClosedByDefault(t *testing.T) {
	cb := NewCircuitBreaker(3, 5*time.Second)
	ctx := context.Background()

	result := cb.Check(ctx, "safestake.compliance.spend")
	assert.True(t, result.Allowed)
	assert.Equal(t, CircuitClosed, cb.State("safestake.compliance.spend"))
}

func TestCircuitBreaker_OpensOnThreshold(t *testing.T) {
	cb := NewCircuitBreaker(2, 5*time.Second)
	ctx := context.Background()

	cb.Check(ctx, "topic-a")
	cb.RecordFailure("topic-a")
	cb.RecordFailure("topic-a")

	result := cb.Check(ctx, "topic-a")
	assert.False(t, result.Allowed)
	assert.Equal(t, "circuit_breaker", result.Guard)
	assert.Equal(t, CircuitOpen, cb.State("topic-a"))
	assert.True(t, cb.Check(ctx, "topic-b").Allowed)
}

func TestCircuitBreaker_SuccessResets(t *testing.T) {
	cb := NewCircuitBreaker(2, 5*time.Second)
	ctx := context.Background()

	cb.Check(ctx, "topic-a")
	cb.RecordFailure("topic-a")
	cb.RecordSuccess("topic-a")
	cb.RecordFailure("topic-a")

	result := cb.Check(ctx, "topic-a")
	assert.True(t, result.Allowed)
}

func TestCircuitBreaker_HalfOpenTrial(t *testing.T) {
	cb := NewCircuitBreaker(1, 30*time.Second)
	clock := time.Date(2024, time.May, 10, 12, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return clock }
	ctx := context.Background()

	cb.RecordFailure("topic-a")
	require.Equal(t, CircuitOpen, cb.State("topic-a"))

	clock = clock.Add(29 * time.Second)
	res := cb.Check(ctx, "topic-a")
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "retry in 1s")

	clock = clock.Add(time.Second)
	require.True(t, cb.Check(ctx, "topic-a").Allowed)
	assert.Equal(t, CircuitHalfOpen, cb.State("topic-a"))
	assert.False(t, cb.Check(ctx, "topic-a").Allowed, "only one trial at a time")

	cb.RecordSuccess("topic-a")
	assert.Equal(t, CircuitClosed, cb.State("topic-a"))
	assert.True(t, cb.Check(ctx, "topic-a").Allowed)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(3, 30*time.Second)
	clock := time.Date(2024, time.May, 10, 12, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return clock }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cb.RecordFailure("topic-a")
	}
	clock = clock.Add(30 * time.Second)
	require.True(t, cb.Check(ctx, "topic-a").Allowed)

	cb.RecordFailure("topic-a")
	assert.Equal(t, CircuitOpen, cb.State("topic-a"))
	assert.False(t, cb.Check(ctx, "topic-a").Allowed, "cooldown restarts from the failed trial")
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half_open", CircuitHalfOpen.String())
}

func TestIdempotencyGuard_AllowsFirst(t *testing.T) {
	ig := NewIdempotencyGuard(time.Hour)

	finish, result := ig.Acquire(context.Background(), "req-123")
	assert.True(t, result.Allowed)
	finish(true)
}

func TestIdempotencyGuard_BlocksCommittedDuplicate(t *testing.T) {
	ig := NewIdempotencyGuard(time.Hour)
	ctx := context.Background()

	finish, _ := ig.Acquire(ctx, "req-123")
	finish(true)
	_, result := ig.Acquire(ctx, "req-123")

	assert.False(t, result.Allowed)
	assert.Equal(t, "idempotency", result.Guard)
	assert.Contains(t, result.Reason, "already processed")
}

func TestIdempotencyGuard_EmptyKeyAllowed(t *testing.T) {
	ig := NewIdempotencyGuard(time.Hour)
	ctx := context.Background()

	_, r1 := ig.Acquire(ctx, "")
	_, r2 := ig.Acquire(ctx, "")

	assert.True(t, r1.Allowed)
	assert.True(t, r2.Allowed)
}

func TestIdempotencyGuard_ReleasedKeyAllowsRetry(t *testing.T) {
	ig := NewIdempotencyGuard(time.Hour)
	ctx := context.Background()

	finish, _ := ig.Acquire(ctx, "req-456")
	finish(false)
	finish(true) // second call is ignored

	_, result := ig.Acquire(ctx, "req-456")
	require.True(t, result.Allowed)
}

func TestIdempotencyGuard_WaiterClaimsKeyReleasedByFailure(t *testing.T) {
	ig := NewIdempotencyGuard(time.Hour)
	ctx := context.Background()

	finish, res := ig.Acquire(ctx, "req-1")
	require.True(t, res.Allowed)

	got := make(chan domain.GuardResult, 1)
	go func() {
		waiterFinish, res := ig.Acquire(ctx, "req-1")
		waiterFinish(true)
		got <- res
	}()

	select {
	case <-got:
		t.Fatal("duplicate must wait while the key is in flight")
	case <-time.After(20 * time.Millisecond):
	}

	finish(false)
	select {
	case res := <-got:
		assert.True(t, res.Allowed, "waiter takes over a key whose request failed")
	case <-time.After(time.Second):
		t.Fatal("waiter not released")
	}

	_, res = ig.Acquire(ctx, "req-1")
	assert.False(t, res.Allowed)
}

func TestIdempotencyGuard_WaiterSeesCommit(t *testing.T) {
	ig := NewIdempotencyGuard(time.Hour)
	ctx := context.Background()

	finish, _ := ig.Acquire(ctx, "req-2")
	got := make(chan domain.GuardResult, 1)
	go func() {
		_, res := ig.Acquire(ctx, "req-2")
		got <- res
	}()

	time.Sleep(10 * time.Millisecond)
	finish(true)
	res := <-got
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "already processed")
}

func TestIdempotencyGuard_WaitHonorsContext(t *testing.T) {
	ig := NewIdempotencyGuard(time.Hour)
	finish, _ := ig.Acquire(context.Background(), "req-3")
	defer finish(true)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, res := ig.Acquire(ctx, "req-3")
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "in progress")
}

func TestIdempotencyGuard_ExpiresAfterTTL(t *testing.T) {
	ig := NewIdempotencyGuard(time.Minute)
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	ig.now = func() time.Time { return now }
	ctx := context.Background()

	finish, res := ig.Acquire(ctx, "req-789")
	require.True(t, res.Allowed)
	finish(true)
	_, res = ig.Acquire(ctx, "req-789")
	require.False(t, res.Allowed)

	now = now.Add(time.Minute)
	_, res = ig.Acquire(ctx, "req-789")
	assert.True(t, res.Allowed)
}
