package guard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/safestake/registry/internal/domain"
)

// CircuitState is the publish state of one outbox topic.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// CircuitBreaker tracks publish failures per topic. After failThreshold
// consecutive failures the topic is held for cooldown, then a single trial
// publish decides whether it closes again or reopens.
type CircuitBreaker struct {
	mu            sync.Mutex
	topics        map[string]*topicCircuit
	failThreshold int
	cooldown      time.Duration
	now           func() time.Time
}

type topicCircuit struct {
	state    CircuitState
	failures int
	openedAt time.Time
	trial    bool
}

// NewCircuitBreaker opens a topic after failThreshold consecutive failures
// and allows a trial publish once cooldown has elapsed.
func NewCircuitBreaker(failThreshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		topics:        make(map[string]*topicCircuit),
		failThreshold: failThreshold,
		cooldown:      cooldown,
		now:           time.Now,
	}
}

// Check reports whether a publish to topic may proceed.
func (cb *CircuitBreaker) Check(_ context.Context, topic string) domain.GuardResult {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.circuit(topic)
	switch c.state {
	case CircuitOpen:
		held := cb.now().Sub(c.openedAt)
		if held < cb.cooldown {
			return domain.GuardResult{
				Allowed: false,
				Reason:  fmt.Sprintf("topic %s held after %d failures, retry in %s", topic, c.failures, cb.cooldown-held),
				Guard:   "circuit_breaker",
			}
		}
		c.state = CircuitHalfOpen
		c.trial = true
		return domain.GuardResult{Allowed: true}
	case CircuitHalfOpen:
		if c.trial {
			return domain.GuardResult{
				Allowed: false,
				Reason:  fmt.Sprintf("topic %s trial publish in flight", topic),
				Guard:   "circuit_breaker",
			}
		}
		c.trial = true
		return domain.GuardResult{Allowed: true}
	}
	return domain.GuardResult{Allowed: true}
}

// RecordSuccess closes the topic's circuit.
func (cb *CircuitBreaker) RecordSuccess(topic string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.circuit(topic)
	c.state = CircuitClosed
	c.failures = 0
	c.trial = false
}

// RecordFailure counts a failed publish. A failed trial reopens at once.
func (cb *CircuitBreaker) RecordFailure(topic string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.circuit(topic)
	c.failures++
	c.trial = false
	if c.state == CircuitHalfOpen || c.failures >= cb.failThreshold {
		c.state = CircuitOpen
		c.openedAt = cb.now()
	}
}

// State returns the current state for topic; unknown topics are closed.
func (cb *CircuitBreaker) State(topic string) CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if c, ok := cb.topics[topic]; ok {
		return c.state
	}
	return CircuitClosed
}

func (cb *CircuitBreaker) circuit(topic string) *topicCircuit {
	c, ok := cb.topics[topic]
	if !ok {
		c = &topicCircuit{}
		cb.topics[topic] = c
	}
	return c
}
