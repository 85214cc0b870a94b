package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates all domain event types.
type EventType string

const (
	EventIdentityRegistered   EventType = "safestake.identity.registered"
	EventLimitsUpdated        EventType = "safestake.limits.updated"
	EventSelfExclusionEnabled EventType = "safestake.selfexclusion.enabled"
	EventSpendRecorded        EventType = "safestake.spend.recorded"
)

// AggregateType enumerates the aggregate root types for outbox events.
type AggregateType string

const (
	AggregateCompliance AggregateType = "compliance"
)

// OutboxDraft is the payload written to the event_outbox table.
type OutboxDraft struct {
	EventID       uuid.UUID       `json:"eventId"`
	AggregateType AggregateType   `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     EventType       `json:"eventType"`
	PartitionKey  string          `json:"partitionKey"`
	Headers       json.RawMessage `json:"headers"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

// OutboxRow is an OutboxDraft read back with its sequence id.
type OutboxRow struct {
	SeqID int64
	OutboxDraft
}

// GuardResult is the outcome of a request guard (rate limit, idempotency, circuit breaker).
type GuardResult struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Guard   string `json:"guard,omitempty"` // which guard blocked
}
