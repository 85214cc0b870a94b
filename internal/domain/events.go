package domain

import (
	"encoding/json"

	"github.com/google/uuid"
)

func newComplianceEvent(id IdentityKey, evtType EventType, now Timestamp, payload interface{}) OutboxDraft {
	body, _ := json.Marshal(payload)
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregateCompliance,
		AggregateID:   id.String(),
		EventType:     evtType,
		PartitionKey:  id.String(),
		Headers:       json.RawMessage(`{}`),
		Payload:       body,
		OccurredAt:    now.Time(),
	}
}

// NewIdentityRegisteredEvent records a successful age-verified registration.
func NewIdentityRegisteredEvent(id IdentityKey, reRegistered bool, now Timestamp) OutboxDraft {
	return newComplianceEvent(id, EventIdentityRegistered, now, map[string]interface{}{
		"identity":      id.String(),
		"re_registered": reRegistered,
	})
}

// NewLimitsUpdatedEvent records a limit change.
func NewLimitsUpdatedEvent(id IdentityKey, daily, monthly Amount, now Timestamp) OutboxDraft {
	return newComplianceEvent(id, EventLimitsUpdated, now, map[string]interface{}{
		"identity":      id.String(),
		"daily_limit":   daily,
		"monthly_limit": monthly,
	})
}

// NewSelfExclusionEvent creates a responsible gaming self-exclusion event.
func NewSelfExclusionEvent(id IdentityKey, cooldownUntil Timestamp, now Timestamp) OutboxDraft {
	return newComplianceEvent(id, EventSelfExclusionEnabled, now, map[string]interface{}{
		"identity":       id.String(),
		"cooldown_until": cooldownUntil,
	})
}

// NewSpendRecordedEvent records a committed spend with the post-commit counters.
func NewSpendRecordedEvent(rec *ComplianceRecord, amount Amount, platformID string, now Timestamp) OutboxDraft {
	return newComplianceEvent(rec.Identity, EventSpendRecorded, now, map[string]interface{}{
		"identity":      rec.Identity.String(),
		"amount":        amount,
		"platform_id":   platformID,
		"daily_spent":   rec.DailySpent,
		"monthly_spent": rec.MonthlySpent,
	})
}
