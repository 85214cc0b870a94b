package compliance

import (
	"context"
	"time"

	"github.com/safestake/registry/internal/domain"
	"github.com/safestake/registry/internal/policy"
)

// SetLimits stores the caller's daily and monthly limits. A caller without a
// record gets one with AgeVerified false; an existing record only has its
// limits changed.
func (e *Engine) SetLimits(ctx context.Context, caller domain.IdentityKey, daily, monthly domain.Amount, now domain.Timestamp) (err error) {
	start := time.Now()
	defer func() { e.finish(OpSetLimits, caller, start, err, "daily_limit", daily, "monthly_limit", monthly) }()

	if !policy.ValidLimits(daily, monthly) {
		return domain.ErrInvalidLimits()
	}

	return e.store.Update(ctx, caller, func(snap *domain.Snapshot) ([]domain.OutboxDraft, error) {
		if snap.Record == nil {
			snap.Record = recordFor(snap, caller, now)
		}
		snap.Record.DailyLimit = daily
		snap.Record.MonthlyLimit = monthly
		return []domain.OutboxDraft{domain.NewLimitsUpdatedEvent(caller, daily, monthly, now)}, nil
	})
}
