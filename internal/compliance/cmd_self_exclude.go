package compliance

import (
	"context"
	"time"

	"github.com/safestake/registry/internal/domain"
)

// SelfExclude adds caller to the exclusion set and starts a cooldown of
// durationDays. The exclusion is permanent; repeating it never shortens an
// earlier cooldown. It returns the cooldown end now in force.
func (e *Engine) SelfExclude(ctx context.Context, caller domain.IdentityKey, durationDays uint64, now domain.Timestamp) (until domain.Timestamp, err error) {
	start := time.Now()
	defer func() { e.finish(OpSelfExclude, caller, start, err, "duration_days", durationDays) }()

	requested, err := now.AddDays(durationDays)
	if err != nil {
		return 0, domain.ErrParseParams("cooldown end overflows timestamp range")
	}

	err = e.store.Update(ctx, caller, func(snap *domain.Snapshot) ([]domain.OutboxDraft, error) {
		if snap.Exclusion == nil {
			snap.Exclusion = &domain.Exclusion{Identity: caller, CooldownUntil: requested, ExcludedAt: now}
		} else if requested > snap.Exclusion.CooldownUntil {
			snap.Exclusion.CooldownUntil = requested
		}
		until = snap.Exclusion.CooldownUntil

		if snap.Record != nil {
			snap.Record.ExtendCooldown(requested)
			until = *snap.Record.CooldownUntil
		}
		return []domain.OutboxDraft{domain.NewSelfExclusionEvent(caller, until, now)}, nil
	})
	if err != nil {
		return 0, err
	}
	return until, nil
}
