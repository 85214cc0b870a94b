package compliance

import (
	"context"
	"time"

	"github.com/safestake/registry/internal/domain"
	"github.com/safestake/registry/internal/policy"
)

// RecordTransaction counts amount against user's daily and monthly limits.
// Identity gates are checked first (registration, age, cooldown, exclusion),
// then windows roll over, then daily and monthly limits. On success both
// counters, the rollover and platformID are committed together; on failure
// nothing is.
func (e *Engine) RecordTransaction(ctx context.Context, user domain.IdentityKey, amount domain.Amount, platformID string, now domain.Timestamp) (rec *domain.ComplianceRecord, err error) {
	start := time.Now()
	defer func() { e.finish(OpRecordTransaction, user, start, err, "amount", amount, "platform_id", platformID) }()

	if err := domain.ValidatePlatformID(platformID); err != nil {
		return nil, domain.ErrParseParams(err.Error())
	}

	err = e.store.Update(ctx, user, func(snap *domain.Snapshot) ([]domain.OutboxDraft, error) {
		if err := policy.TransactionGate(*snap, now); err != nil {
			return nil, err
		}

		r := snap.Record
		policy.ApplyRollover(r, now)

		eval := policy.EvaluateRecordLimits(r, amount)
		if !eval.Allowed {
			if eval.BreachedLimit == policy.LimitDaily {
				return nil, domain.ErrDailyLimitExceeded()
			}
			return nil, domain.ErrMonthlyLimitExceeded()
		}

		r.DailySpent = eval.NewDaily
		r.MonthlySpent = eval.NewMonthly
		r.AddPlatform(platformID)
		rec = r.Clone()
		return []domain.OutboxDraft{domain.NewSpendRecordedEvent(r, amount, platformID, now)}, nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}
