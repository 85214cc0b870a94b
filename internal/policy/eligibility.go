package policy

import "github.com/safestake/registry/internal/domain"

// EvaluateEligibility decides whether a wager of amount may proceed at now.
// It never mutates snap. Order, first match wins:
//
//	NotRegistered, OnCooldown, SelfExcluded, AgeNotVerified,
//	DailyLimitReached, MonthlyLimitReached, Eligible.
//
// An active cooldown is reported ahead of the exclusion entry it came from;
// once it lapses the identity still reports SelfExcluded.
func EvaluateEligibility(snap domain.Snapshot, amount domain.Amount, now domain.Timestamp) domain.EligibilityStatus {
	id := EvaluateIdentityPolicy(snap, now)
	switch {
	case !id.Registered:
		return domain.StatusNotRegistered
	case id.OnCooldown:
		return domain.StatusOnCooldown
	case id.SelfExcluded:
		return domain.StatusSelfExcluded
	case !id.AgeVerified:
		return domain.StatusAgeNotVerified
	}

	rec := snap.Record
	daily, monthly := EffectiveSpend(rec, now)
	eval := EvaluateRgLimits(rec.DailyLimit, rec.MonthlyLimit, daily, monthly, amount)
	switch eval.BreachedLimit {
	case LimitDaily:
		return domain.StatusDailyLimitReached
	case LimitMonthly:
		return domain.StatusMonthlyLimitReached
	}
	return domain.StatusEligible
}

// TransactionGate returns the error RecordTransaction must fail with before any
// limit is considered, or nil. It checks age ahead of cooldown and exclusion.
// OnCooldown precedes SelfExcluded so a rejected transaction carries the same
// reason EvaluateEligibility reports for that identity.
func TransactionGate(snap domain.Snapshot, now domain.Timestamp) error {
	id := EvaluateIdentityPolicy(snap, now)
	if id.IsIdentityCleared() {
		return nil
	}
	switch {
	case !id.Registered:
		return domain.ErrUserNotRegistered()
	case !id.AgeVerified:
		return domain.ErrAgeNotVerified()
	case id.OnCooldown:
		return domain.ErrOnCooldown()
	case id.SelfExcluded:
		return domain.ErrSelfExcluded()
	}
	return nil
}
