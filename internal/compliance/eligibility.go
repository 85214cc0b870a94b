package compliance

import (
	"context"
	"fmt"
	"time"

	"github.com/safestake/registry/internal/domain"
	"github.com/safestake/registry/internal/policy"
)

// CheckEligibility reports whether user may wager amount at now. It never
// changes stored state. Policy outcomes are statuses, never errors; the error
// is for storage failure only.
func (e *Engine) CheckEligibility(ctx context.Context, user domain.IdentityKey, amount domain.Amount, now domain.Timestamp) (domain.EligibilityStatus, error) {
	start := time.Now()

	snap, err := e.store.Load(ctx, user)
	if err != nil {
		e.metrics.ObserveOperation(OpCheckEligibility, err, time.Since(start))
		e.logger.Error("eligibility check failed", "identity", user.String(), "error", err)
		return "", fmt.Errorf("load compliance snapshot: %w", err)
	}

	status := policy.EvaluateEligibility(snap, amount, now)
	e.metrics.ObserveOperation(OpCheckEligibility, nil, time.Since(start))
	e.metrics.IncrementDecision(status)
	e.logger.Debug("eligibility evaluated", "identity", user.String(), "amount", amount, "status", status)
	return status, nil
}

// Record returns the participant's own record and exclusion flag.
func (e *Engine) Record(ctx context.Context, user domain.IdentityKey) (*domain.AccountView, error) {
	start := time.Now()

	snap, err := e.store.Load(ctx, user)
	if err != nil {
		e.metrics.ObserveOperation(OpRecord, err, time.Since(start))
		return nil, fmt.Errorf("load compliance snapshot: %w", err)
	}
	if snap.Record == nil {
		err := domain.ErrUserNotRegistered()
		e.metrics.ObserveOperation(OpRecord, err, time.Since(start))
		return nil, err
	}

	e.metrics.ObserveOperation(OpRecord, nil, time.Since(start))
	return &domain.AccountView{Record: snap.Record, SelfExcluded: snap.Excluded()}, nil
}
