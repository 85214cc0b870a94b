package compliance

import (
	"context"
	"time"

	"github.com/safestake/registry/internal/domain"
)

// Register records that account has proven legal age. signature must verify
// under the verifier key over exactly the raw account bytes. Re-registering an
// existing record only sets AgeVerified; limits, spend and cooldown are kept.
func (e *Engine) Register(ctx context.Context, account domain.AccountID, signature []byte, now domain.Timestamp) (err error) {
	start := time.Now()
	id := domain.DeriveIdentityKey(account)
	defer func() { e.finish(OpRegister, id, start, err) }()

	if !e.verifier.Verify(account, signature) {
		return domain.ErrInvalidSignature()
	}

	return e.store.Update(ctx, id, func(snap *domain.Snapshot) ([]domain.OutboxDraft, error) {
		existing := snap.Record != nil
		if !existing {
			snap.Record = recordFor(snap, id, now)
		}
		snap.Record.AgeVerified = true
		return []domain.OutboxDraft{domain.NewIdentityRegisteredEvent(id, existing, now)}, nil
	})
}
