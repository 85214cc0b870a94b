package compliance

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/safestake/registry/internal/auth"
	"github.com/safestake/registry/internal/domain"
	"github.com/safestake/registry/internal/metrics"
	"github.com/safestake/registry/internal/repository"
	"github.com/stretchr/testify/require"
)

var (
	alice   = account(1)
	bob     = account(2)
	charlie = account(3)
)

// account mirrors the fixed 32-byte test accounts [b; 32].
func account(b byte) domain.AccountID {
	return domain.AccountID(bytes.Repeat([]byte{b}, 32))
}

// keypair derives a deterministic Ed25519 key whose seed is b followed by zeros.
func keypair(b byte) ed25519.PrivateKey {
	seed := make([]byte, ed25519.SeedSize)
	seed[0] = b
	return ed25519.NewKeyFromSeed(seed)
}

func at(year int, month time.Month, day, hour int) domain.Timestamp {
	return domain.TimestampFromTime(time.Date(year, month, day, hour, 0, 0, 0, time.UTC))
}

type fixture struct {
	engine *Engine
	store  *repository.MemoryStore
	signer ed25519.PrivateKey
	now    domain.Timestamp
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	signer := keypair(1)
	verifier, err := auth.NewEd25519Verifier(signer.Public().(ed25519.PublicKey))
	require.NoError(t, err)

	store := repository.NewMemoryStore()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return &fixture{
		engine: NewEngine(store, verifier, metrics.New(prometheus.NewRegistry()), logger),
		store:  store,
		signer: signer,
		now:    at(2024, time.May, 10, 12),
	}
}

func (f *fixture) register(t *testing.T, acct domain.AccountID) {
	t.Helper()
	require.NoError(t, f.engine.Register(context.Background(), acct, ed25519.Sign(f.signer, acct), f.now))
}

func (f *fixture) setLimits(t *testing.T, acct domain.AccountID, daily, monthly domain.Amount) {
	t.Helper()
	require.NoError(t, f.engine.SetLimits(context.Background(), domain.DeriveIdentityKey(acct), daily, monthly, f.now))
}

func (f *fixture) eligibility(t *testing.T, acct domain.AccountID, amount domain.Amount) domain.EligibilityStatus {
	t.Helper()
	status, err := f.engine.CheckEligibility(context.Background(), domain.DeriveIdentityKey(acct), amount, f.now)
	require.NoError(t, err)
	return status
}

func (f *fixture) record(acct domain.AccountID, amount domain.Amount, platform string) error {
	_, err := f.engine.RecordTransaction(context.Background(), domain.DeriveIdentityKey(acct), amount, platform, f.now)
	return err
}

func (f *fixture) snapshot(t *testing.T, acct domain.AccountID) domain.Snapshot {
	t.Helper()
	snap, err := f.store.Load(context.Background(), domain.DeriveIdentityKey(acct))
	require.NoError(t, err)
	return snap
}

// failingStore reports a storage outage on every call.
type failingStore struct{}

var errStoreDown = errors.New("store unavailable")

func (failingStore) Load(context.Context, domain.IdentityKey) (domain.Snapshot, error) {
	return domain.Snapshot{}, errStoreDown
}

func (failingStore) Update(context.Context, domain.IdentityKey, repository.UpdateFunc) error {
	return errStoreDown
}

func (failingStore) Ping(context.Context) error { return errStoreDown }
