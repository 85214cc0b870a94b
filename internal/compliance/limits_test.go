package compliance

import (
	"context"
	"testing"

	"github.com/safestake/registry/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLimits_AcceptsIffDailyNotAboveMonthly(t *testing.T) {
	tests := []struct {
		name           string
		daily, monthly domain.Amount
		wantErr        bool
	}{
		{"typical", 1_000_000_000, 5_000_000_000, false},
		{"equal", 7, 7, false},
		{"both zero", 0, 0, false},
		{"max", ^domain.Amount(0), ^domain.Amount(0), false},
		{"daily above monthly", 10_000_000_000, 5_000_000_000, true},
		{"daily one above", 8, 7, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			err := f.engine.SetLimits(context.Background(), domain.DeriveIdentityKey(alice), tt.daily, tt.monthly, f.now)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidLimits())
				assert.Nil(t, f.snapshot(t, alice).Record)
				assert.Empty(t, f.store.Events())
				return
			}
			require.NoError(t, err)
			rec := f.snapshot(t, alice).Record
			assert.Equal(t, tt.daily, rec.DailyLimit)
			assert.Equal(t, tt.monthly, rec.MonthlyLimit)
		})
	}
}

func TestSetLimits_CreatesUnverifiedRecord(t *testing.T) {
	f := newFixture(t)
	f.setLimits(t, alice, 1_000_000_000, 5_000_000_000)

	rec := f.snapshot(t, alice).Record
	require.NotNil(t, rec)
	assert.False(t, rec.AgeVerified)
	assert.Zero(t, rec.DailySpent)
	assert.Equal(t, f.now, rec.LastResetDay)
	assert.Equal(t, domain.StatusAgeNotVerified, f.eligibility(t, alice, 500_000_000))
	assert.ErrorIs(t, f.record(alice, 1, "platform_1"), domain.ErrAgeNotVerified())
}

func TestSetLimits_ExistingRecordOnlyChangesLimits(t *testing.T) {
	f := newFixture(t)
	f.register(t, alice)
	f.setLimits(t, alice, 1_000_000_000, 5_000_000_000)
	require.NoError(t, f.record(alice, 600_000_000, "platform_1"))
	before := f.snapshot(t, alice).Record

	f.now += 10
	f.setLimits(t, alice, 700_000_000, 2_000_000_000)

	after := f.snapshot(t, alice).Record
	assert.Equal(t, domain.Amount(700_000_000), after.DailyLimit)
	assert.Equal(t, domain.Amount(2_000_000_000), after.MonthlyLimit)
	after.DailyLimit, after.MonthlyLimit = before.DailyLimit, before.MonthlyLimit
	assert.Equal(t, before, after)
}

func TestSetLimits_LoweringBelowSpendBlocksFurtherSpend(t *testing.T) {
	f := newFixture(t)
	f.register(t, alice)
	f.setLimits(t, alice, 1_000_000_000, 5_000_000_000)
	require.NoError(t, f.record(alice, 600_000_000, "platform_1"))

	f.setLimits(t, alice, 500_000_000, 5_000_000_000)
	assert.Equal(t, domain.StatusDailyLimitReached, f.eligibility(t, alice, 0))
	assert.ErrorIs(t, f.record(alice, 1, "platform_1"), domain.ErrDailyLimitExceeded())
}
