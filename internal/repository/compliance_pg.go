package repository

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/safestake/registry/internal/domain"
	"github.com/safestake/registry/internal/infra"
)

const selectRecord = `
		SELECT daily_limit, monthly_limit, daily_spent, monthly_spent,
		       last_reset_day, last_reset_month, cooldown_until,
		       platforms_used, age_verified
		FROM compliance_records WHERE identity = $1`

const selectExclusion = `
		SELECT cooldown_until, excluded_at
		FROM compliance_exclusions WHERE identity = $1`

// PostgresStore is a pgx-backed ComplianceStore. Each Update runs in one
// transaction holding an advisory lock on the identity, so updates for an
// identity without a row yet are serialized too.
type PostgresStore struct {
	pool   Pool
	outbox OutboxRepository
}

// NewPostgresStore returns a store over pool.
func NewPostgresStore(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool, outbox: NewOutboxRepository()}
}

func (s *PostgresStore) Load(ctx context.Context, id domain.IdentityKey) (domain.Snapshot, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("begin load: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	snap, err := readSnapshot(ctx, tx, id, false)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Snapshot{}, fmt.Errorf("commit load: %w", err)
	}
	return snap, nil
}

func (s *PostgresStore) Update(ctx context.Context, id domain.IdentityKey, fn UpdateFunc) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, advisoryKey(id)); err != nil {
		return fmt.Errorf("lock identity: %w", err)
	}

	snap, err := readSnapshot(ctx, tx, id, true)
	if err != nil {
		return err
	}

	events, err := fn(&snap)
	if err != nil {
		return err
	}

	if snap.Record != nil {
		if err := upsertRecord(ctx, tx, snap.Record); err != nil {
			return err
		}
	}
	if snap.Exclusion != nil {
		if err := upsertExclusion(ctx, tx, snap.Exclusion); err != nil {
			return err
		}
	}
	for _, evt := range events {
		if err := s.outbox.Insert(ctx, tx, evt); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// advisoryKey folds the identity into the int64 keyspace of pg_advisory_xact_lock.
func advisoryKey(id domain.IdentityKey) int64 {
	return int64(binary.BigEndian.Uint64(id[:8]))
}

func readSnapshot(ctx context.Context, db DBTX, id domain.IdentityKey, forUpdate bool) (domain.Snapshot, error) {
	query := selectRecord
	if forUpdate {
		query += " FOR UPDATE"
	}
	rec, err := scanRecord(db.QueryRow(ctx, query, id.Bytes()), id)
	if err != nil {
		return domain.Snapshot{}, err
	}
	ex, err := scanExclusion(db.QueryRow(ctx, selectExclusion, id.Bytes()), id)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return domain.Snapshot{Record: rec, Exclusion: ex}, nil
}

func scanRecord(row pgx.Row, id domain.IdentityKey) (*domain.ComplianceRecord, error) {
	var daily, monthly, dailySpent, monthlySpent, resetDay, resetMonth, cooldown pgtype.Numeric
	var platforms []string
	var verified bool
	err := row.Scan(&daily, &monthly, &dailySpent, &monthlySpent, &resetDay, &resetMonth, &cooldown, &platforms, &verified)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan compliance record: %w", err)
	}

	rec := &domain.ComplianceRecord{Identity: id, AgeVerified: verified, PlatformsUsed: platforms}
	if rec.PlatformsUsed == nil {
		rec.PlatformsUsed = []string{}
	}
	fields := []struct {
		name string
		num  pgtype.Numeric
		dst  *uint64
	}{
		{"daily_limit", daily, (*uint64)(&rec.DailyLimit)},
		{"monthly_limit", monthly, (*uint64)(&rec.MonthlyLimit)},
		{"daily_spent", dailySpent, (*uint64)(&rec.DailySpent)},
		{"monthly_spent", monthlySpent, (*uint64)(&rec.MonthlySpent)},
		{"last_reset_day", resetDay, (*uint64)(&rec.LastResetDay)},
		{"last_reset_month", resetMonth, (*uint64)(&rec.LastResetMonth)},
	}
	for _, f := range fields {
		v, err := infra.NumericToUint64(f.num)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}

	if cooldown.Valid {
		until, err := infra.NumericToUint64(cooldown)
		if err != nil {
			return nil, fmt.Errorf("cooldown_until: %w", err)
		}
		ts := domain.Timestamp(until)
		rec.CooldownUntil = &ts
	}
	return rec, nil
}

func scanExclusion(row pgx.Row, id domain.IdentityKey) (*domain.Exclusion, error) {
	var until, at pgtype.Numeric
	err := row.Scan(&until, &at)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan exclusion: %w", err)
	}
	cooldown, err := infra.NumericToUint64(until)
	if err != nil {
		return nil, fmt.Errorf("exclusion cooldown_until: %w", err)
	}
	excludedAt, err := infra.NumericToUint64(at)
	if err != nil {
		return nil, fmt.Errorf("exclusion excluded_at: %w", err)
	}
	return &domain.Exclusion{
		Identity:      id,
		CooldownUntil: domain.Timestamp(cooldown),
		ExcludedAt:    domain.Timestamp(excludedAt),
	}, nil
}

func upsertRecord(ctx context.Context, db DBTX, rec *domain.ComplianceRecord) error {
	cooldown := pgtype.Numeric{}
	if rec.CooldownUntil != nil {
		cooldown = infra.Uint64ToNumeric(uint64(*rec.CooldownUntil))
	}
	platforms := rec.PlatformsUsed
	if platforms == nil {
		platforms = []string{}
	}

	_, err := db.Exec(ctx, `
		INSERT INTO compliance_records
		  (identity, daily_limit, monthly_limit, daily_spent, monthly_spent,
		   last_reset_day, last_reset_month, cooldown_until, platforms_used, age_verified, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (identity) DO UPDATE SET
		  daily_limit = EXCLUDED.daily_limit,
		  monthly_limit = EXCLUDED.monthly_limit,
		  daily_spent = EXCLUDED.daily_spent,
		  monthly_spent = EXCLUDED.monthly_spent,
		  last_reset_day = EXCLUDED.last_reset_day,
		  last_reset_month = EXCLUDED.last_reset_month,
		  cooldown_until = EXCLUDED.cooldown_until,
		  platforms_used = EXCLUDED.platforms_used,
		  age_verified = EXCLUDED.age_verified,
		  updated_at = now()`,
		rec.Identity.Bytes(),
		infra.Uint64ToNumeric(uint64(rec.DailyLimit)),
		infra.Uint64ToNumeric(uint64(rec.MonthlyLimit)),
		infra.Uint64ToNumeric(uint64(rec.DailySpent)),
		infra.Uint64ToNumeric(uint64(rec.MonthlySpent)),
		infra.Uint64ToNumeric(uint64(rec.LastResetDay)),
		infra.Uint64ToNumeric(uint64(rec.LastResetMonth)),
		cooldown,
		platforms,
		rec.AgeVerified,
	)
	if err != nil {
		return fmt.Errorf("upsert compliance record: %w", err)
	}
	return nil
}

func upsertExclusion(ctx context.Context, db DBTX, ex *domain.Exclusion) error {
	_, err := db.Exec(ctx, `
		INSERT INTO compliance_exclusions (identity, cooldown_until, excluded_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (identity) DO UPDATE SET
		  cooldown_until = GREATEST(compliance_exclusions.cooldown_until, EXCLUDED.cooldown_until)`,
		ex.Identity.Bytes(),
		infra.Uint64ToNumeric(uint64(ex.CooldownUntil)),
		infra.Uint64ToNumeric(uint64(ex.ExcludedAt)),
	)
	if err != nil {
		return fmt.Errorf("upsert exclusion: %w", err)
	}
	return nil
}
