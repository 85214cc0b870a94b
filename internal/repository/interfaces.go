package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/safestake/registry/internal/domain"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Pool is the subset of *pgxpool.Pool the Postgres store needs. pgxmock pools satisfy it.
type Pool interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// UpdateFunc mutates a snapshot in place and returns the outbox events to
// persist with it. Returning an error discards every change.
type UpdateFunc func(snap *domain.Snapshot) ([]domain.OutboxDraft, error)

// ComplianceStore owns ComplianceRecords and the ExclusionSet.
type ComplianceStore interface {
	// Load returns a copy of one identity's record and exclusion entry.
	Load(ctx context.Context, id domain.IdentityKey) (domain.Snapshot, error)

	// Update runs fn with exclusive access to id and commits the resulting
	// snapshot and events atomically if fn returns nil. Errors from fn are
	// returned unchanged.
	Update(ctx context.Context, id domain.IdentityKey, fn UpdateFunc) error

	// Ping reports whether the backing storage is reachable.
	Ping(ctx context.Context) error
}

// OutboxRepository provides access to the event_outbox table.
type OutboxRepository interface {
	// Insert writes an outbox event (within the same transaction as the record update).
	Insert(ctx context.Context, db DBTX, draft domain.OutboxDraft) error

	// FetchUnpublished returns unpublished events for the outbox relay, oldest first.
	FetchUnpublished(ctx context.Context, db DBTX, limit int) ([]domain.OutboxRow, error)

	// MarkPublished deletes published events.
	MarkPublished(ctx context.Context, db DBTX, ids []int64) error
}
