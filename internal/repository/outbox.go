package repository

import (
	"context"
	"fmt"

	"github.com/safestake/registry/internal/domain"
)

type outboxRepo struct{}

// NewOutboxRepository returns a pgx-backed OutboxRepository.
func NewOutboxRepository() OutboxRepository {
	return &outboxRepo{}
}

// Insert writes an outbox event using the camelCase column names.
func (r *outboxRepo) Insert(ctx context.Context, db DBTX, draft domain.OutboxDraft) error {
	_, err := db.Exec(ctx, `
		INSERT INTO event_outbox
		  ("eventId", "aggregateType", "aggregateId", "eventType", "partitionKey", "headers", "payload", "occurredAt")
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		draft.EventID,
		string(draft.AggregateType),
		draft.AggregateID,
		string(draft.EventType),
		draft.PartitionKey,
		draft.Headers,
		draft.Payload,
		draft.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func (r *outboxRepo) FetchUnpublished(ctx context.Context, db DBTX, limit int) ([]domain.OutboxRow, error) {
	rows, err := db.Query(ctx, `
		SELECT "id", "eventId", "aggregateType", "aggregateId", "eventType",
		       "partitionKey", "headers", "payload", "occurredAt"
		FROM event_outbox
		ORDER BY "id" ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unpublished events: %w", err)
	}
	defer rows.Close()

	var events []domain.OutboxRow
	for rows.Next() {
		var row domain.OutboxRow
		var aggType, evtType string
		err := rows.Scan(&row.SeqID, &row.EventID, &aggType, &row.AggregateID,
			&evtType, &row.PartitionKey, &row.Headers, &row.Payload, &row.OccurredAt)
		if err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		row.AggregateType = domain.AggregateType(aggType)
		row.EventType = domain.EventType(evtType)
		events = append(events, row)
	}
	return events, rows.Err()
}

func (r *outboxRepo) MarkPublished(ctx context.Context, db DBTX, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := db.Exec(ctx, `DELETE FROM event_outbox WHERE "id" = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return nil
}

// OutboxReader binds an OutboxRepository to one connection pool for the relay.
type OutboxReader struct {
	db   DBTX
	repo OutboxRepository
}

// NewOutboxReader returns a reader over db.
func NewOutboxReader(db DBTX) *OutboxReader {
	return &OutboxReader{db: db, repo: NewOutboxRepository()}
}

// FetchUnpublished returns up to limit events, oldest first.
func (o *OutboxReader) FetchUnpublished(ctx context.Context, limit int) ([]domain.OutboxRow, error) {
	return o.repo.FetchUnpublished(ctx, o.db, limit)
}

// MarkPublished deletes the given events.
func (o *OutboxReader) MarkPublished(ctx context.Context, ids []int64) error {
	return o.repo.MarkPublished(ctx, o.db, ids)
}
