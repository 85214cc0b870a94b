package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/safestake/registry/internal/domain"
	"github.com/safestake/registry/internal/guard"
	"github.com/safestake/registry/internal/metrics"
)

// OutboxSource reads pending outbox events and acknowledges published ones.
type OutboxSource interface {
	FetchUnpublished(ctx context.Context, limit int) ([]domain.OutboxRow, error)
	MarkPublished(ctx context.Context, ids []int64) error
}

// Publisher writes one message to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// OutboxPoller polls the event outbox and publishes events to Kafka, one
// circuit per topic.
type OutboxPoller struct {
	source      OutboxSource
	publisher   Publisher
	breaker     *guard.CircuitBreaker
	metrics     *metrics.Metrics
	logger      *slog.Logger
	interval    time.Duration
	batchSize   int
	topicPrefix string
}

// NewOutboxPoller creates a new outbox poller using the relay settings in cfg.
// m may be nil.
func NewOutboxPoller(source OutboxSource, publisher Publisher, cfg *Config, m *metrics.Metrics, logger *slog.Logger) *OutboxPoller {
	interval := cfg.OutboxPollInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	batch := cfg.OutboxBatchSize
	if batch <= 0 {
		batch = 100
	}
	return &OutboxPoller{
		source:      source,
		publisher:   publisher,
		breaker:     guard.NewCircuitBreaker(5, 30*time.Second),
		metrics:     m,
		logger:      logger,
		interval:    interval,
		batchSize:   batch,
		topicPrefix: cfg.KafkaTopicPrefix,
	}
}

// Run polls until ctx is cancelled.
func (p *OutboxPoller) Run(ctx context.Context) {
	p.logger.Info("outbox poller started", "interval", p.interval, "batch_size", p.batchSize)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("outbox poller stopped")
			return
		case <-ticker.C:
			if _, err := p.Poll(ctx); err != nil {
				p.logger.Error("outbox poll error", "error", err)
			}
		}
	}
}

// Start runs the poller in a goroutine.
func (p *OutboxPoller) Start(ctx context.Context) {
	go p.Run(ctx)
}

// Poll publishes one batch and returns how many events were acknowledged.
// Publishing stops at the first failure so per-identity order is kept.
func (p *OutboxPoller) Poll(ctx context.Context) (int, error) {
	events, err := p.source.FetchUnpublished(ctx, p.batchSize)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	published := make([]int64, 0, len(events))
	for _, e := range events {
		topic := TopicFor(p.topicPrefix, e.AggregateType, e.EventType)

		msg, err := EncodeEnvelope(e)
		if err != nil {
			p.logger.Error("encode outbox event failed", "event_id", e.EventID, "error", err)
			break
		}

		if res := p.breaker.Check(ctx, topic); !res.Allowed {
			p.logger.Warn("outbox publish skipped", "topic", topic, "circuit", p.breaker.State(topic).String(), "reason", res.Reason)
			break
		}

		if err := p.publisher.Publish(ctx, topic, []byte(e.PartitionKey), msg); err != nil {
			p.breaker.RecordFailure(topic)
			p.metrics.IncrementOutbox(e.EventType, false)
			p.logger.Error("kafka publish failed", "event_id", e.EventID, "topic", topic, "error", err)
			break
		}
		p.breaker.RecordSuccess(topic)
		p.metrics.IncrementOutbox(e.EventType, true)
		published = append(published, e.SeqID)
	}

	if err := p.source.MarkPublished(ctx, published); err != nil {
		return 0, fmt.Errorf("mark published: %w", err)
	}

	p.logger.Debug("outbox poll complete", "fetched", len(events), "published", len(published))
	return len(published), nil
}

// TopicFor maps an event to <prefix>.<aggregate>.<event>, dropping the
// event type's own "safestake." namespace.
func TopicFor(prefix string, agg domain.AggregateType, evt domain.EventType) string {
	name := strings.TrimPrefix(string(evt), "safestake.")
	if prefix == "" {
		return string(agg) + "." + name
	}
	return prefix + "." + string(agg) + "." + name
}

type envelope struct {
	EventID       uuid.UUID       `json:"event_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Headers       json.RawMessage `json:"headers,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// EncodeEnvelope renders the Kafka message value for an outbox row.
func EncodeEnvelope(e domain.OutboxRow) ([]byte, error) {
	return json.Marshal(envelope{
		EventID:       e.EventID,
		AggregateType: string(e.AggregateType),
		AggregateID:   e.AggregateID,
		EventType:     string(e.EventType),
		Headers:       e.Headers,
		Payload:       e.Payload,
		OccurredAt:    e.OccurredAt,
	})
}
