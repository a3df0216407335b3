// Package messaging drains the transactional outbox onto Kafka, grounded on
// the teacher's internal/messaging/outbox_publisher.go and repointed at
// dossier events instead of order-book fills: every dossier event written
// by internal/eventlog.PostgresEventLog gets a shadow row here, published
// best-effort to a single topic so a downstream notifier or analytics
// consumer can subscribe to order lifecycle activity without sitting in the
// request's critical path.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/doInfinitely/deliverycore/internal/models"
	"github.com/doInfinitely/deliverycore/internal/repository"
)

// OutboxPublisher polls the outbox table and publishes pending events to
// Kafka, marking each processed or incrementing its retry count on failure.
type OutboxPublisher struct {
	outboxRepo    repository.OutboxRepository
	kafkaProducer sarama.SyncProducer
	logger        zerolog.Logger
	pollInterval  time.Duration
	batchSize     int
	topic         string
}

// NewOutboxPublisher builds a publisher that ships every outbox row to a
// single dossier-events topic — unlike the teacher's per-event-type
// topicMap, this domain has one event stream, not several order-book
// channels, so one topic covers it.
func NewOutboxPublisher(
	outboxRepo repository.OutboxRepository,
	kafkaProducer sarama.SyncProducer,
	topic string,
	logger zerolog.Logger,
) *OutboxPublisher {
	if topic == "" {
		topic = "dossier.events"
	}
	return &OutboxPublisher{
		outboxRepo:    outboxRepo,
		kafkaProducer: kafkaProducer,
		logger:        logger.With().Str("component", "outbox_publisher").Logger(),
		pollInterval:  200 * time.Millisecond,
		batchSize:     100,
		topic:         topic,
	}
}

// Start begins polling for outbox events; it blocks until ctx is canceled.
func (p *OutboxPublisher) Start(ctx context.Context) {
	p.logger.Info().Msg("outbox publisher started")
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.publishPending(ctx)
		case <-ctx.Done():
			p.logger.Info().Msg("outbox publisher stopping")
			return
		}
	}
}

func (p *OutboxPublisher) publishPending(ctx context.Context) {
	events, err := p.outboxRepo.GetUnprocessedEvents(ctx, p.batchSize)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to get unprocessed events")
		return
	}
	if len(events) == 0 {
		return
	}

	for _, event := range events {
		if err := p.publishEvent(event); err != nil {
			p.logger.Error().
				Err(err).
				Str("event_id", event.ID).
				Str("event_type", event.EventType).
				Msg("failed to publish event")

			if err := p.outboxRepo.IncrementRetryCount(ctx, event.ID, err.Error()); err != nil {
				p.logger.Error().Err(err).Msg("failed to increment retry count")
			}
			continue
		}
		if err := p.outboxRepo.MarkProcessed(ctx, event.ID); err != nil {
			p.logger.Error().Err(err).Msg("failed to mark event as processed")
		}
	}
}

func (p *OutboxPublisher) publishEvent(event *models.OutboxEvent) error {
	payload, err := json.Marshal(event.EventPayload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.AggregateID),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.EventType)},
			{Key: []byte("aggregate_type"), Value: []byte(event.AggregateType)},
		},
	}

	partition, offset, err := p.kafkaProducer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("send to kafka: %w", err)
	}

	p.logger.Debug().
		Str("event_type", event.EventType).
		Str("topic", p.topic).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("published dossier event to kafka")

	return nil
}
