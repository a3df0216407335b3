package models

import "time"

// OutboxEvent is a transactional-outbox row written in the same database
// transaction as the dossier event it shadows, then drained asynchronously
// onto Kafka by internal/messaging. This is ambient infrastructure the
// original Python system has no equivalent of — it is the teacher's pattern
// (internal/messaging/outbox_publisher.go) repointed at dossier events
// instead of order-book fills, so a notifier or analytics consumer can
// subscribe to order lifecycle activity without being in the hot path of a
// customer request.
type OutboxEvent struct {
	ID            string
	AggregateID   string // order_id
	AggregateType string
	EventType     string
	EventPayload  map[string]interface{}
	CreatedAt     time.Time
	ProcessedAt   *time.Time
	RetryCount    int
	MaxRetries    int
	LastError     *string
}

const AggregateTypeOrder = "order"

func (e *OutboxEvent) IsProcessed() bool { return e.ProcessedAt != nil }
func (e *OutboxEvent) CanRetry() bool    { return e.RetryCount < e.MaxRetries }
