package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doInfinitely/deliverycore/internal/models"
	"github.com/doInfinitely/deliverycore/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// PostgresEventLog persists the dossier to an order_events table. Every
// method takes an explicit pgx.Tx, the same convention the teacher's
// repositories use — the caller owns the transaction boundary, this type
// never begins or commits one.
//
// When outbox is non-nil, every Append also inserts a shadow OutboxEvent in
// the same transaction — the teacher's transactional-outbox pattern
// (internal/messaging/outbox_publisher.go), repointed at dossier events so a
// downstream consumer can subscribe to order lifecycle activity without
// being in the hot path of the request.
type PostgresEventLog struct {
	logger zerolog.Logger
	outbox repository.OutboxRepository
}

func NewPostgresEventLog(logger zerolog.Logger, outbox repository.OutboxRepository) *PostgresEventLog {
	return &PostgresEventLog{logger: logger, outbox: outbox}
}

// Append locks the order's event chain by taking the parent order's row lock
// with SELECT ... FOR UPDATE (a re-lock when the caller already holds it
// through GetByIDForUpdate), so concurrent appends to one order run one at a
// time, then reads the latest hash_self and inserts one new row.
func (l *PostgresEventLog) Append(ctx context.Context, tx pgx.Tx, orderID string, actorType models.ActorType, actorID, eventType string, payload map[string]interface{}) (*models.OrderEvent, error) {
	if _, err := tx.Exec(ctx, `SELECT 1 FROM orders WHERE id = $1 FOR UPDATE`, orderID); err != nil {
		return nil, fmt.Errorf("eventlog: lock order: %w", err)
	}

	var prevHash *string
	row := tx.QueryRow(ctx, `
		SELECT hash_self FROM order_events
		WHERE order_id = $1
		ORDER BY ts DESC
		LIMIT 1
	`, orderID)
	if err := row.Scan(&prevHash); err != nil && err != pgx.ErrNoRows {
		return nil, fmt.Errorf("eventlog: query latest hash: %w", err)
	}

	evt, err := BuildEvent(orderID, actorType, actorID, eventType, payload, prevHash, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("eventlog: build event: %w", err)
	}

	payloadJSON, err := json.Marshal(evt.Payload)
	if err != nil {
		return nil, fmt.Errorf("eventlog: marshal payload: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_events (id, order_id, ts, actor_type, actor_id, event_type, payload, hash_prev, hash_self)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, evt.ID, evt.OrderID, evt.TS, string(evt.ActorType), evt.ActorID, evt.EventType, payloadJSON, evt.HashPrev, evt.HashSelf)
	if err != nil {
		return nil, fmt.Errorf("eventlog: insert event: %w", err)
	}

	if l.outbox != nil {
		outboxEvt := &models.OutboxEvent{
			AggregateID:   orderID,
			AggregateType: models.AggregateTypeOrder,
			EventType:     eventType,
			EventPayload:  evt.Payload,
		}
		if err := l.outbox.Create(ctx, tx, outboxEvt); err != nil {
			return nil, fmt.Errorf("eventlog: insert outbox shadow: %w", err)
		}
	}

	l.logger.Debug().Str("order_id", orderID).Str("event_type", eventType).Str("hash_self", evt.HashSelf).Msg("dossier event appended")
	return evt, nil
}

func (l *PostgresEventLog) List(ctx context.Context, tx pgx.Tx, orderID string) ([]*models.OrderEvent, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, order_id, ts, actor_type, actor_id, event_type, payload, hash_prev, hash_self
		FROM order_events
		WHERE order_id = $1
		ORDER BY ts ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("eventlog: list: %w", err)
	}
	defer rows.Close()

	var events []*models.OrderEvent
	for rows.Next() {
		evt, payloadRaw, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payloadRaw, &evt.Payload); err != nil {
			return nil, fmt.Errorf("eventlog: unmarshal payload: %w", err)
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

func (l *PostgresEventLog) LatestOfType(ctx context.Context, tx pgx.Tx, orderID, eventType string) (*models.OrderEvent, error) {
	row := tx.QueryRow(ctx, `
		SELECT id, order_id, ts, actor_type, actor_id, event_type, payload, hash_prev, hash_self
		FROM order_events
		WHERE order_id = $1 AND event_type = $2
		ORDER BY ts DESC
		LIMIT 1
	`, orderID, eventType)

	evt, payloadRaw, err := scanEventRow(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("eventlog: latest of type: %w", err)
	}
	if err := json.Unmarshal(payloadRaw, &evt.Payload); err != nil {
		return nil, fmt.Errorf("eventlog: unmarshal payload: %w", err)
	}
	return evt, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(rows pgx.Rows) (*models.OrderEvent, []byte, error) {
	return scanEventRow(rows)
}

func scanEventRow(s rowScanner) (*models.OrderEvent, []byte, error) {
	evt := &models.OrderEvent{}
	var actorType string
	var payloadRaw []byte
	err := s.Scan(&evt.ID, &evt.OrderID, &evt.TS, &actorType, &evt.ActorID, &evt.EventType, &payloadRaw, &evt.HashPrev, &evt.HashSelf)
	if err != nil {
		return nil, nil, err
	}
	evt.ActorType = models.ActorType(actorType)
	return evt, payloadRaw, nil
}
