package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/doInfinitely/deliverycore/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// PostgresOutboxRepository implements OutboxRepository, ported from the
// teacher's outbox_repository.go and repointed at dossier events instead of
// order-book fills.
type PostgresOutboxRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func NewPostgresOutboxRepository(pool *pgxpool.Pool, logger zerolog.Logger) *PostgresOutboxRepository {
	return &PostgresOutboxRepository{pool: pool, logger: logger}
}

func (r *PostgresOutboxRepository) Create(ctx context.Context, tx pgx.Tx, e *models.OutboxEvent) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.MaxRetries == 0 {
		e.MaxRetries = 5
	}
	payloadJSON, err := json.Marshal(e.EventPayload)
	if err != nil {
		return fmt.Errorf("outbox repo: marshal payload: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_events (id, aggregate_id, aggregate_type, event_type, event_payload, created_at, retry_count, max_retries)
		VALUES ($1,$2,$3,$4,$5, now(), 0, $6)
	`, e.ID, e.AggregateID, e.AggregateType, e.EventType, payloadJSON, e.MaxRetries)
	if err != nil {
		return fmt.Errorf("outbox repo: create: %w", err)
	}
	return nil
}

func (r *PostgresOutboxRepository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*models.OutboxEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, aggregate_id, aggregate_type, event_type, event_payload, created_at, processed_at, retry_count, max_retries, last_error
		FROM outbox_events
		WHERE processed_at IS NULL AND retry_count < max_retries
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("outbox repo: get unprocessed: %w", err)
	}
	defer rows.Close()

	var out []*models.OutboxEvent
	for rows.Next() {
		e := &models.OutboxEvent{}
		var payloadJSON []byte
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.AggregateType, &e.EventType, &payloadJSON,
			&e.CreatedAt, &e.ProcessedAt, &e.RetryCount, &e.MaxRetries, &e.LastError); err != nil {
			return nil, fmt.Errorf("outbox repo: scan: %w", err)
		}
		if len(payloadJSON) > 0 {
			if err := json.Unmarshal(payloadJSON, &e.EventPayload); err != nil {
				return nil, fmt.Errorf("outbox repo: unmarshal payload: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PostgresOutboxRepository) MarkProcessed(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE outbox_events SET processed_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("outbox repo: mark processed: %w", err)
	}
	return nil
}

func (r *PostgresOutboxRepository) IncrementRetryCount(ctx context.Context, id string, lastErr string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE outbox_events SET retry_count = retry_count + 1, last_error = $1 WHERE id = $2
	`, lastErr, id)
	if err != nil {
		return fmt.Errorf("outbox repo: increment retry: %w", err)
	}
	return nil
}
