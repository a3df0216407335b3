package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/doInfinitely/deliverycore/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// PostgresStore implements Store against an idempotency_keys table,
// upserting via ON CONFLICT exactly the way the teacher's
// PostgresIdempotencyRepository does.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func NewPostgresStore(pool *pgxpool.Pool, logger zerolog.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: logger}
}

func (s *PostgresStore) Check(ctx context.Context, tx pgx.Tx, key, route, requestHash string) (*models.IdempotencyRecord, bool, error) {
	row := tx.QueryRow(ctx, `
		SELECT key, route, request_hash, status_code, response_json, created_at, expires_at
		FROM idempotency_keys
		WHERE key = $1 AND route = $2
	`, key, route)

	rec := &models.IdempotencyRecord{}
	err := row.Scan(&rec.Key, &rec.Route, &rec.RequestHash, &rec.StatusCode, &rec.ResponseJSON, &rec.CreatedAt, &rec.ExpiresAt)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("idempotency: check: %w", err)
	}

	if rec.RequestHash != requestHash {
		return nil, false, models.ErrIdempotencyMismatch
	}
	return rec, true, nil
}

func (s *PostgresStore) Store(ctx context.Context, tx pgx.Tx, key, route, requestHash string, statusCode int, responseJSON []byte, ttl time.Duration) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO idempotency_keys (key, route, request_hash, status_code, response_json, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, now(), now() + $6::interval)
		ON CONFLICT (key, route) DO UPDATE SET
			request_hash = EXCLUDED.request_hash,
			status_code = EXCLUDED.status_code,
			response_json = EXCLUDED.response_json,
			expires_at = EXCLUDED.expires_at
	`, key, route, requestHash, statusCode, responseJSON, fmt.Sprintf("%d seconds", int(ttl.Seconds())))
	if err != nil {
		return fmt.Errorf("idempotency: store: %w", err)
	}
	return nil
}

func (s *PostgresStore) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("idempotency: cleanup expired: %w", err)
	}
	return tag.RowsAffected(), nil
}
