// Package idempotency implements the at-most-once execution layer keyed by
// (Idempotency-Key, route, request_hash), grounded on
// packages/common/idempotency.py and the teacher's
// internal/repository/idempotency_repository.go.
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/doInfinitely/deliverycore/internal/canon"
	"github.com/doInfinitely/deliverycore/internal/models"
	"github.com/jackc/pgx/v5"
)

// DefaultTTL mirrors the 24h retention the teacher's StoreInTransaction call
// sites use.
const DefaultTTL = 24 * time.Hour

// Store is the (key, route, request_hash) -> stored response layer.
type Store interface {
	// Check looks up an existing record for key+route. If found and the
	// hash matches requestHash, returns (record, true, nil) — a replay. If
	// found with a different hash, returns (nil, false, ErrIdempotencyMismatch).
	// If not found, returns (nil, false, nil).
	Check(ctx context.Context, tx pgx.Tx, key, route, requestHash string) (*models.IdempotencyRecord, bool, error)

	// Store persists the computed response for key+route+requestHash within
	// tx, so it commits atomically with whatever compute() did.
	Store(ctx context.Context, tx pgx.Tx, key, route, requestHash string, statusCode int, responseJSON []byte, ttl time.Duration) error

	// CleanupExpired deletes rows past their TTL; called by a periodic
	// janitor, not on the request path.
	CleanupExpired(ctx context.Context) (int64, error)
}

// ComputeRequestHash canonicalizes requestData the same way the dossier
// hashes payloads, so two logically identical requests always hash equal
// regardless of Go map/struct field ordering.
func ComputeRequestHash(requestData interface{}) (string, error) {
	h, err := canon.HashJSON(requestData)
	if err != nil {
		return "", fmt.Errorf("idempotency: compute request hash: %w", err)
	}
	return h, nil
}

// ComputeFunc performs the side-effecting work an idempotent route guards,
// returning the HTTP-ish status code and JSON response body to cache.
type ComputeFunc func() (statusCode int, response interface{}, err error)

// GetOrSet implements packages/common/idempotency.py's get_or_set: replay a
// cached response if the key+route was already used with this exact request
// body, return models.ErrIdempotencyMismatch if reused with a different
// body, or run compute() and persist its result — all within tx, so a
// caller rolling back tx on error also rolls back the idempotency write.
func GetOrSet(ctx context.Context, store Store, tx pgx.Tx, key, route string, requestBody interface{}, compute ComputeFunc) (statusCode int, response []byte, replayed bool, err error) {
	requestHash, err := ComputeRequestHash(requestBody)
	if err != nil {
		return 0, nil, false, err
	}

	existing, hit, err := store.Check(ctx, tx, key, route, requestHash)
	if err != nil {
		return 0, nil, false, err
	}
	if hit {
		return existing.StatusCode, existing.ResponseJSON, true, nil
	}

	code, resp, err := compute()
	if err != nil {
		return 0, nil, false, err
	}

	respJSON, err := canon.Marshal(resp)
	if err != nil {
		return 0, nil, false, fmt.Errorf("idempotency: marshal response: %w", err)
	}

	if err := store.Store(ctx, tx, key, route, requestHash, code, respJSON, DefaultTTL); err != nil {
		return 0, nil, false, err
	}

	return code, respJSON, false, nil
}
