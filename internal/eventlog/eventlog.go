// Package eventlog implements the order dossier: an append-only,
// hash-chained sequence of events per order. It is grounded on
// packages/dossier/writer.py.
package eventlog

import (
	"context"
	"time"

	"github.com/doInfinitely/deliverycore/internal/canon"
	"github.com/doInfinitely/deliverycore/internal/models"
	"github.com/jackc/pgx/v5"
)

// EventLog appends and reads an order's dossier.
type EventLog interface {
	// Append writes one event, computing hash_prev from the most recent
	// event for this order (or nil if this is the first) and hash_self over
	// the full event including its own id, inside tx. Callers always run
	// this within the same transaction as the state/model mutation the
	// event describes, so a rollback never leaves an orphaned event.
	Append(ctx context.Context, tx pgx.Tx, orderID string, actorType models.ActorType, actorID, eventType string, payload map[string]interface{}) (*models.OrderEvent, error)

	// List returns every event for an order in chronological order.
	List(ctx context.Context, tx pgx.Tx, orderID string) ([]*models.OrderEvent, error)

	// LatestOfType finds the most recent event of the given type for an
	// order, or nil if none exists — used by deliver_confirm to verify a
	// DOORSTEP_ID_CHECK_PASSED event exists before allowing delivery.
	LatestOfType(ctx context.Context, tx pgx.Tx, orderID, eventType string) (*models.OrderEvent, error)
}

// BuildEvent computes hash_prev/hash_self for a new event given the previous
// event's hash (nil if this is the first in the chain). It is exported
// separately from the Postgres implementation so it can be unit tested
// without a database and reused by anything that needs to verify a chain
// offline (e.g. a dossier integrity checker).
func BuildEvent(orderID string, actorType models.ActorType, actorID, eventType string, payload map[string]interface{}, hashPrev *string, ts time.Time) (*models.OrderEvent, error) {
	id := models.NewEventID()

	if payload == nil {
		payload = map[string]interface{}{}
	}

	toHash := map[string]interface{}{
		"order_id":   orderID,
		"actor_type": string(actorType),
		"actor_id":   actorID,
		"event_type": eventType,
		"payload":    payload,
		"hash_prev":  hashPrevValue(hashPrev),
		"id":         id,
	}

	hashSelf, err := canon.HashJSON(toHash)
	if err != nil {
		return nil, err
	}

	return &models.OrderEvent{
		ID:        id,
		OrderID:   orderID,
		TS:        ts,
		ActorType: actorType,
		ActorID:   actorID,
		EventType: eventType,
		Payload:   payload,
		HashPrev:  hashPrev,
		HashSelf:  hashSelf,
	}, nil
}

func hashPrevValue(hashPrev *string) interface{} {
	if hashPrev == nil {
		return nil
	}
	return *hashPrev
}
