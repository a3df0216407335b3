// Package repository holds the Postgres-backed persistence layer for
// orders, delivery tasks, drivers and offer logs, modeled on the teacher's
// internal/repository package (interface + pgx.Tx-per-method convention).
package repository

import (
	"context"

	"github.com/doInfinitely/deliverycore/internal/models"
	"github.com/jackc/pgx/v5"
)

// OrderRepository persists Order aggregates.
type OrderRepository interface {
	Create(ctx context.Context, tx pgx.Tx, order *models.Order) error
	GetByID(ctx context.Context, tx pgx.Tx, id string) (*models.Order, error)
	// GetByIDForUpdate locks the row with SELECT ... FOR UPDATE so the
	// caller can safely read-modify-write within the enclosing transaction.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id string) (*models.Order, error)
	// Update persists order using optimistic locking on Version; returns
	// models.ErrOptimisticLock if the row's version moved since it was read.
	Update(ctx context.Context, tx pgx.Tx, order *models.Order) error
	GetByCustomerID(ctx context.Context, tx pgx.Tx, customerID string, limit, offset int) ([]*models.Order, error)
	// ListByStatus returns every order currently in one of the given
	// statuses — the dispatch snapshot builder's source of dispatchable
	// jobs (PENDING_MERCHANT, MERCHANT_ACCEPTED, DISPATCHING).
	ListByStatus(ctx context.Context, tx pgx.Tx, statuses []models.OrderStatus) ([]*models.Order, error)
}

// TaskRepository persists DeliveryTask rows.
type TaskRepository interface {
	Create(ctx context.Context, tx pgx.Tx, task *models.DeliveryTask) error
	GetByID(ctx context.Context, tx pgx.Tx, id string) (*models.DeliveryTask, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id string) (*models.DeliveryTask, error)
	Update(ctx context.Context, tx pgx.Tx, task *models.DeliveryTask) error
	GetActiveByOrderID(ctx context.Context, tx pgx.Tx, orderID string) (*models.DeliveryTask, error)
	// ListActive returns every task currently OFFERED, ACCEPTED or
	// IN_PROGRESS — the dispatch snapshot's exclusion set: an order with one
	// of these must not be re-fed into candidate generation.
	ListActive(ctx context.Context, tx pgx.Tx) ([]*models.DeliveryTask, error)
	// GetExpiredOffers returns OFFERED tasks whose offer_expires_at is
	// before now, locking each with SELECT ... FOR UPDATE SKIP LOCKED so
	// concurrent sweepers shard the work instead of blocking on each other.
	GetExpiredOffers(ctx context.Context, tx pgx.Tx, now int64, limit int) ([]*models.DeliveryTask, error)
}

// DriverRepository persists Driver rows and answers candidate-generation
// queries.
type DriverRepository interface {
	GetByID(ctx context.Context, tx pgx.Tx, id string) (*models.Driver, error)
	Update(ctx context.Context, tx pgx.Tx, driver *models.Driver) error
	// ListIdle returns every currently-idle driver — the MVP dispatch
	// snapshot has no region filter (original_source: "MVP: no region field
	// -> include all"), so status is the only filter; eligibility is checked
	// later in candidate generation.
	ListIdle(ctx context.Context, tx pgx.Tx) ([]*models.Driver, error)
}

// OfferLogRepository persists OfferLog rows.
type OfferLogRepository interface {
	Create(ctx context.Context, tx pgx.Tx, log *models.OfferLog) error
	// LatestByTaskID finds the most recent offer log for a task, or nil.
	LatestByTaskID(ctx context.Context, tx pgx.Tx, taskID string) (*models.OfferLog, error)
	SetOutcome(ctx context.Context, tx pgx.Tx, offerLogID string, outcome models.OfferOutcome, outcomeMS int64, responseLatencyMS *int64) error
}

// CatalogRepository answers the read-only store/address/product lookups
// order creation and dispatch snapshotting need: pickup/drop coordinates and
// catalog pricing. Modeled as a single small interface rather than three
// separate ones since every implementation backs all three with the same
// connection pool and none of it is ever written through this path.
type CatalogRepository interface {
	GetStore(ctx context.Context, tx pgx.Tx, id string) (*models.Store, error)
	GetAddress(ctx context.Context, tx pgx.Tx, id string) (*models.Address, error)
	GetProduct(ctx context.Context, tx pgx.Tx, id string) (*models.Product, error)
}

// OutboxRepository persists domain events for asynchronous publication.
type OutboxRepository interface {
	Create(ctx context.Context, tx pgx.Tx, event *models.OutboxEvent) error
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*models.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id string) error
	IncrementRetryCount(ctx context.Context, id string, lastErr string) error
}
