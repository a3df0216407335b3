package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/doInfinitely/deliverycore/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// PostgresOrderRepository implements OrderRepository, following the
// teacher's postgres_order_repository.go shape: optimistic locking via a
// version column on Update, pessimistic row locking for GetByIDForUpdate.
type PostgresOrderRepository struct {
	logger zerolog.Logger
}

func NewPostgresOrderRepository(logger zerolog.Logger) *PostgresOrderRepository {
	return &PostgresOrderRepository{logger: logger}
}

func (r *PostgresOrderRepository) Create(ctx context.Context, tx pgx.Tx, o *models.Order) error {
	if o.ID == "" {
		o.ID = models.NewOrderID()
	}
	if o.Version == 0 {
		o.Version = 1
	}
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("order repo: marshal items: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (
			id, customer_id, store_id, address_id, status, payment_status, disclosure_version,
			items_json, subtotal_cents, tax_cents, fees_cents, tip_cents, total_cents,
			version, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14, now())
	`, o.ID, o.CustomerID, o.StoreID, o.AddressID, string(o.Status), string(o.PaymentStatus), o.DisclosureVer,
		itemsJSON, o.SubtotalCents, o.TaxCents, o.FeesCents, o.TipCents, o.TotalCents, o.Version)
	if err != nil {
		return fmt.Errorf("order repo: create: %w", err)
	}
	return nil
}

func (r *PostgresOrderRepository) GetByID(ctx context.Context, tx pgx.Tx, id string) (*models.Order, error) {
	row := tx.QueryRow(ctx, baseOrderSelect+" WHERE id = $1", id)
	return scanOrder(row)
}

func (r *PostgresOrderRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id string) (*models.Order, error) {
	row := tx.QueryRow(ctx, baseOrderSelect+" WHERE id = $1 FOR UPDATE", id)
	return scanOrder(row)
}

func (r *PostgresOrderRepository) Update(ctx context.Context, tx pgx.Tx, o *models.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("order repo: marshal items: %w", err)
	}

	currentVersion := o.Version
	newVersion := currentVersion + 1

	tag, err := tx.Exec(ctx, `
		UPDATE orders SET
			status = $1, payment_status = $2, items_json = $3,
			subtotal_cents = $4, tax_cents = $5, fees_cents = $6, tip_cents = $7, total_cents = $8,
			version = $9
		WHERE id = $10 AND version = $11
	`, string(o.Status), string(o.PaymentStatus), itemsJSON,
		o.SubtotalCents, o.TaxCents, o.FeesCents, o.TipCents, o.TotalCents,
		newVersion, o.ID, currentVersion)
	if err != nil {
		return fmt.Errorf("order repo: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrOptimisticLock
	}
	o.Version = newVersion
	return nil
}

func (r *PostgresOrderRepository) GetByCustomerID(ctx context.Context, tx pgx.Tx, customerID string, limit, offset int) ([]*models.Order, error) {
	rows, err := tx.Query(ctx, baseOrderSelect+" WHERE customer_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3", customerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("order repo: get by customer: %w", err)
	}
	defer rows.Close()

	var out []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListByStatus returns every order in one of the given statuses, used by
// the dispatch snapshot builder to find dispatchable jobs.
func (r *PostgresOrderRepository) ListByStatus(ctx context.Context, tx pgx.Tx, statuses []models.OrderStatus) ([]*models.Order, error) {
	strs := make([]string, len(statuses))
	for i, s := range statuses {
		strs[i] = string(s)
	}
	rows, err := tx.Query(ctx, baseOrderSelect+" WHERE status = ANY($1)", strs)
	if err != nil {
		return nil, fmt.Errorf("order repo: list by status: %w", err)
	}
	defer rows.Close()

	var out []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

const baseOrderSelect = `
	SELECT id, customer_id, store_id, address_id, status, payment_status, disclosure_version,
	       items_json, subtotal_cents, tax_cents, fees_cents, tip_cents, total_cents,
	       version, created_at
	FROM orders
`

type orderRowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(s orderRowScanner) (*models.Order, error) {
	o := &models.Order{}
	var status, paymentStatus string
	var itemsJSON []byte

	err := s.Scan(&o.ID, &o.CustomerID, &o.StoreID, &o.AddressID, &status, &paymentStatus, &o.DisclosureVer,
		&itemsJSON, &o.SubtotalCents, &o.TaxCents, &o.FeesCents, &o.TipCents, &o.TotalCents,
		&o.Version, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("order repo: scan: %w", err)
	}

	o.Status = models.OrderStatus(status)
	o.PaymentStatus = models.PaymentStatus(paymentStatus)
	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
			return nil, fmt.Errorf("order repo: unmarshal items: %w", err)
		}
	}
	return o, nil
}
