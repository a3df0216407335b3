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

type PostgresTaskRepository struct {
	logger zerolog.Logger
}

func NewPostgresTaskRepository(logger zerolog.Logger) *PostgresTaskRepository {
	return &PostgresTaskRepository{logger: logger}
}

const baseTaskSelect = `
	SELECT id, order_id, driver_id, status, offered_to_driver_id, offer_expires_at, route_json, created_at
	FROM delivery_tasks
`

func (r *PostgresTaskRepository) Create(ctx context.Context, tx pgx.Tx, t *models.DeliveryTask) error {
	if t.ID == "" {
		t.ID = models.NewTaskID()
	}
	routeJSON, err := json.Marshal(t.Route)
	if err != nil {
		return fmt.Errorf("task repo: marshal route: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO delivery_tasks (id, order_id, driver_id, status, offered_to_driver_id, offer_expires_at, route_json, created_at)
		VALUES ($1,$2,NULLIF($3,''),$4,NULLIF($5,''),$6,$7, now())
	`, t.ID, t.OrderID, t.DriverID, string(t.Status), t.OfferedToDriverID, t.OfferExpiresAt, routeJSON)
	if err != nil {
		return fmt.Errorf("task repo: create: %w", err)
	}
	return nil
}

func (r *PostgresTaskRepository) GetByID(ctx context.Context, tx pgx.Tx, id string) (*models.DeliveryTask, error) {
	row := tx.QueryRow(ctx, baseTaskSelect+" WHERE id = $1", id)
	return scanTask(row)
}

func (r *PostgresTaskRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id string) (*models.DeliveryTask, error) {
	row := tx.QueryRow(ctx, baseTaskSelect+" WHERE id = $1 FOR UPDATE", id)
	return scanTask(row)
}

func (r *PostgresTaskRepository) Update(ctx context.Context, tx pgx.Tx, t *models.DeliveryTask) error {
	routeJSON, err := json.Marshal(t.Route)
	if err != nil {
		return fmt.Errorf("task repo: marshal route: %w", err)
	}
	_, err = tx.Exec(ctx, `
		UPDATE delivery_tasks SET
			driver_id = NULLIF($1,''), status = $2, offered_to_driver_id = NULLIF($3,''),
			offer_expires_at = $4, route_json = $5
		WHERE id = $6
	`, t.DriverID, string(t.Status), t.OfferedToDriverID, t.OfferExpiresAt, routeJSON, t.ID)
	if err != nil {
		return fmt.Errorf("task repo: update: %w", err)
	}
	return nil
}

func (r *PostgresTaskRepository) GetActiveByOrderID(ctx context.Context, tx pgx.Tx, orderID string) (*models.DeliveryTask, error) {
	row := tx.QueryRow(ctx, baseTaskSelect+`
		WHERE order_id = $1 AND status NOT IN ('COMPLETED','FAILED','EXPIRED')
		ORDER BY created_at DESC LIMIT 1
	`, orderID)
	t, err := scanTask(row)
	if errors.Is(err, models.ErrTaskNotFound) {
		return nil, nil
	}
	return t, err
}

func (r *PostgresTaskRepository) ListActive(ctx context.Context, tx pgx.Tx) ([]*models.DeliveryTask, error) {
	rows, err := tx.Query(ctx, baseTaskSelect+`
		WHERE status IN ('OFFERED','ACCEPTED','IN_PROGRESS')
	`)
	if err != nil {
		return nil, fmt.Errorf("task repo: list active: %w", err)
	}
	defer rows.Close()

	var out []*models.DeliveryTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PostgresTaskRepository) GetExpiredOffers(ctx context.Context, tx pgx.Tx, nowMS int64, limit int) ([]*models.DeliveryTask, error) {
	rows, err := tx.Query(ctx, baseTaskSelect+`
		WHERE status = 'OFFERED' AND offer_expires_at < to_timestamp($1 / 1000.0)
		ORDER BY offer_expires_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, nowMS, limit)
	if err != nil {
		return nil, fmt.Errorf("task repo: get expired offers: %w", err)
	}
	defer rows.Close()

	var out []*models.DeliveryTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type taskRowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(s taskRowScanner) (*models.DeliveryTask, error) {
	t := &models.DeliveryTask{}
	var status string
	var driverID, offeredTo *string
	var routeJSON []byte

	err := s.Scan(&t.ID, &t.OrderID, &driverID, &status, &offeredTo, &t.OfferExpiresAt, &routeJSON, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("task repo: scan: %w", err)
	}

	if driverID != nil {
		t.DriverID = *driverID
	}
	if offeredTo != nil {
		t.OfferedToDriverID = *offeredTo
	}
	t.Status = models.TaskStatus(status)
	if len(routeJSON) > 0 {
		if err := json.Unmarshal(routeJSON, &t.Route); err != nil {
			return nil, fmt.Errorf("task repo: unmarshal route: %w", err)
		}
	}
	return t, nil
}
