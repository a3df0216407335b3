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

type PostgresDriverRepository struct {
	logger zerolog.Logger
}

func NewPostgresDriverRepository(logger zerolog.Logger) *PostgresDriverRepository {
	return &PostgresDriverRepository{logger: logger}
}

const baseDriverSelect = `
	SELECT id, status, lat, lng, zone_id, insurance_verified, registration_verified,
	       vehicle_verified, background_clear, metrics_json, created_at, updated_at
	FROM drivers
`

func (r *PostgresDriverRepository) GetByID(ctx context.Context, tx pgx.Tx, id string) (*models.Driver, error) {
	row := tx.QueryRow(ctx, baseDriverSelect+" WHERE id = $1", id)
	return scanDriver(row)
}

func (r *PostgresDriverRepository) Update(ctx context.Context, tx pgx.Tx, d *models.Driver) error {
	metricsJSON, err := json.Marshal(d.Metrics)
	if err != nil {
		return fmt.Errorf("driver repo: marshal metrics: %w", err)
	}
	_, err = tx.Exec(ctx, `
		UPDATE drivers SET status = $1, lat = $2, lng = $3, zone_id = $4, metrics_json = $5, updated_at = now()
		WHERE id = $6
	`, string(d.Status), d.Lat, d.Lng, d.ZoneID, metricsJSON, d.ID)
	if err != nil {
		return fmt.Errorf("driver repo: update: %w", err)
	}
	return nil
}

// ListIdle returns every driver whose status is IDLE, with no region filter,
// matching the original snapshot builder's "MVP: no region field -> include
// all" comment — the insurance/registration eligibility filter happens
// downstream in candidate generation (models.Driver.Eligible).
func (r *PostgresDriverRepository) ListIdle(ctx context.Context, tx pgx.Tx) ([]*models.Driver, error) {
	rows, err := tx.Query(ctx, baseDriverSelect+" WHERE status = 'IDLE'")
	if err != nil {
		return nil, fmt.Errorf("driver repo: list idle: %w", err)
	}
	defer rows.Close()

	var out []*models.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type driverRowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDriver(s driverRowScanner) (*models.Driver, error) {
	d := &models.Driver{}
	var status string
	var metricsJSON []byte

	err := s.Scan(&d.ID, &status, &d.Lat, &d.Lng, &d.ZoneID, &d.InsuranceVerified, &d.RegistrationVerified,
		&d.VehicleVerified, &d.BackgroundClear, &metricsJSON, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrDriverNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("driver repo: scan: %w", err)
	}
	d.Status = models.DriverStatus(status)
	if len(metricsJSON) > 0 {
		if err := json.Unmarshal(metricsJSON, &d.Metrics); err != nil {
			return nil, fmt.Errorf("driver repo: unmarshal metrics: %w", err)
		}
	}
	return d, nil
}
