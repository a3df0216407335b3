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

type PostgresOfferLogRepository struct {
	logger zerolog.Logger
}

func NewPostgresOfferLogRepository(logger zerolog.Logger) *PostgresOfferLogRepository {
	return &PostgresOfferLogRepository{logger: logger}
}

func (r *PostgresOfferLogRepository) Create(ctx context.Context, tx pgx.Tx, l *models.OfferLog) error {
	if l.ID == "" {
		l.ID = models.NewOfferLogID()
	}
	featuresJSON, err := json.Marshal(l.Features)
	if err != nil {
		return fmt.Errorf("offerlog repo: marshal features: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO offer_logs (id, task_id, order_id, driver_id, created_at, features_json)
		VALUES ($1,$2,$3,$4, now(), $5)
	`, l.ID, l.TaskID, l.OrderID, l.DriverID, featuresJSON)
	if err != nil {
		return fmt.Errorf("offerlog repo: create: %w", err)
	}
	return nil
}

func (r *PostgresOfferLogRepository) LatestByTaskID(ctx context.Context, tx pgx.Tx, taskID string) (*models.OfferLog, error) {
	row := tx.QueryRow(ctx, `
		SELECT id, task_id, order_id, driver_id, created_at, features_json, outcome, outcome_ms, response_latency_ms
		FROM offer_logs
		WHERE task_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, taskID)

	l := &models.OfferLog{}
	var featuresJSON []byte
	var outcome *string

	err := row.Scan(&l.ID, &l.TaskID, &l.OrderID, &l.DriverID, &l.CreatedAt, &featuresJSON, &outcome, &l.OutcomeMS, &l.ResponseLatencyMS)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("offerlog repo: latest by task: %w", err)
	}
	if outcome != nil {
		oc := models.OfferOutcome(*outcome)
		l.Outcome = &oc
	}
	if len(featuresJSON) > 0 {
		if err := json.Unmarshal(featuresJSON, &l.Features); err != nil {
			return nil, fmt.Errorf("offerlog repo: unmarshal features: %w", err)
		}
	}
	return l, nil
}

func (r *PostgresOfferLogRepository) SetOutcome(ctx context.Context, tx pgx.Tx, offerLogID string, outcome models.OfferOutcome, outcomeMS int64, responseLatencyMS *int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE offer_logs SET outcome = $1, outcome_ms = $2, response_latency_ms = $3
		WHERE id = $4
	`, string(outcome), outcomeMS, responseLatencyMS, offerLogID)
	if err != nil {
		return fmt.Errorf("offerlog repo: set outcome: %w", err)
	}
	return nil
}
