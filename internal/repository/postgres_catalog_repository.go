package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/doInfinitely/deliverycore/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// PostgresCatalogRepository serves the read-only store/address/product
// lookups create_order and the dispatch snapshot builder need.
type PostgresCatalogRepository struct {
	logger zerolog.Logger
}

func NewPostgresCatalogRepository(logger zerolog.Logger) *PostgresCatalogRepository {
	return &PostgresCatalogRepository{logger: logger}
}

func (r *PostgresCatalogRepository) GetStore(ctx context.Context, tx pgx.Tx, id string) (*models.Store, error) {
	s := &models.Store{}
	err := tx.QueryRow(ctx, `SELECT id, lat, lng FROM stores WHERE id = $1`, id).Scan(&s.ID, &s.Lat, &s.Lng)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("catalog repo: store %s: %w", id, models.ErrOrderNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog repo: get store: %w", err)
	}
	return s, nil
}

func (r *PostgresCatalogRepository) GetAddress(ctx context.Context, tx pgx.Tx, id string) (*models.Address, error) {
	a := &models.Address{}
	err := tx.QueryRow(ctx, `SELECT id, lat, lng FROM addresses WHERE id = $1`, id).Scan(&a.ID, &a.Lat, &a.Lng)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("catalog repo: address %s: %w", id, models.ErrOrderNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog repo: get address: %w", err)
	}
	return a, nil
}

func (r *PostgresCatalogRepository) GetProduct(ctx context.Context, tx pgx.Tx, id string) (*models.Product, error) {
	p := &models.Product{}
	err := tx.QueryRow(ctx, `SELECT id, name, price_cents, store_id FROM products WHERE id = $1`, id).Scan(&p.ID, &p.Name, &p.PriceCents, &p.StoreID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("catalog repo: product %s: %w", id, models.ErrProductNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog repo: get product: %w", err)
	}
	return p, nil
}
