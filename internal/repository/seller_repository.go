package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jigardave8/icitizen-market/internal/marketplace"
	"github.com/jigardave8/icitizen-market/internal/models"
)

// SellerRepository is the Postgres-backed SellerStore.
type SellerRepository struct {
	DB *sqlx.DB
}

func NewSellerRepository(db *sqlx.DB) *SellerRepository {
	return &SellerRepository{DB: db}
}

func (r *SellerRepository) Create(ctx context.Context, s *models.Seller) error {
	_, err := r.DB.NamedExecContext(ctx, `
        INSERT INTO sellers (id, name, reputation, joined_at)
        VALUES (:id, :name, :reputation, :joined_at)
    `, s)
	if err != nil {
		return fmt.Errorf("SellerRepository.Create: %w", err)
	}
	return nil
}

func (r *SellerRepository) Get(ctx context.Context, id string) (*models.Seller, error) {
	var s models.Seller
	err := r.DB.GetContext(ctx, &s, `SELECT * FROM sellers WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, marketplace.ErrSellerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("SellerRepository.Get: %w", err)
	}
	return &s, nil
}
