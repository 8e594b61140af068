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

// ListingRepository is the Postgres-backed ListingStore.
type ListingRepository struct {
	DB *sqlx.DB
}

func NewListingRepository(db *sqlx.DB) *ListingRepository {
	return &ListingRepository{DB: db}
}

func (r *ListingRepository) Create(ctx context.Context, l *models.Listing) error {
	_, err := r.DB.NamedExecContext(ctx, `
        INSERT INTO listings
            (id, seller_id, title, description, category, location, price,
             current_bid, highest_bidder_id, status, auction_start, auction_end,
             buyer_id, created_at, updated_at)
        VALUES
            (:id, :seller_id, :title, :description, :category, :location, :price,
             :current_bid, :highest_bidder_id, :status, :auction_start, :auction_end,
             :buyer_id, :created_at, :updated_at)
    `, l)
	if err != nil {
		return fmt.Errorf("ListingRepository.Create: %w", err)
	}
	return nil
}

func (r *ListingRepository) Get(ctx context.Context, id string) (*models.Listing, error) {
	var l models.Listing
	err := r.DB.GetContext(ctx, &l, `SELECT * FROM listings WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, marketplace.ErrListingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ListingRepository.Get: %w", err)
	}
	return &l, nil
}

func (r *ListingRepository) UpdateCurrentBid(ctx context.Context, id string, amount float64, bidderID string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE listings SET current_bid = $1, highest_bidder_id = $2, updated_at = now()
		WHERE id = $3
	`, amount, bidderID, id)
	if err != nil {
		return fmt.Errorf("ListingRepository.UpdateCurrentBid: %w", err)
	}
	return checkFound(res)
}

func (r *ListingRepository) UpdateStatus(ctx context.Context, id, status, buyerID string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE listings SET status = $1,
			buyer_id = CASE WHEN $2 <> '' THEN $2 ELSE buyer_id END,
			updated_at = now()
		WHERE id = $3
	`, status, buyerID, id)
	if err != nil {
		return fmt.Errorf("ListingRepository.UpdateStatus: %w", err)
	}
	return checkFound(res)
}

func (r *ListingRepository) List(ctx context.Context) ([]*models.Listing, error) {
	var listings []*models.Listing
	err := r.DB.SelectContext(ctx, &listings, `SELECT * FROM listings ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("ListingRepository.List: %w", err)
	}
	return listings, nil
}

func checkFound(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return marketplace.ErrListingNotFound
	}
	return nil
}
