package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jigardave8/icitizen-market/internal/models"
)

// BidRepository is the Postgres-backed BidLedger. The bids table is
// append-only; rows are never updated or deleted while the listing lives.
type BidRepository struct {
	DB *sqlx.DB
}

func NewBidRepository(db *sqlx.DB) *BidRepository {
	return &BidRepository{DB: db}
}

func (r *BidRepository) Append(ctx context.Context, b *models.Bid) error {
	_, err := r.DB.NamedExecContext(ctx, `
        INSERT INTO bids (id, listing_id, bidder_id, amount, timestamp)
        VALUES (:id, :listing_id, :bidder_id, :amount, :timestamp)
    `, b)
	if err != nil {
		return fmt.Errorf("BidRepository.Append: %w", err)
	}
	return nil
}

func (r *BidRepository) BidsFor(ctx context.Context, listingID string) ([]*models.Bid, error) {
	var bids []*models.Bid
	err := r.DB.SelectContext(ctx, &bids, `
		SELECT * FROM bids WHERE listing_id = $1 ORDER BY timestamp, amount
	`, listingID)
	if err != nil {
		return nil, fmt.Errorf("BidRepository.BidsFor: %w", err)
	}
	return bids, nil
}

func (r *BidRepository) Highest(ctx context.Context, listingID string) (*models.Bid, error) {
	var b models.Bid
	err := r.DB.GetContext(ctx, &b, `
		SELECT * FROM bids WHERE listing_id = $1 ORDER BY amount DESC LIMIT 1
	`, listingID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("BidRepository.Highest: %w", err)
	}
	return &b, nil
}
