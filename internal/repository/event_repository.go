package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jigardave8/icitizen-market/internal/models"
)

// EventRepository archives the accepted-bid event stream. Inserts are
// idempotent on event ID; JetStream delivers at least once.
type EventRepository struct {
	DB *sqlx.DB
}

func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{DB: db}
}

func (r *EventRepository) Insert(ctx context.Context, e *models.BidEvent) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO bid_events (event_id, listing_id, bid_id, bidder_id, amount, previous_bid, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO NOTHING
	`, e.EventID, e.ListingID, e.BidID, e.BidderID, e.Amount, e.PreviousBid, e.Timestamp)
	if err != nil {
		return fmt.Errorf("EventRepository.Insert: %w", err)
	}
	return nil
}
