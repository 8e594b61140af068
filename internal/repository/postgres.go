package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect opens a PostgreSQL connection pool and verifies it.
func Connect(connStr string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// InitSchema creates the necessary database tables.
func InitSchema(ctx context.Context, db *sqlx.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sellers (
		id VARCHAR(255) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		reputation DECIMAL(2, 1) NOT NULL DEFAULT 0,
		joined_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS listings (
		id VARCHAR(255) PRIMARY KEY,
		seller_id VARCHAR(255) NOT NULL REFERENCES sellers(id),
		title VARCHAR(255) NOT NULL,
		description TEXT,
		category VARCHAR(255),
		location VARCHAR(255),
		price DECIMAL(10, 2),
		current_bid DECIMAL(10, 2) DEFAULT 0,
		highest_bidder_id VARCHAR(255) NOT NULL DEFAULT '',
		status VARCHAR(50) NOT NULL DEFAULT 'available',
		auction_start TIMESTAMP,
		auction_end TIMESTAMP,
		buyer_id VARCHAR(255) NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS bids (
		id VARCHAR(255) PRIMARY KEY,
		listing_id VARCHAR(255) NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
		bidder_id VARCHAR(255) NOT NULL,
		amount DECIMAL(10, 2) NOT NULL,
		timestamp TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS bid_events (
		event_id VARCHAR(255) PRIMARY KEY,
		listing_id VARCHAR(255) NOT NULL,
		bid_id VARCHAR(255) NOT NULL,
		bidder_id VARCHAR(255) NOT NULL,
		amount DECIMAL(10, 2) NOT NULL,
		previous_bid DECIMAL(10, 2) NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		archived_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_bids_listing_id ON bids(listing_id);
	CREATE INDEX IF NOT EXISTS idx_bids_timestamp ON bids(timestamp);
	CREATE INDEX IF NOT EXISTS idx_bid_events_listing_id ON bid_events(listing_id);
	CREATE INDEX IF NOT EXISTS idx_listings_status ON listings(status);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
