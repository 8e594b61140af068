package models

import "time"

// Seller owns listings. Immutable once created; there is no edit flow.
type Seller struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Reputation float64   `db:"reputation" json:"reputation"` // bounded 0.0-5.0
	JoinedAt   time.Time `db:"joined_at" json:"joined_at"`
}

// CreateSellerRequest represents the incoming seller registration request.
type CreateSellerRequest struct {
	Name       string  `json:"name"`
	Reputation float64 `json:"reputation"`
}
