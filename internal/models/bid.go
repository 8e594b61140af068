package models

import "time"

// Bid represents a single accepted bid on a listing. Rejected bids are
// never recorded; the ledger holds accepted bids only, in append order.
type Bid struct {
	ID        string    `db:"id" json:"id"`
	ListingID string    `db:"listing_id" json:"listing_id"`
	BidderID  string    `db:"bidder_id" json:"bidder_id"`
	Amount    float64   `db:"amount" json:"amount"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
}

// BidRequest represents the incoming bid request from the API.
type BidRequest struct {
	BidderID string  `json:"bidder_id"`
	Amount   float64 `json:"amount"`
}

// BidResponse represents the API response after placing a bid.
type BidResponse struct {
	Success    bool    `json:"success"`
	Message    string  `json:"message"`
	Reason     string  `json:"reason,omitempty"`
	Bid        *Bid    `json:"bid,omitempty"`
	CurrentBid float64 `json:"current_bid"`
	YourBid    float64 `json:"your_bid"`
	IsHighest  bool    `json:"is_highest"`
	EventID    string  `json:"event_id,omitempty"`
}

// BidEvent is published when a bid is accepted. It is sent to:
// 1. Redis Pub/Sub (for real-time WebSocket broadcast)
// 2. NATS JetStream (for archival to PostgreSQL)
type BidEvent struct {
	EventID     string    `db:"event_id" json:"event_id"`
	ListingID   string    `db:"listing_id" json:"listing_id"`
	BidID       string    `db:"bid_id" json:"bid_id"`
	BidderID    string    `db:"bidder_id" json:"bidder_id"`
	Amount      float64   `db:"amount" json:"amount"`
	PreviousBid float64   `db:"previous_bid" json:"previous_bid"`
	Timestamp   time.Time `db:"timestamp" json:"timestamp"`
}

// ListingEvent is published when a listing changes status (sold, closed).
// Broadcast only; the archival pipeline carries bid events.
type ListingEvent struct {
	EventID   string    `json:"event_id"`
	ListingID string    `json:"listing_id"`
	Status    string    `json:"status"`
	BuyerID   string    `json:"buyer_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
