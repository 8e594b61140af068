package models

import "time"

// Listing represents a marketplace item: fixed-price, trade, or auctioned.
type Listing struct {
	ID              string     `db:"id" json:"id"`
	SellerID        string     `db:"seller_id" json:"seller_id"`
	Title           string     `db:"title" json:"title"`
	Description     string     `db:"description" json:"description"`
	Category        string     `db:"category" json:"category"`
	Location        string     `db:"location" json:"location"`
	Price           *float64   `db:"price" json:"price,omitempty"`
	CurrentBid      float64    `db:"current_bid" json:"current_bid"`
	HighestBidderID string     `db:"highest_bidder_id" json:"highest_bidder_id,omitempty"`
	Status          string     `db:"status" json:"status"`
	AuctionStart    *time.Time `db:"auction_start" json:"auction_start,omitempty"`
	AuctionEnd      *time.Time `db:"auction_end" json:"auction_end,omitempty"`
	BuyerID         string     `db:"buyer_id" json:"buyer_id,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// Listing status constants
const (
	StatusAvailable = "available"
	StatusAuction   = "auction"
	StatusSold      = "sold"
	StatusClosed    = "closed"
)

// Terminal reports whether no further transitions are possible from the status.
func Terminal(status string) bool {
	return status == StatusSold || status == StatusClosed
}

// HasAuctionWindow reports whether both ends of the auction window are set.
func (l *Listing) HasAuctionWindow() bool {
	return l.AuctionStart != nil && l.AuctionEnd != nil
}

// FloorPrice is the minimum a first bid must exceed: the listed price,
// or zero for pure trade offers.
func (l *Listing) FloorPrice() float64 {
	if l.Price != nil {
		return *l.Price
	}
	return 0
}

// CreateListingRequest represents the incoming listing creation request.
type CreateListingRequest struct {
	SellerID     string     `json:"seller_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Category     string     `json:"category"`
	Location     string     `json:"location"`
	Price        *float64   `json:"price,omitempty"`
	AuctionStart *time.Time `json:"auction_start,omitempty"`
	AuctionEnd   *time.Time `json:"auction_end,omitempty"`
}

// PurchaseRequest represents a buy-now request against an available listing.
type PurchaseRequest struct {
	BuyerID string `json:"buyer_id"`
}

// WithdrawRequest represents a seller withdrawing their own listing.
type WithdrawRequest struct {
	SellerID string `json:"seller_id"`
}
