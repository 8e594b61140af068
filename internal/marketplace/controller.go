package marketplace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jigardave8/icitizen-market/internal/models"
)

// Controller is the only component permitted to change a listing's status
// or accept a bid. All mutations of a listing's current-bid/status pair go
// through a per-listing lock so that check-append-update runs atomically
// with respect to concurrent bids on the same listing.
type Controller struct {
	store   ListingStore
	ledger  BidLedger
	sellers SellerStore

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewController(store ListingStore, ledger BidLedger, sellers SellerStore) *Controller {
	return &Controller{
		store:   store,
		ledger:  ledger,
		sellers: sellers,
		locks:   make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex serializing mutations of one listing,
// creating it lazily.
func (c *Controller) lockFor(listingID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[listingID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[listingID] = l
	}
	return l
}

// CreateListingParams carries the attributes for a new listing. Price and
// the auction window are each optional, but at least one must be present,
// and the window must be either fully specified or fully absent.
type CreateListingParams struct {
	SellerID     string
	Title        string
	Description  string
	Category     string
	Location     string
	Price        *float64
	AuctionStart *time.Time
	AuctionEnd   *time.Time
}

// CreateListing validates params, assigns a fresh identifier, and stores
// the listing in available or auction status.
func (c *Controller) CreateListing(ctx context.Context, p CreateListingParams, now time.Time) (*models.Listing, error) {
	if p.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidListing)
	}
	if p.SellerID == "" {
		return nil, fmt.Errorf("%w: seller is required", ErrInvalidListing)
	}
	if _, err := c.sellers.Get(ctx, p.SellerID); err != nil {
		return nil, fmt.Errorf("seller %s: %w", p.SellerID, err)
	}
	if (p.AuctionStart == nil) != (p.AuctionEnd == nil) {
		return nil, fmt.Errorf("%w: auction window requires both start and end", ErrInvalidListing)
	}
	if p.Price == nil && p.AuctionStart == nil {
		return nil, fmt.Errorf("%w: either a price or an auction window is required", ErrInvalidListing)
	}
	if p.Price != nil && *p.Price < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidListing)
	}

	status := models.StatusAvailable
	if p.AuctionStart != nil {
		if !p.AuctionEnd.After(*p.AuctionStart) {
			return nil, fmt.Errorf("%w: auction end must be after start", ErrInvalidListing)
		}
		if !p.AuctionEnd.After(now) {
			return nil, fmt.Errorf("%w: auction end is already in the past", ErrInvalidListing)
		}
		status = models.StatusAuction
	}

	l := &models.Listing{
		ID:           uuid.New().String(),
		SellerID:     p.SellerID,
		Title:        p.Title,
		Description:  p.Description,
		Category:     p.Category,
		Location:     p.Location,
		Price:        p.Price,
		Status:       status,
		AuctionStart: p.AuctionStart,
		AuctionEnd:   p.AuctionEnd,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	l.CurrentBid = l.FloorPrice()

	if err := c.store.Create(ctx, l); err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}
	return l, nil
}

// GetListing returns the listing after lazy settlement: an auction whose
// end time has passed with at least one bid transitions to sold on read.
func (c *Controller) GetListing(ctx context.Context, listingID string, now time.Time) (*models.Listing, error) {
	lock := c.lockFor(listingID)
	lock.Lock()
	defer lock.Unlock()
	return c.settled(ctx, listingID, now)
}

// Listings returns every listing ordered by creation time, each after
// lazy settlement.
func (c *Controller) Listings(ctx context.Context, now time.Time) ([]*models.Listing, error) {
	all, err := c.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	out := make([]*models.Listing, 0, len(all))
	for _, l := range all {
		settled, err := c.GetListing(ctx, l.ID, now)
		if err != nil {
			if errors.Is(err, ErrListingNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, settled)
	}
	return out, nil
}

// Bids returns the chronological accepted-bid history for a listing.
func (c *Controller) Bids(ctx context.Context, listingID string) ([]*models.Bid, error) {
	if _, err := c.store.Get(ctx, listingID); err != nil {
		return nil, err
	}
	return c.ledger.BidsFor(ctx, listingID)
}

// PlaceBid validates a bid against the listing's state and, on success,
// appends it to the ledger and updates the listing's current bid as one
// logical transaction under the per-listing lock.
//
// Rejection order: listing_not_found, not_in_auction, auction_expired,
// insufficient_bid. A bid before the window opens rejects with
// not_in_auction; an expired auction rejects the bid even when the
// amount would otherwise have been accepted.
func (c *Controller) PlaceBid(ctx context.Context, listingID string, amount float64, bidderID string, now time.Time) (*models.Bid, error) {
	lock := c.lockFor(listingID)
	lock.Lock()
	defer lock.Unlock()

	l, err := c.settled(ctx, listingID, now)
	if err != nil {
		if errors.Is(err, ErrListingNotFound) {
			return nil, reject(ReasonListingNotFound, "listing %s does not exist", listingID)
		}
		return nil, err
	}

	if l.Status != models.StatusAuction || !l.HasAuctionWindow() {
		return nil, reject(ReasonNotInAuction, "listing %s is %s, not in auction", listingID, l.Status)
	}
	if now.Before(*l.AuctionStart) {
		return nil, reject(ReasonNotInAuction, "auction for listing %s opens at %s", listingID, l.AuctionStart.Format(time.RFC3339))
	}
	if !now.Before(*l.AuctionEnd) {
		return nil, reject(ReasonAuctionExpired, "auction for listing %s ended at %s", listingID, l.AuctionEnd.Format(time.RFC3339))
	}

	max, err := c.currentMax(ctx, l)
	if err != nil {
		return nil, err
	}
	if amount <= max {
		r := reject(ReasonInsufficientBid, "bid %.2f does not exceed current max %.2f", amount, max)
		r.CurrentMax = max
		return nil, r
	}

	bid := &models.Bid{
		ID:        uuid.New().String(),
		ListingID: listingID,
		BidderID:  bidderID,
		Amount:    amount,
		Timestamp: now,
	}
	if err := c.ledger.Append(ctx, bid); err != nil {
		return nil, fmt.Errorf("append bid: %w", err)
	}
	if err := c.store.UpdateCurrentBid(ctx, listingID, amount, bidderID); err != nil {
		return nil, fmt.Errorf("update current bid: %w", err)
	}
	return bid, nil
}

// PurchaseNow accepts a fixed-price purchase, transitioning the listing
// from available to sold.
func (c *Controller) PurchaseNow(ctx context.Context, listingID, buyerID string, now time.Time) (*models.Listing, error) {
	lock := c.lockFor(listingID)
	lock.Lock()
	defer lock.Unlock()

	l, err := c.settled(ctx, listingID, now)
	if err != nil {
		if errors.Is(err, ErrListingNotFound) {
			return nil, reject(ReasonListingNotFound, "listing %s does not exist", listingID)
		}
		return nil, err
	}
	if l.Status != models.StatusAvailable {
		return nil, reject(ReasonNotAvailable, "listing %s is %s", listingID, l.Status)
	}

	if err := c.store.UpdateStatus(ctx, listingID, models.StatusSold, buyerID); err != nil {
		return nil, fmt.Errorf("mark sold: %w", err)
	}
	return c.store.Get(ctx, listingID)
}

// Withdraw closes a listing at its owner's request. Terminal listings,
// including auctions already settled by the time of the call, reject with
// already_terminal.
func (c *Controller) Withdraw(ctx context.Context, listingID, sellerID string, now time.Time) (*models.Listing, error) {
	lock := c.lockFor(listingID)
	lock.Lock()
	defer lock.Unlock()

	l, err := c.settled(ctx, listingID, now)
	if err != nil {
		if errors.Is(err, ErrListingNotFound) {
			return nil, reject(ReasonListingNotFound, "listing %s does not exist", listingID)
		}
		return nil, err
	}
	if l.SellerID != sellerID {
		return nil, reject(ReasonNotOwner, "listing %s is not owned by %s", listingID, sellerID)
	}
	if models.Terminal(l.Status) {
		return nil, reject(ReasonAlreadyTerminal, "listing %s is already %s", listingID, l.Status)
	}

	if err := c.store.UpdateStatus(ctx, listingID, models.StatusClosed, ""); err != nil {
		return nil, fmt.Errorf("close listing: %w", err)
	}
	return c.store.Get(ctx, listingID)
}

// CreateSeller registers a seller. Reputation is clamped to [0, 5].
func (c *Controller) CreateSeller(ctx context.Context, name string, reputation float64, now time.Time) (*models.Seller, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: seller name is required", ErrInvalidListing)
	}
	if reputation < 0 {
		reputation = 0
	} else if reputation > 5 {
		reputation = 5
	}
	s := &models.Seller{
		ID:         uuid.New().String(),
		Name:       name,
		Reputation: reputation,
		JoinedAt:   now,
	}
	if err := c.sellers.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("create seller: %w", err)
	}
	return s, nil
}

// GetSeller returns a seller by id.
func (c *Controller) GetSeller(ctx context.Context, id string) (*models.Seller, error) {
	return c.sellers.Get(ctx, id)
}

// settled loads a listing and applies lazy auction settlement: once the
// end time has passed and at least one bid exists, the highest bidder wins
// and the listing becomes sold. With no bids the listing stays in auction
// status; every further bid rejects with auction_expired. Callers must
// hold the per-listing lock.
func (c *Controller) settled(ctx context.Context, listingID string, now time.Time) (*models.Listing, error) {
	l, err := c.store.Get(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if l.Status != models.StatusAuction || l.AuctionEnd == nil || now.Before(*l.AuctionEnd) {
		return l, nil
	}
	winner, err := c.ledger.Highest(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("settle listing %s: %w", listingID, err)
	}
	if winner == nil {
		return l, nil
	}
	if err := c.store.UpdateStatus(ctx, listingID, models.StatusSold, winner.BidderID); err != nil {
		return nil, fmt.Errorf("settle listing %s: %w", listingID, err)
	}
	return c.store.Get(ctx, listingID)
}

// currentMax is the highest accepted bid amount, or the floor price when
// no bids exist.
func (c *Controller) currentMax(ctx context.Context, l *models.Listing) (float64, error) {
	highest, err := c.ledger.Highest(ctx, l.ID)
	if err != nil {
		return 0, fmt.Errorf("current max for %s: %w", l.ID, err)
	}
	if highest == nil {
		return l.FloorPrice(), nil
	}
	return highest.Amount, nil
}
