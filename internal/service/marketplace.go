package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jigardave8/icitizen-market/internal/logger"
	"github.com/jigardave8/icitizen-market/internal/marketplace"
	"github.com/jigardave8/icitizen-market/internal/models"
)

// BidCache is the denormalized current-bid cache with event fanout,
// backed by Redis in production.
type BidCache interface {
	UpdateCurrentBid(ctx context.Context, listingID, bidderID string, amount float64) (bool, error)
	CurrentBid(ctx context.Context, listingID string) (float64, string, error)
	PublishEvent(ctx context.Context, listingID string, event interface{}) error
}

// EventPublisher streams accepted-bid events to the archival pipeline,
// backed by NATS JetStream in production.
type EventPublisher interface {
	PublishBidEvent(ctx context.Context, event *models.BidEvent) error
}

// MarketplaceService orchestrates the lifecycle controller with the cache
// and event stream. The controller stays authoritative; the cache only
// pre-filters obviously losing bids, and event fanout is asynchronous and
// best effort so the write path never depends on it.
type MarketplaceService struct {
	ctrl       *marketplace.Controller
	cache      BidCache
	pub        EventPublisher
	log        *logger.Logger
	priceCache sync.Map // listingID -> float64, local current-bid pre-filter
}

// NewMarketplaceService creates the service.
func NewMarketplaceService(ctrl *marketplace.Controller, cache BidCache, pub EventPublisher, log *logger.Logger) *MarketplaceService {
	return &MarketplaceService{
		ctrl:  ctrl,
		cache: cache,
		pub:   pub,
		log:   log,
	}
}

// CreateListing creates a listing and warms the bid cache with its floor.
func (s *MarketplaceService) CreateListing(ctx context.Context, p marketplace.CreateListingParams, now time.Time) (*models.Listing, error) {
	l, err := s.ctrl.CreateListing(ctx, p, now)
	if err != nil {
		return nil, err
	}
	s.priceCache.Store(l.ID, l.FloorPrice())
	return l, nil
}

// GetListing returns the listing after lazy settlement.
func (s *MarketplaceService) GetListing(ctx context.Context, listingID string, now time.Time) (*models.Listing, error) {
	return s.ctrl.GetListing(ctx, listingID, now)
}

// ListListings returns every listing after lazy settlement.
func (s *MarketplaceService) ListListings(ctx context.Context, now time.Time) ([]*models.Listing, error) {
	return s.ctrl.Listings(ctx, now)
}

// BidHistory returns the chronological accepted-bid history.
func (s *MarketplaceService) BidHistory(ctx context.Context, listingID string) ([]*models.Bid, error) {
	return s.ctrl.Bids(ctx, listingID)
}

// PlaceBid handles the complete bid placement workflow:
// 1. Refresh the local price hint from Redis when the bid looks low
// 2. Run the bid through the lifecycle controller
// 3. On acceptance, advance the Redis cache
// 4. Publish to Redis Pub/Sub for real-time broadcast
// 5. Publish to NATS JetStream for archival
func (s *MarketplaceService) PlaceBid(ctx context.Context, listingID string, req *models.BidRequest, now time.Time) (*models.BidResponse, error) {
	// The price cache is a broadcast hint, never an authority. A bid at
	// or below the hinted value still goes through the controller so the
	// rejection reason reflects the listing's actual status and window;
	// the Redis read only refreshes a stale hint.
	if cached, ok := s.priceCache.Load(listingID); ok {
		if req.Amount <= cached.(float64) {
			actual, _, err := s.cache.CurrentBid(ctx, listingID)
			if err != nil {
				s.log.Warn("bid cache read failed for %s: %v", listingID, err)
			} else if actual > cached.(float64) {
				s.priceCache.Store(listingID, actual)
			}
		}
	}

	bid, err := s.ctrl.PlaceBid(ctx, listingID, req.Amount, req.BidderID, now)
	if err != nil {
		if r, ok := marketplace.AsRejection(err); ok {
			if r.Reason == marketplace.ReasonInsufficientBid {
				// Keep the pre-filter fresh even on failure.
				s.priceCache.Store(listingID, r.CurrentMax)
			}
			return &models.BidResponse{
				Success:    false,
				Message:    r.Message,
				Reason:     r.Reason,
				CurrentBid: r.CurrentMax,
				YourBid:    req.Amount,
			}, nil
		}
		return nil, fmt.Errorf("failed to place bid: %w", err)
	}

	var previous float64
	if v, ok := s.priceCache.Load(listingID); ok {
		previous = v.(float64)
	}
	s.priceCache.Store(listingID, bid.Amount)

	event := &models.BidEvent{
		EventID:     uuid.New().String(),
		ListingID:   listingID,
		BidID:       bid.ID,
		BidderID:    bid.BidderID,
		Amount:      bid.Amount,
		PreviousBid: previous,
		Timestamp:   bid.Timestamp,
	}

	// Advance the Redis cache and fan the event out. Neither is on the
	// bid write path; failures are logged, not returned.
	go func() {
		bg, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := s.cache.UpdateCurrentBid(bg, listingID, bid.BidderID, bid.Amount); err != nil {
			s.log.Warn("failed to advance redis current bid for %s: %v", listingID, err)
		}
		if err := s.cache.PublishEvent(bg, listingID, event); err != nil {
			s.log.Warn("failed to publish bid event for broadcast: %v", err)
		}
		if err := s.pub.PublishBidEvent(bg, event); err != nil {
			s.log.Warn("failed to publish bid event for archival: %v", err)
		}
	}()

	return &models.BidResponse{
		Success:    true,
		Message:    "Bid placed successfully",
		Bid:        bid,
		CurrentBid: bid.Amount,
		YourBid:    req.Amount,
		IsHighest:  true,
		EventID:    event.EventID,
	}, nil
}

// PurchaseNow accepts a fixed-price purchase and broadcasts the sale.
func (s *MarketplaceService) PurchaseNow(ctx context.Context, listingID, buyerID string, now time.Time) (*models.Listing, error) {
	l, err := s.ctrl.PurchaseNow(ctx, listingID, buyerID, now)
	if err != nil {
		return nil, err
	}
	s.publishListingEvent(l.ID, l.Status, l.BuyerID)
	return l, nil
}

// Withdraw closes a listing on the seller's behalf and broadcasts it.
func (s *MarketplaceService) Withdraw(ctx context.Context, listingID, sellerID string, now time.Time) (*models.Listing, error) {
	l, err := s.ctrl.Withdraw(ctx, listingID, sellerID, now)
	if err != nil {
		return nil, err
	}
	s.publishListingEvent(l.ID, l.Status, "")
	return l, nil
}

// CreateSeller registers a seller.
func (s *MarketplaceService) CreateSeller(ctx context.Context, req *models.CreateSellerRequest, now time.Time) (*models.Seller, error) {
	return s.ctrl.CreateSeller(ctx, req.Name, req.Reputation, now)
}

// GetSeller returns a seller by id.
func (s *MarketplaceService) GetSeller(ctx context.Context, id string) (*models.Seller, error) {
	return s.ctrl.GetSeller(ctx, id)
}

func (s *MarketplaceService) publishListingEvent(listingID, status, buyerID string) {
	event := &models.ListingEvent{
		EventID:   uuid.New().String(),
		ListingID: listingID,
		Status:    status,
		BuyerID:   buyerID,
		Timestamp: time.Now().UTC(),
	}
	go func() {
		bg, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.cache.PublishEvent(bg, listingID, event); err != nil {
			s.log.Warn("failed to publish listing event for broadcast: %v", err)
		}
	}()
}
