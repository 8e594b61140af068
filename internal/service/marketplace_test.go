package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jigardave8/icitizen-market/internal/logger"
	"github.com/jigardave8/icitizen-market/internal/marketplace"
	"github.com/jigardave8/icitizen-market/internal/models"
)

type fakeCache struct {
	mu      sync.Mutex
	current map[string]float64
	bidder  map[string]string
	events  chan interface{}
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		current: make(map[string]float64),
		bidder:  make(map[string]string),
		events:  make(chan interface{}, 16),
	}
}

func (f *fakeCache) UpdateCurrentBid(_ context.Context, listingID, bidderID string, amount float64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if amount <= f.current[listingID] {
		return false, nil
	}
	f.current[listingID] = amount
	f.bidder[listingID] = bidderID
	return true, nil
}

func (f *fakeCache) CurrentBid(_ context.Context, listingID string) (float64, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current[listingID], f.bidder[listingID], nil
}

func (f *fakeCache) PublishEvent(_ context.Context, _ string, event interface{}) error {
	f.events <- event
	return nil
}

type fakePublisher struct {
	events chan *models.BidEvent
}

func (f *fakePublisher) PublishBidEvent(_ context.Context, event *models.BidEvent) error {
	f.events <- event
	return nil
}

func newTestService(t *testing.T) (*MarketplaceService, *fakeCache, *fakePublisher, *models.Seller) {
	t.Helper()
	ctrl := marketplace.NewController(
		marketplace.NewMemoryListingStore(),
		marketplace.NewMemoryBidLedger(),
		marketplace.NewMemorySellerStore(),
	)
	cache := newFakeCache()
	pub := &fakePublisher{events: make(chan *models.BidEvent, 16)}
	svc := NewMarketplaceService(ctrl, cache, pub, logger.New("[test] "))

	seller, err := svc.CreateSeller(context.Background(), &models.CreateSellerRequest{Name: "tester", Reputation: 3}, time.Now().UTC())
	if err != nil {
		t.Fatalf("CreateSeller returned error: %v", err)
	}
	return svc, cache, pub, seller
}

func auctionParams(sellerID string, price float64, start, end time.Time) marketplace.CreateListingParams {
	return marketplace.CreateListingParams{
		SellerID:     sellerID,
		Title:        "city bike",
		Category:     "vehicles",
		Location:     "ward 3",
		Price:        &price,
		AuctionStart: &start,
		AuctionEnd:   &end,
	}
}

func TestPlaceBidAcceptedPublishesEvents(t *testing.T) {
	svc, cache, pub, seller := newTestService(t)
	ctx := context.Background()
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(48 * time.Hour)

	l, err := svc.CreateListing(ctx, auctionParams(seller.ID, 100, start, end), start)
	if err != nil {
		t.Fatalf("CreateListing returned error: %v", err)
	}

	resp, err := svc.PlaceBid(ctx, l.ID, &models.BidRequest{BidderID: "bidder-a", Amount: 120}, start.Add(time.Hour))
	if err != nil {
		t.Fatalf("PlaceBid returned error: %v", err)
	}
	if !resp.Success || !resp.IsHighest || resp.CurrentBid != 120 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Bid == nil || resp.Bid.Amount != 120 {
		t.Fatalf("expected accepted bid in response, got %+v", resp.Bid)
	}

	select {
	case ev := <-pub.events:
		if ev.ListingID != l.ID || ev.Amount != 120 || ev.PreviousBid != 100 {
			t.Fatalf("unexpected archival event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected an archival event, got none")
	}
	select {
	case <-cache.events:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a broadcast event, got none")
	}
}

func TestPlaceBidLowBidRejectsWithoutEvents(t *testing.T) {
	svc, _, pub, seller := newTestService(t)
	ctx := context.Background()
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(48 * time.Hour)

	l, err := svc.CreateListing(ctx, auctionParams(seller.ID, 100, start, end), start)
	if err != nil {
		t.Fatalf("CreateListing returned error: %v", err)
	}

	resp, err := svc.PlaceBid(ctx, l.ID, &models.BidRequest{BidderID: "bidder-a", Amount: 90}, start.Add(time.Hour))
	if err != nil {
		t.Fatalf("PlaceBid returned error: %v", err)
	}
	if resp.Success {
		t.Fatal("expected low bid to be rejected")
	}
	if resp.Reason != marketplace.ReasonInsufficientBid {
		t.Fatalf("expected insufficient_bid, got %q", resp.Reason)
	}

	select {
	case ev := <-pub.events:
		t.Fatalf("rejected bid must not publish events, got %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPlaceBidLowBidOnFixedPriceListingRejectsNotInAuction(t *testing.T) {
	svc, _, _, seller := newTestService(t)
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	price := 150.0

	l, err := svc.CreateListing(ctx, marketplace.CreateListingParams{
		SellerID: seller.ID, Title: "bookshelf", Price: &price,
	}, now)
	if err != nil {
		t.Fatalf("CreateListing returned error: %v", err)
	}

	// The amount is below the hinted price, but the listing is not in
	// auction, and that reason wins.
	resp, err := svc.PlaceBid(ctx, l.ID, &models.BidRequest{BidderID: "bidder-a", Amount: 100}, now)
	if err != nil {
		t.Fatalf("PlaceBid returned error: %v", err)
	}
	if resp.Success || resp.Reason != marketplace.ReasonNotInAuction {
		t.Fatalf("expected not_in_auction, got %+v", resp)
	}
}

func TestPlaceBidLowBidAfterAuctionEndRejectsExpired(t *testing.T) {
	svc, _, _, seller := newTestService(t)
	ctx := context.Background()
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	l, err := svc.CreateListing(ctx, auctionParams(seller.ID, 100, start, end), start)
	if err != nil {
		t.Fatalf("CreateListing returned error: %v", err)
	}

	// At-floor amount would be insufficient, but expiry is checked first.
	resp, err := svc.PlaceBid(ctx, l.ID, &models.BidRequest{BidderID: "late", Amount: 100}, end.Add(time.Minute))
	if err != nil {
		t.Fatalf("PlaceBid returned error: %v", err)
	}
	if resp.Success || resp.Reason != marketplace.ReasonAuctionExpired {
		t.Fatalf("expected auction_expired, got %+v", resp)
	}
}

func TestPlaceBidRejectionReasonsPassThrough(t *testing.T) {
	svc, _, _, seller := newTestService(t)
	ctx := context.Background()
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	l, err := svc.CreateListing(ctx, auctionParams(seller.ID, 100, start, end), start)
	if err != nil {
		t.Fatalf("CreateListing returned error: %v", err)
	}

	resp, err := svc.PlaceBid(ctx, l.ID, &models.BidRequest{BidderID: "late", Amount: 500}, end.Add(time.Minute))
	if err != nil {
		t.Fatalf("PlaceBid returned error: %v", err)
	}
	if resp.Success || resp.Reason != marketplace.ReasonAuctionExpired {
		t.Fatalf("expected auction_expired, got %+v", resp)
	}

	resp, err = svc.PlaceBid(ctx, "missing", &models.BidRequest{BidderID: "x", Amount: 5}, start)
	if err != nil {
		t.Fatalf("PlaceBid returned error: %v", err)
	}
	if resp.Success || resp.Reason != marketplace.ReasonListingNotFound {
		t.Fatalf("expected listing_not_found, got %+v", resp)
	}
}

func TestPurchaseAndWithdrawBroadcast(t *testing.T) {
	svc, cache, _, seller := newTestService(t)
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	price := 30.0

	l, err := svc.CreateListing(ctx, marketplace.CreateListingParams{
		SellerID: seller.ID, Title: "umbrella", Price: &price,
	}, now)
	if err != nil {
		t.Fatalf("CreateListing returned error: %v", err)
	}

	sold, err := svc.PurchaseNow(ctx, l.ID, "buyer-a", now)
	if err != nil {
		t.Fatalf("PurchaseNow returned error: %v", err)
	}
	if sold.Status != models.StatusSold {
		t.Fatalf("expected sold, got %q", sold.Status)
	}

	select {
	case ev := <-cache.events:
		le, ok := ev.(*models.ListingEvent)
		if !ok || le.Status != models.StatusSold || le.BuyerID != "buyer-a" {
			t.Fatalf("unexpected broadcast event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected a listing event broadcast, got none")
	}

	if _, err := svc.Withdraw(ctx, l.ID, seller.ID, now); err == nil {
		t.Fatal("expected withdrawal of sold listing to be rejected")
	}
}
