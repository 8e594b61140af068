package marketplace

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jigardave8/icitizen-market/internal/models"
)

// ListingStore is the sole owner of listing records. Implementations must
// not enforce business rules; the Controller is the only component that
// validates transitions before calling mutators.
type ListingStore interface {
	Create(ctx context.Context, l *models.Listing) error
	Get(ctx context.Context, id string) (*models.Listing, error)
	UpdateCurrentBid(ctx context.Context, id string, amount float64, bidderID string) error
	UpdateStatus(ctx context.Context, id, status, buyerID string) error
	List(ctx context.Context) ([]*models.Listing, error)
}

// SellerStore owns seller records. Sellers are immutable once created.
type SellerStore interface {
	Create(ctx context.Context, s *models.Seller) error
	Get(ctx context.Context, id string) (*models.Seller, error)
}

// MemoryListingStore is a mutex-guarded in-memory ListingStore, used by
// tests and the memory store backend.
type MemoryListingStore struct {
	mu       sync.RWMutex
	listings map[string]*models.Listing
}

func NewMemoryListingStore() *MemoryListingStore {
	return &MemoryListingStore{listings: make(map[string]*models.Listing)}
}

func (s *MemoryListingStore) Create(_ context.Context, l *models.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *l
	s.listings[l.ID] = &cp
	return nil
}

func (s *MemoryListingStore) Get(_ context.Context, id string) (*models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.listings[id]
	if !ok {
		return nil, ErrListingNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *MemoryListingStore) UpdateCurrentBid(_ context.Context, id string, amount float64, bidderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return ErrListingNotFound
	}
	l.CurrentBid = amount
	l.HighestBidderID = bidderID
	l.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryListingStore) UpdateStatus(_ context.Context, id, status, buyerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return ErrListingNotFound
	}
	l.Status = status
	if buyerID != "" {
		l.BuyerID = buyerID
	}
	l.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryListingStore) List(_ context.Context) ([]*models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Listing, 0, len(s.listings))
	for _, l := range s.listings {
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// MemorySellerStore is the in-memory SellerStore counterpart.
type MemorySellerStore struct {
	mu      sync.RWMutex
	sellers map[string]*models.Seller
}

func NewMemorySellerStore() *MemorySellerStore {
	return &MemorySellerStore{sellers: make(map[string]*models.Seller)}
}

func (s *MemorySellerStore) Create(_ context.Context, seller *models.Seller) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *seller
	s.sellers[seller.ID] = &cp
	return nil
}

func (s *MemorySellerStore) Get(_ context.Context, id string) (*models.Seller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seller, ok := s.sellers[id]
	if !ok {
		return nil, ErrSellerNotFound
	}
	cp := *seller
	return &cp, nil
}
