package marketplace

import (
	"context"
	"sync"

	"github.com/jigardave8/icitizen-market/internal/models"
)

// BidLedger is the append-only history of accepted bids per listing.
// BidsFor returns the full chronological history and may be re-read any
// number of times.
type BidLedger interface {
	Append(ctx context.Context, b *models.Bid) error
	BidsFor(ctx context.Context, listingID string) ([]*models.Bid, error)
	Highest(ctx context.Context, listingID string) (*models.Bid, error)
}

// MemoryBidLedger keeps bids in per-listing append-order slices.
type MemoryBidLedger struct {
	mu   sync.RWMutex
	bids map[string][]*models.Bid
}

func NewMemoryBidLedger() *MemoryBidLedger {
	return &MemoryBidLedger{bids: make(map[string][]*models.Bid)}
}

func (l *MemoryBidLedger) Append(_ context.Context, b *models.Bid) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *b
	l.bids[b.ListingID] = append(l.bids[b.ListingID], &cp)
	return nil
}

func (l *MemoryBidLedger) BidsFor(_ context.Context, listingID string) ([]*models.Bid, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	history := l.bids[listingID]
	out := make([]*models.Bid, 0, len(history))
	for _, b := range history {
		cp := *b
		out = append(out, &cp)
	}
	return out, nil
}

func (l *MemoryBidLedger) Highest(_ context.Context, listingID string) (*models.Bid, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	history := l.bids[listingID]
	if len(history) == 0 {
		return nil, nil
	}
	// Accepted bids are strictly increasing, so the last entry is the max.
	cp := *history[len(history)-1]
	return &cp, nil
}
