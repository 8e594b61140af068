package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/jigardave8/icitizen-market/internal/models"
)

const (
	// StreamName holds accepted-bid events until the archival worker
	// consumes them.
	StreamName = "MARKET_BIDS"
	// SubjectPrefix namespaces per-listing subjects: market.bids.{listingID}
	SubjectPrefix = "market.bids"
)

// Publisher writes accepted-bid events to a NATS JetStream stream for
// archival. Publishing waits for the server acknowledgment so the event is
// persisted before returning; callers invoke it off the bid write path.
type Publisher struct {
	js jetstream.JetStream
}

// NewPublisher creates a JetStream publisher and ensures the stream exists.
func NewPublisher(natsConn *nats.Conn) (*Publisher, error) {
	js, err := jetstream.New(natsConn)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Stream for accepted-bid events archival",
		Subjects:    []string{SubjectPrefix + ".*"},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.WorkQueuePolicy,
		MaxAge:      24 * time.Hour,
		Replicas:    1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/update stream: %w", err)
	}

	return &Publisher{js: js}, nil
}

// PublishBidEvent publishes a bid event for archival with at-least-once
// delivery; the archival worker deduplicates by bid ID.
func (p *Publisher) PublishBidEvent(ctx context.Context, event *models.BidEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", SubjectPrefix, event.ListingID)

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := p.js.Publish(pubCtx, subject, data); err != nil {
		return fmt.Errorf("failed to publish to JetStream: %w", err)
	}
	return nil
}
