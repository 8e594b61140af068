package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/jigardave8/icitizen-market/internal/logger"
	"github.com/jigardave8/icitizen-market/internal/models"
	"github.com/jigardave8/icitizen-market/internal/repository"
	"github.com/jigardave8/icitizen-market/internal/stream"
)

// ArchivalConsumer pulls accepted-bid events off the JetStream stream and
// persists them to the bid_events audit table.
type ArchivalConsumer struct {
	conn   *nats.Conn
	events *repository.EventRepository
	log    *logger.Logger

	consumeCtx jetstream.ConsumeContext
}

// NewArchivalConsumer connects to NATS and prepares the consumer.
func NewArchivalConsumer(natsURL string, events *repository.EventRepository, log *logger.Logger) (*ArchivalConsumer, error) {
	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &ArchivalConsumer{
		conn:   conn,
		events: events,
		log:    log,
	}, nil
}

// Start creates a durable work-queue consumer on the bid-events stream and
// processes messages until the context is cancelled.
func (c *ArchivalConsumer) Start(ctx context.Context) error {
	js, err := jetstream.New(c.conn)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	setupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// The stream normally exists already (the API server creates it);
	// CreateOrUpdateStream makes worker startup order-independent.
	s, err := js.CreateOrUpdateStream(setupCtx, jetstream.StreamConfig{
		Name:      stream.StreamName,
		Subjects:  []string{stream.SubjectPrefix + ".*"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.WorkQueuePolicy,
		MaxAge:    24 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("failed to create/update stream: %w", err)
	}

	cons, err := s.CreateOrUpdateConsumer(setupCtx, jetstream.ConsumerConfig{
		Durable:   "archival-worker",
		AckPolicy: jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	consumeCtx, err := cons.Consume(func(msg jetstream.Msg) {
		c.handleMessage(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	c.consumeCtx = consumeCtx
	c.log.Info("consuming bid events from stream %s", stream.StreamName)

	<-ctx.Done()
	return nil
}

// handleMessage archives a single bid event. Unparsable messages are
// acked and dropped; persistence failures are nacked for redelivery.
func (c *ArchivalConsumer) handleMessage(ctx context.Context, msg jetstream.Msg) {
	var event models.BidEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		c.log.Error("failed to unmarshal event: %v", err)
		msg.Ack()
		return
	}

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := c.events.Insert(dbCtx, &event); err != nil {
		c.log.Error("failed to archive bid event %s: %v", event.EventID, err)
		msg.Nak()
		return
	}

	c.log.Info("archived bid event %s (listing: %s, bidder: %s, amount: %.2f)",
		event.EventID, event.ListingID, event.BidderID, event.Amount)
	msg.Ack()
}

// Close stops consumption and closes the NATS connection.
func (c *ArchivalConsumer) Close() error {
	if c.consumeCtx != nil {
		c.consumeCtx.Stop()
	}
	c.conn.Close()
	return nil
}
