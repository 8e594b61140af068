package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "market_events:"

// Subscriber wraps Redis Pub/Sub for the broadcast server side.
type Subscriber struct {
	client *redis.Client
	pubsub *redis.PubSub
}

// NewSubscriber creates a new Redis Pub/Sub subscriber.
func NewSubscriber(addr, password string, db int) (*Subscriber, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Subscriber{client: rdb}, nil
}

// SubscribeAll subscribes to events for every listing using pattern
// matching on "market_events:*".
func (s *Subscriber) SubscribeAll(ctx context.Context) error {
	s.pubsub = s.client.PSubscribe(ctx, channelPrefix+"*")
	return nil
}

// Message is a parsed Pub/Sub message.
type Message struct {
	ListingID string
	Payload   string                 // raw JSON payload
	Event     map[string]interface{} // parsed event data
}

// Listen forwards incoming messages to messageChan until the context is
// cancelled. Blocking; run in a goroutine.
func (s *Subscriber) Listen(ctx context.Context, messageChan chan<- *Message) error {
	if s.pubsub == nil {
		return fmt.Errorf("not subscribed to any channel")
	}

	ch := s.pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-ch:
			var event map[string]interface{}
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}

			messageChan <- &Message{
				ListingID: strings.TrimPrefix(msg.Channel, channelPrefix),
				Payload:   msg.Payload,
				Event:     event,
			}
		}
	}
}

// Close closes the subscriber.
func (s *Subscriber) Close() error {
	if s.pubsub != nil {
		s.pubsub.Close()
	}
	return s.client.Close()
}
