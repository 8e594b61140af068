package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps the Redis client with marketplace-specific operations.
// Redis holds a denormalized copy of each listing's current-bid pair for
// fast pre-filtering, and carries bid/lifecycle events over Pub/Sub to the
// broadcast server. The listing store stays authoritative.
type Client struct {
	client *redis.Client
	// Lua script guarding the cached current-bid pair
	bidScript *redis.Script
}

// NewClient creates a new Redis client.
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	// Cache updates arrive asynchronously after the controller accepts a
	// bid, so two updates can race on the way in. The script runs
	// atomically on the Redis server and only ever advances the cached
	// amount, never lowers it.
	bidScript := redis.NewScript(`
		-- KEYS[1]: listing:{listingID}:current_bid
		-- KEYS[2]: listing:{listingID}:highest_bidder
		-- ARGV[1]: accepted bid amount
		-- ARGV[2]: bidder ID

		local cached = redis.call('GET', KEYS[1])
		if not cached then
			cached = 0
		else
			cached = tonumber(cached)
		end

		local amount = tonumber(ARGV[1])

		if amount > cached then
			redis.call('SET', KEYS[1], ARGV[1])
			redis.call('SET', KEYS[2], ARGV[2])
			return {1, tostring(cached)}
		else
			return {0, tostring(cached)}
		end
	`)

	return &Client{
		client:    rdb,
		bidScript: bidScript,
	}, nil
}

// UpdateCurrentBid advances the cached current-bid pair for a listing.
// Returns false when the cache already held a higher or equal amount.
func (c *Client) UpdateCurrentBid(ctx context.Context, listingID, bidderID string, amount float64) (bool, error) {
	keys := []string{
		fmt.Sprintf("listing:%s:current_bid", listingID),
		fmt.Sprintf("listing:%s:highest_bidder", listingID),
	}

	result, err := c.bidScript.Run(ctx, c.client, keys, amount, bidderID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to execute bid script: %w", err)
	}

	resultArray, ok := result.([]interface{})
	if !ok || len(resultArray) != 2 {
		return false, fmt.Errorf("unexpected script result format")
	}
	advanced, ok := resultArray[0].(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result format")
	}
	return advanced == 1, nil
}

// CurrentBid retrieves the cached current-bid pair for a listing.
// A cold cache reports zero; callers must fall back to the listing store.
func (c *Client) CurrentBid(ctx context.Context, listingID string) (float64, string, error) {
	pipe := c.client.Pipeline()

	bidCmd := pipe.Get(ctx, fmt.Sprintf("listing:%s:current_bid", listingID))
	bidderCmd := pipe.Get(ctx, fmt.Sprintf("listing:%s:highest_bidder", listingID))

	_, err := pipe.Exec(ctx)
	if err != nil && err != redis.Nil {
		return 0, "", fmt.Errorf("failed to get cached bid: %w", err)
	}

	var bid float64
	if bidCmd.Err() == nil {
		if parsed, err := strconv.ParseFloat(bidCmd.Val(), 64); err == nil {
			bid = parsed
		}
	}

	var bidder string
	if bidderCmd.Err() == nil {
		bidder = bidderCmd.Val()
	}

	return bid, bidder, nil
}

// PublishEvent publishes a marketplace event to Redis Pub/Sub. It is
// picked up by the broadcast server for real-time WebSocket updates.
func (c *Client) PublishEvent(ctx context.Context, listingID string, event interface{}) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	channel := fmt.Sprintf("market_events:%s", listingID)
	return c.client.Publish(ctx, channel, eventJSON).Err()
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}
