package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"campus-eats/internal/models"

	"github.com/go-redis/redis/v8"
)

const boardKey = "kitchen:board"

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// SetBoardEntry upserts a task's entry on the kitchen display board
func (c *Client) SetBoardEntry(ctx context.Context, entry *models.KitchenBoardEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal board entry: %w", err)
	}
	return c.rdb.HSet(ctx, boardKey, entry.TaskID, data).Err()
}

// RemoveBoardEntry removes a task from the kitchen display board
func (c *Client) RemoveBoardEntry(ctx context.Context, taskID string) error {
	return c.rdb.HDel(ctx, boardKey, taskID).Err()
}

// GetBoard retrieves the cached kitchen display board. Entries that fail to
// decode are skipped rather than poisoning the whole board.
func (c *Client) GetBoard(ctx context.Context) ([]models.KitchenBoardEntry, error) {
	raw, err := c.rdb.HGetAll(ctx, boardKey).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]models.KitchenBoardEntry, 0, len(raw))
	for _, data := range raw {
		var entry models.KitchenBoardEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// MarkWebhookSeen records a processed payment id with a TTL. Returns false if
// it was already marked. This is a fast-path filter only; the payment status
// in the database remains the authoritative idempotency gate.
func (c *Client) MarkWebhookSeen(ctx context.Context, paymentID string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("webhook:seen:%s", paymentID), "1", ttl).Result()
}

// WebhookSeen checks the fast-path dedup marker for a payment id
func (c *Client) WebhookSeen(ctx context.Context, paymentID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, fmt.Sprintf("webhook:seen:%s", paymentID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
