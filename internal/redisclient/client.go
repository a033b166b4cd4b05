package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

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

// SetStockSnapshot caches an ingredient's current stock. The database row is
// authoritative; the snapshot serves dashboards and read-mostly callers.
func (c *Client) SetStockSnapshot(ctx context.Context, ingredientID int64, stock decimal.Decimal) error {
	key := fmt.Sprintf("stock:%d", ingredientID)
	return c.rdb.Set(ctx, key, stock.String(), 0).Err()
}

// GetStockSnapshot reads the cached stock of an ingredient. Returns false
// when no snapshot exists.
func (c *Client) GetStockSnapshot(ctx context.Context, ingredientID int64) (decimal.Decimal, bool, error) {
	key := fmt.Sprintf("stock:%d", ingredientID)
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	stock, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("corrupt stock snapshot for ingredient %d: %w", ingredientID, err)
	}
	return stock, true, nil
}

// SetReceiptSeen stores a receipt id with TTL for the fast duplicate check.
// The processed_receipts table remains the authoritative dedup record.
func (c *Client) SetReceiptSeen(ctx context.Context, orderID int64, receiptID string, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("receipt:%d:%s", orderID, receiptID), "1", ttl).Err()
}

// CheckReceiptSeen checks whether a receipt id was recently processed
func (c *Client) CheckReceiptSeen(ctx context.Context, orderID int64, receiptID string) (bool, error) {
	result, err := c.rdb.Exists(ctx, fmt.Sprintf("receipt:%d:%s", orderID, receiptID)).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}

// AcquireLock acquires a distributed lock, used to keep a sweep from running
// on more than one instance at a time.
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
