package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// StatusCache holds rendered order views. Entries are dropped on every
// applied transition; the TTL bounds staleness if a drop is lost.
type StatusCache struct {
	R   *redis.Client
	TTL time.Duration
}

func (c *StatusCache) Get(ctx context.Context, orderID string) ([]byte, bool) {
	b, err := c.R.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

func (c *StatusCache) Set(ctx context.Context, orderID string, body []byte) error {
	ttl := c.TTL
	if ttl <= 0 {
		ttl = TTLStatusCache
	}
	return c.R.Set(ctx, fmt.Sprintf(KeyOrderStatus, orderID), body, ttl).Err()
}

func (c *StatusCache) Drop(ctx context.Context, orderID string) error {
	return c.R.Del(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Err()
}

// Dedup remembers processed event ids per consuming service.
type Dedup struct {
	R       *redis.Client
	Service string
}

// FirstSeen claims id atomically; false means another delivery already did.
func (d *Dedup) FirstSeen(ctx context.Context, id string) (bool, error) {
	return d.R.SetNX(ctx, fmt.Sprintf(KeyDedup, d.Service, id), 1, TTLDedup).Result()
}
