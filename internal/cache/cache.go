// Package cache keeps refresh token records in Redis, where key expiry
// replaces the sweeper.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/userapi/backend/internal/logger"
)

type Cache struct {
	client *redis.Client
}

// New connects to Redis and pings it.
func New(ctx context.Context, addr, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	logger.Info(ctx, "connected to redis", map[string]interface{}{"addr": addr, "db": db})
	return &Cache{client: client}, nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Close() error {
	return c.client.Close()
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Tokens returns the refresh token store backed by this connection.
func (c *Cache) Tokens(now func() time.Time) *TokenStore {
	if now == nil {
		now = time.Now
	}
	return &TokenStore{client: c.client, now: now}
}
