package database

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"pantry-assistant/internal/common/config"
	apperrors "pantry-assistant/internal/common/errors"
)

// RedisClient holds the connection backing the classifier cache.
type RedisClient struct {
	client *redis.Client
}

// NewRedis builds a client from cfg. Commands on the cache path are short,
// so read and write deadlines stay at one second.
func NewRedis(cfg config.RedisConfig) *RedisClient {
	return &RedisClient{client: redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})}
}

// Ping reports CACHE_UNAVAILABLE when redis does not answer.
func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return apperrors.NewCacheUnavailableError(err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *RedisClient) GetClient() *redis.Client {
	return c.client
}
