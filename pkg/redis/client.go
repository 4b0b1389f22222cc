package redis

import (
	"context"
	"time"

	v9 "github.com/redis/go-redis/v9"
	"github.com/rosssaunders/aggbook/pkg/errors"
	"github.com/rosssaunders/aggbook/pkg/logger"
)

// client wraps a go-redis universal client behind the Client interface.
type client struct {
	rdb    v9.UniversalClient
	config *Config
	logger *logger.Logger
}

// NewClient creates a Redis client from config. Connect must be called
// before first use.
func NewClient(log *logger.Logger, config *Config) Client {
	return &client{
		config: config,
		logger: log,
	}
}

// Connect establishes the connection pool and verifies it with a ping.
func (c *client) Connect(ctx context.Context) error {
	c.rdb = v9.NewUniversalClient(&v9.UniversalOptions{
		Addrs:           c.config.Addrs,
		Username:        c.config.Username,
		Password:        c.config.Password,
		DB:              c.config.DB,
		DialTimeout:     c.config.ConnectTimeout,
		MaxRetries:      c.config.MaxRetries,
		MinRetryBackoff: c.config.MinRetryBackoff,
		MaxRetryBackoff: c.config.MaxRetryBackoff,
		PoolSize:        c.config.PoolSize,
		MinIdleConns:    c.config.MinIdleConns,
	})

	if err := c.Ping(ctx); err != nil {
		return errors.NewCodeTracer(errors.RedisConnectionError).Wrap(err)
	}

	c.logger.InfoContext(ctx, "connected to redis", logger.Field{
		Key:   "addrs",
		Value: c.config.Addrs,
	})
	return nil
}

// Disconnect closes the connection pool.
func (c *client) Disconnect(ctx context.Context) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

// Ping verifies the connection is alive.
func (c *client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Get returns the string value at key, empty string when the key is absent.
func (c *client) Get(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, c.prefixed(key)).Result()
	if err == v9.Nil {
		return "", nil
	}
	if err != nil {
		return "", errors.NewCodeTracer(errors.RedisGetError).Wrap(err)
	}
	return val, nil
}

// Set stores value at key with the given expiration, 0 meaning no expiry.
func (c *client) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	if err := c.rdb.Set(ctx, c.prefixed(key), value, expiration).Err(); err != nil {
		return errors.NewCodeTracer(errors.RedisSetError).Wrap(err)
	}
	return nil
}

// Del removes the given keys, returning how many existed.
func (c *client) Del(ctx context.Context, keys ...string) (int64, error) {
	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = c.prefixed(key)
	}
	deleted, err := c.rdb.Del(ctx, prefixed...).Result()
	if err != nil {
		return 0, errors.NewCodeTracer(errors.RedisDelError).Wrap(err)
	}
	return deleted, nil
}

func (c *client) prefixed(key string) string {
	return c.config.PrefixKey + key
}
