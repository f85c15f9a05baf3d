package redisclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"media-pipeline-service/pkg/config"
)

// Client wraps the go-redis client with the counters the quota ledger needs.
type Client struct {
	native *redis.Client
}

// New builds a redis client using service configuration and validates the connection.
func New(cfg config.RedisConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  pickDuration(cfg.DialTimeout, 5*time.Second),
		ReadTimeout:  pickDuration(cfg.ReadTimeout, 3*time.Second),
		WriteTimeout: pickDuration(cfg.WriteTimeout, 3*time.Second),
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.EnableTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cli := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	defer cancel()
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, err
	}
	return &Client{native: cli}, nil
}

// Wrap adopts an existing go-redis client.
func Wrap(native *redis.Client) *Client {
	return &Client{native: native}
}

// Raw exposes the underlying go-redis client for advanced use cases.
func (c *Client) Raw() *redis.Client {
	return c.native
}

// IncrWithTTL adds each delta to its key and refreshes the expiry in one MULTI/EXEC round trip.
// It returns the new values in the order of keys.
func (c *Client) IncrWithTTL(ctx context.Context, ttl time.Duration, keys []string, deltas []int64) ([]int64, error) {
	if len(keys) != len(deltas) {
		return nil, fmt.Errorf("redisclient: %d keys but %d deltas", len(keys), len(deltas))
	}
	cmds := make([]*redis.IntCmd, len(keys))
	_, err := c.native.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for i, key := range keys {
			cmds[i] = p.IncrBy(ctx, key, deltas[i])
			if ttl > 0 {
				p.Expire(ctx, key, ttl)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]int64, len(cmds))
	for i, cmd := range cmds {
		out[i] = cmd.Val()
	}
	return out, nil
}

// GetInt64 reads an integer counter, treating a missing key as zero.
func (c *Client) GetInt64(ctx context.Context, key string) (int64, error) {
	v, err := c.native.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return v, err
}

// Close stops the redis client and releases pooled connections.
func (c *Client) Close() error {
	return c.native.Close()
}

func pickDuration(v time.Duration, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return v
}
