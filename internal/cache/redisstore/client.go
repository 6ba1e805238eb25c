// Package redisstore wraps the Redis operations used by the geostore cache.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	maintnotifications "github.com/redis/go-redis/v9/maintnotifications"

	"github.com/mohammed-shakir/terrai-alerts/internal/core/observability"
)

const upstream = "redis"

type Option func(*redis.Options)

func WithPoolSize(n int) Option {
	return func(o *redis.Options) { o.PoolSize = n }
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.DialTimeout = d }
}

func WithReadTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.ReadTimeout = d }
}

type Client struct {
	rdb *redis.Client
}

func New(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}

	ro := &redis.Options{
		Addr:         addr,
		PoolSize:     16,
		MinIdleConns: 2,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	}
	for _, f := range opts {
		f(ro)
	}

	c := &Client{rdb: redis.NewClient(ro)}
	if err := c.Ping(ctx); err != nil {
		_ = c.rdb.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.observe("ping", time.Now(), c.rdb.Ping(ctx).Err(), "redis ping")
}

// Get returns the stored value and whether the key existed.
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		_ = c.observe("get", start, nil, "")
		return nil, false, nil
	}
	if err := c.observe("get", start, err, fmt.Sprintf("redis GET %q", key)); err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *Client) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return c.observe("set", time.Now(), c.rdb.Set(ctx, key, val, ttl).Err(), fmt.Sprintf("redis SET %q", key))
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.observe("del", time.Now(), c.rdb.Del(ctx, keys...).Err(), fmt.Sprintf("redis DEL %d keys", len(keys)))
}

func (c *Client) Close() error {
	if err := c.rdb.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}

func (c *Client) observe(op string, start time.Time, err error, what string) error {
	observability.ObserveUpstreamLatency(upstream, time.Since(start).Seconds())
	if err != nil {
		observability.IncUpstreamError(upstream, op)
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}
