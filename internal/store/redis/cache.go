// Package redis caches built reports in Redis behind a circuit breaker and
// announces fresh reports on a pub/sub channel.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"forecast-engine/internal/model"
)

// ReportsChannel receives the cache key of every report stored with Publish.
const ReportsChannel = "reports:updated"

const (
	defaultMaxFailures  = 5
	defaultResetTimeout = 10 * time.Second
)

// Config configures the report cache.
type Config struct {
	Addr         string // Redis address, e.g. "localhost:6379"
	Password     string
	DB           int
	MaxFailures  int           // consecutive failures before the breaker opens
	ResetTimeout time.Duration // open period before a probe
	Logger       *slog.Logger
}

// Cache stores report JSON. It implements model.ReportCache.
type Cache struct {
	client  *goredis.Client
	breaker *CircuitBreaker
	log     *slog.Logger
}

var _ model.ReportCache = (*Cache)(nil)

// New connects to Redis and pings it.
func New(ctx context.Context, cfg Config) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	c := NewWithClient(client, cfg)
	c.log.Info("redis connected", "component", "redis", "addr", cfg.Addr)
	return c, nil
}

// NewWithClient wraps an existing client without pinging it.
func NewWithClient(client *goredis.Client, cfg Config) *Cache {
	maxFailures := cfg.MaxFailures
	if maxFailures <= 0 {
		maxFailures = defaultMaxFailures
	}
	reset := cfg.ResetTimeout
	if reset <= 0 {
		reset = defaultResetTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Cache{
		client:  client,
		breaker: NewCircuitBreaker(maxFailures, reset),
		log:     log,
	}
}

// Client returns the underlying Redis client for health checks.
func (c *Cache) Client() *goredis.Client { return c.client }

// Breaker returns the circuit breaker guarding Redis calls.
func (c *Cache) Breaker() *CircuitBreaker { return c.breaker }

// GetReportJSON returns the cached report, or nil, nil on a miss.
func (c *Cache) GetReportJSON(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		b, err := c.client.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		data = b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

// SetReportJSON stores data under key for ttl (0 = no expiry).
func (c *Cache) SetReportJSON(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.client.Set(ctx, key, data, ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Publish stores data under key, points the symbol's latest key at the same
// payload, and announces key on ReportsChannel, all in one pipeline.
func (c *Cache) Publish(ctx context.Context, key, latestKey string, data []byte, ttl time.Duration) error {
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		_, err := c.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			pipe.Set(ctx, latestKey, data, ttl)
			pipe.Publish(ctx, ReportsChannel, key)
			return nil
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("redis publish %s: %w", key, err)
	}
	return nil
}

// Subscribe listens on ReportsChannel. The caller must close the PubSub.
func (c *Cache) Subscribe(ctx context.Context) *goredis.PubSub {
	return c.client.Subscribe(ctx, ReportsChannel)
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// ReportKey identifies a report by its inputs: the same symbol, horizon and
// last bar always map to the same key. Symbols keep their case, matching the
// series store.
// Format: report:{symbol}:{horizon}:{2006-01-02}
func ReportKey(symbol string, horizon int, lastDay time.Time) string {
	return fmt.Sprintf("report:%s:%d:%s", symbol, horizon, lastDay.UTC().Format(model.DateLayout))
}

// LatestKey points at the most recent report for symbol and horizon.
// Format: report:latest:{symbol}:{horizon}
func LatestKey(symbol string, horizon int) string {
	return fmt.Sprintf("report:latest:%s:%d", symbol, horizon)
}
