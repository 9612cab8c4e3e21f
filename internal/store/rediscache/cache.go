// Package rediscache mirrors the latest engine state into Redis so the
// dashboard can read hot values without touching the database. The cache
// is optional and strictly best-effort: every call goes through a circuit
// breaker, and a dead Redis only costs the fast path.
package rediscache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bytedance/sonic"
	goredis "github.com/go-redis/redis/v8"

	"quantbot/internal/model"
)

const (
	keyLatestPrice      = "quantbot:latest:price"
	keyLatestIndicators = "quantbot:latest:indicators"
	keyLatestTrade      = "quantbot:latest:trade"
	keyLatestPortfolio  = "quantbot:latest:portfolio"

	latestTTL = 30 * time.Minute

	breakerMaxFailures  = 5
	breakerResetTimeout = 10 * time.Second
)

// Config configures the Redis connection.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// Cache writes and reads the latest-state keys.
type Cache struct {
	client  *goredis.Client
	breaker *CircuitBreaker
}

// New connects and pings the server. The breaker starts closed.
func New(cfg Config) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	breaker := NewCircuitBreaker(breakerMaxFailures, breakerResetTimeout)
	breaker.OnStateChange = func(from, to State) {
		log.Printf("[redis] circuit breaker %s -> %s", from, to)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Cache{client: client, breaker: breaker}, nil
}

// SetCycle mirrors the per-cycle outputs: latest price and indicators.
// Failures are absorbed by the breaker and logged, never returned.
func (c *Cache) SetCycle(ctx context.Context, price model.PricePoint, snap model.IndicatorSnapshot) {
	priceData, err := sonic.Marshal(price)
	if err != nil {
		log.Printf("[redis] marshal price: %v", err)
		return
	}
	snapData, err := sonic.Marshal(snap)
	if err != nil {
		log.Printf("[redis] marshal indicators: %v", err)
		return
	}

	err = c.breaker.Execute(func() error {
		pipe := c.client.Pipeline()
		pipe.Set(ctx, keyLatestPrice, priceData, latestTTL)
		pipe.Set(ctx, keyLatestIndicators, snapData, latestTTL)
		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil && err != ErrCircuitOpen {
		log.Printf("[redis] cycle pipeline error: %v", err)
	}
}

// SetTrade mirrors a fill: latest trade and the portfolio after it.
func (c *Cache) SetTrade(ctx context.Context, trade model.Trade, pf model.Portfolio) {
	tradeData, err := sonic.Marshal(trade)
	if err != nil {
		log.Printf("[redis] marshal trade: %v", err)
		return
	}
	pfData, err := sonic.Marshal(pf)
	if err != nil {
		log.Printf("[redis] marshal portfolio: %v", err)
		return
	}

	err = c.breaker.Execute(func() error {
		pipe := c.client.Pipeline()
		pipe.Set(ctx, keyLatestTrade, tradeData, latestTTL)
		pipe.Set(ctx, keyLatestPortfolio, pfData, latestTTL)
		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil && err != ErrCircuitOpen {
		log.Printf("[redis] trade pipeline error: %v", err)
	}
}

// LatestPrice returns the cached price point, if present.
func (c *Cache) LatestPrice(ctx context.Context) (model.PricePoint, bool) {
	var p model.PricePoint
	ok := c.get(ctx, keyLatestPrice, &p)
	return p, ok
}

// LatestIndicators returns the cached indicator snapshot, if present.
func (c *Cache) LatestIndicators(ctx context.Context) (model.IndicatorSnapshot, bool) {
	var snap model.IndicatorSnapshot
	ok := c.get(ctx, keyLatestIndicators, &snap)
	return snap, ok
}

// LatestTrade returns the cached trade, if present.
func (c *Cache) LatestTrade(ctx context.Context) (model.Trade, bool) {
	var t model.Trade
	ok := c.get(ctx, keyLatestTrade, &t)
	return t, ok
}

// LatestPortfolio returns the cached portfolio, if present.
func (c *Cache) LatestPortfolio(ctx context.Context) (model.Portfolio, bool) {
	var pf model.Portfolio
	ok := c.get(ctx, keyLatestPortfolio, &pf)
	return pf, ok
}

// get unmarshals one key through the breaker. A miss, an open breaker and
// a decode failure all read as "not cached".
func (c *Cache) get(ctx context.Context, key string, dst any) bool {
	var raw []byte
	err := c.breaker.Execute(func() error {
		var err error
		raw, err = c.client.Get(ctx, key).Bytes()
		if err == goredis.Nil {
			raw = nil
			return nil
		}
		return err
	})
	if err != nil {
		if err != ErrCircuitOpen {
			log.Printf("[redis] get %s: %v", key, err)
		}
		return false
	}
	if raw == nil {
		return false
	}
	if err := sonic.Unmarshal(raw, dst); err != nil {
		log.Printf("[redis] decode %s: %v", key, err)
		return false
	}
	return true
}

// BreakerState exposes the circuit state for health reporting.
func (c *Cache) BreakerState() State {
	return c.breaker.CurrentState()
}

// Ping answers liveness probes. It bypasses the breaker so a recovered
// Redis is noticed even while the circuit is open.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}
