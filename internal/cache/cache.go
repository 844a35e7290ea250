// Package cache implements model.Cache over Redis: a capped per-(symbol,
// interval) list of recent candles, write-through from the ingestor and
// read by the evaluator to assemble the window it hands to indicators.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"signalengine/internal/model"
	"signalengine/internal/resilience"

	goredis "github.com/go-redis/redis/v8"
)

const (
	maxCandlesPerKey = 500
	candleListTTL    = 24 * time.Hour
)

// Config configures the Redis-backed cache.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// RedisCache is a model.Cache backed by a Redis list per (symbol, interval).
type RedisCache struct {
	client    *goredis.Client
	cb        *resilience.CircuitBreaker
	connected atomic.Bool
}

// New connects to Redis and pings it once.
func New(ctx context.Context, cfg Config) (*RedisCache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("cache: redis ping: %w", err)
	}

	c := &RedisCache{client: client, cb: resilience.New(5, 10*time.Second)}
	c.connected.Store(true)
	return c, nil
}

// WriteCandle upserts a candle into its key's list: a late update sharing
// the list's tail timestamp (an "open" candle mutating until it closes,
// spec §3/§4.1) replaces that tail entry in place; otherwise the candle is
// appended and the list trimmed to the cap. This is the same
// replace-on-same-identity semantics the SQLite store applies via
// INSERT OR REPLACE, needed here because the cache is the evaluator's
// primary read path (handlers.go reads cache before falling back to store).
func (c *RedisCache) WriteCandle(ctx context.Context, candle model.Candle) error {
	key := candleListKey(candle.Symbol, candle.Interval)
	data, err := json.Marshal(candle)
	if err != nil {
		return fmt.Errorf("cache: marshal candle: %w", err)
	}

	err = c.cb.Execute(func() error {
		tailRaw, tailErr := c.client.LIndex(ctx, key, -1).Result()
		if tailErr != nil && tailErr != goredis.Nil {
			return tailErr
		}

		replace := false
		if tailErr == nil {
			var tail model.Candle
			if err := json.Unmarshal([]byte(tailRaw), &tail); err == nil && tail.Timestamp.Equal(candle.Timestamp) {
				replace = true
			}
		}

		pipe := c.client.Pipeline()
		if replace {
			pipe.LSet(ctx, key, -1, data)
		} else {
			pipe.RPush(ctx, key, data)
			pipe.LTrim(ctx, key, -maxCandlesPerKey, -1)
		}
		pipe.Expire(ctx, key, candleListTTL)
		_, execErr := pipe.Exec(ctx)
		return execErr
	})
	c.recordResult(err)
	return err
}

// RecentCandles returns up to limit most-recent candles, oldest first.
func (c *RedisCache) RecentCandles(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error) {
	key := candleListKey(symbol, interval)

	var raw []string
	err := c.cb.Execute(func() error {
		var execErr error
		raw, execErr = c.client.LRange(ctx, key, int64(-limit), -1).Result()
		return execErr
	})
	c.recordResult(err)
	if err != nil {
		return nil, fmt.Errorf("cache: lrange %s: %w", key, err)
	}

	candles := make([]model.Candle, 0, len(raw))
	for _, s := range raw {
		var cd model.Candle
		if err := json.Unmarshal([]byte(s), &cd); err != nil {
			slog.Warn("cache: skipping malformed cached candle", "key", key, "error", err)
			continue
		}
		candles = append(candles, cd)
	}
	return candles, nil
}

// Connected reports whether the last operation against Redis succeeded.
func (c *RedisCache) Connected() bool {
	return c.connected.Load()
}

// Close closes the underlying Redis client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) recordResult(err error) {
	c.connected.Store(err == nil)
}

func candleListKey(symbol, interval string) string {
	return "candles:" + interval + ":" + symbol
}
