package model

import (
	"context"
	"time"
)

// Job wraps one dequeued message: its decoded payload plus broker metadata
// needed to Ack or let it fall back to the broker's redelivery policy.
type Job struct {
	ID      string
	Payload []byte
}

// Queue is a FIFO, at-least-once job broker for one stage. Consume delivers
// new, never-delivered messages; pending ones are redelivered through
// RecoverPending and StartReclaimer. A message not Acked within the broker's
// visibility window is redelivered to another consumer.
type Queue interface {
	// Push enqueues a payload. Must not block longer than the caller's context.
	Push(ctx context.Context, payload []byte) error

	// Consume blocks, delivering jobs to out until ctx is cancelled.
	Consume(ctx context.Context, out chan<- Job) error

	// Ack acknowledges successful processing of a job.
	Ack(ctx context.Context, jobID string) error

	// RecoverPending re-delivers jobs left pending by a crashed consumer of
	// this same consumer name, once, at startup.
	RecoverPending(ctx context.Context, out chan<- Job) error

	// StartReclaimer periodically reclaims jobs idle longer than minIdle from
	// other, presumably dead, consumers and redelivers them to out.
	StartReclaimer(ctx context.Context, interval time.Duration, minIdle time.Duration, out chan<- Job)

	Close() error
}

// Cache is the key-value cache of recent candles indexed by (symbol, interval).
type Cache interface {
	// WriteCandle write-through writes one candle into the capped recent list.
	WriteCandle(ctx context.Context, c Candle) error

	// RecentCandles returns up to limit most-recent candles, oldest first.
	RecentCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)

	// Connected reports the last-known connectivity state for health gauges.
	Connected() bool

	Close() error
}

// Store is the time-series store: append-only candles, strategy CRUD, signal inserts.
type Store interface {
	// AppendCandle persists one candle; same-identity rows are replaced.
	AppendCandle(ctx context.Context, c Candle) error

	// RecentCandles returns up to limit most-recent candles for a symbol's
	// primary interval, oldest first.
	RecentCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)

	// StrategiesForSymbol returns every strategy bound to symbol.
	StrategiesForSymbol(ctx context.Context, symbol string) ([]Strategy, error)

	// GetStrategy returns one strategy by id.
	GetStrategy(ctx context.Context, id int64) (Strategy, error)

	// ListStrategies returns every persisted strategy.
	ListStrategies(ctx context.Context) ([]Strategy, error)

	// UpsertStrategy inserts or updates a strategy, advancing UpdatedAt.
	UpsertStrategy(ctx context.Context, s Strategy) (Strategy, error)

	// DeleteStrategy removes a strategy by id.
	DeleteStrategy(ctx context.Context, id int64) error

	// InsertSignal idempotently inserts a signal keyed by (strategy_id, timestamp_ms).
	InsertSignal(ctx context.Context, s Signal) error

	Connected() bool

	Close() error
}
