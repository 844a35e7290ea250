// Package broker implements model.Queue over Redis Streams Consumer Groups,
// giving each pipeline stage (fetch/evaluate/store) an at-least-once FIFO
// job queue with crash recovery via the stream's pending entries list.
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"signalengine/internal/model"
	"signalengine/internal/resilience"

	goredis "github.com/go-redis/redis/v8"
)

// maxDeliveries bounds how many times a job is redelivered via the PEL
// reclaimer before it is routed to the stage's dead-letter stream instead,
// per spec.md §7's "beyond its retry budget -> surface to DLQ" clause.
const maxDeliveries = 5

// Config configures one stage's Redis Streams broker.
type Config struct {
	Addr          string
	Password      string
	DB            int
	Stream        string // e.g. model.FetchStream
	ConsumerGroup string
	ConsumerName  string // unique per process, e.g. hostname-pid
	MaxLen        int64  // approximate stream trim length
}

// DLQStream is the dead-letter stream name for a stage's main stream.
func DLQStream(stream string) string {
	return stream + ":dlq"
}

// RedisBroker is a model.Queue backed by one Redis stream and consumer group.
type RedisBroker struct {
	client *goredis.Client
	cb     *resilience.CircuitBreaker
	cfg    Config
}

// New connects to Redis and ensures the stage's consumer group exists.
func New(ctx context.Context, cfg Config) (*RedisBroker, error) {
	if cfg.MaxLen == 0 {
		cfg.MaxLen = 100000
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("broker: redis ping: %w", err)
	}

	err := client.XGroupCreateMkStream(ctx, cfg.Stream, cfg.ConsumerGroup, "$").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return nil, fmt.Errorf("broker: xgroup create %s: %w", cfg.Stream, err)
	}

	return &RedisBroker{
		client: client,
		cb:     resilience.New(5, 10*time.Second),
		cfg:    cfg,
	}, nil
}

// Push enqueues a payload onto the stage's stream.
func (b *RedisBroker) Push(ctx context.Context, payload []byte) error {
	return b.cb.Execute(func() error {
		return b.client.XAdd(ctx, &goredis.XAddArgs{
			Stream: b.cfg.Stream,
			MaxLen: b.cfg.MaxLen,
			Approx: true,
			Values: map[string]interface{}{"data": payload},
		}).Err()
	})
}

// Consume blocks on XREADGROUP, delivering new jobs to out until ctx is cancelled.
func (b *RedisBroker) Consume(ctx context.Context, out chan<- model.Job) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		results, err := b.client.XReadGroup(ctx, &goredis.XReadGroupArgs{
			Group:    b.cfg.ConsumerGroup,
			Consumer: b.cfg.ConsumerName,
			Streams:  []string{b.cfg.Stream, ">"},
			Count:    50,
			Block:    2 * time.Second,
		}).Result()
		if err != nil {
			if err == goredis.Nil || ctx.Err() != nil {
				continue
			}
			slog.Error("broker: xreadgroup failed", "stream", b.cfg.Stream, "error", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range results {
			if err := deliverMessages(ctx, stream.Messages, out); err != nil {
				return err
			}
		}
	}
}

// Ack acknowledges a job, removing it from the stage's pending entries list.
func (b *RedisBroker) Ack(ctx context.Context, jobID string) error {
	return b.client.XAck(ctx, b.cfg.Stream, b.cfg.ConsumerGroup, jobID).Err()
}

// RecoverPending redelivers this consumer's own pending entries from a prior
// crash, once, at startup, before Consume begins reading new messages.
func (b *RedisBroker) RecoverPending(ctx context.Context, out chan<- model.Job) error {
	for {
		pending, err := b.client.XPendingExt(ctx, &goredis.XPendingExtArgs{
			Stream:   b.cfg.Stream,
			Group:    b.cfg.ConsumerGroup,
			Start:    "-",
			End:      "+",
			Count:    100,
			Consumer: b.cfg.ConsumerName,
		}).Result()
		if err != nil || len(pending) == 0 {
			return nil
		}

		ids := make([]string, len(pending))
		for i, p := range pending {
			ids[i] = p.ID
		}

		claimed, err := b.client.XClaim(ctx, &goredis.XClaimArgs{
			Stream:   b.cfg.Stream,
			Group:    b.cfg.ConsumerGroup,
			Consumer: b.cfg.ConsumerName,
			MinIdle:  0,
			Messages: ids,
		}).Result()
		if err != nil {
			return fmt.Errorf("broker: xclaim recover %s: %w", b.cfg.Stream, err)
		}

		if err := deliverMessages(ctx, claimed, out); err != nil {
			return err
		}
		if len(claimed) < len(ids) {
			return nil
		}
	}
}

// StartReclaimer periodically XCLAIMs entries idle longer than minIdle from
// other consumers in the group (presumed dead) and redelivers them to out.
func (b *RedisBroker) StartReclaimer(ctx context.Context, interval, minIdle time.Duration, out chan<- model.Job) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pending, err := b.client.XPendingExt(ctx, &goredis.XPendingExtArgs{
				Stream: b.cfg.Stream,
				Group:  b.cfg.ConsumerGroup,
				Start:  "-",
				End:    "+",
				Count:  50,
				Idle:   minIdle,
			}).Result()
			if err != nil || len(pending) == 0 {
				continue
			}

			var staleIDs []string
			exhausted := make(map[string]bool)
			for _, p := range pending {
				if p.Consumer == b.cfg.ConsumerName {
					continue
				}
				if p.RetryCount > maxDeliveries {
					exhausted[p.ID] = true
				}
				staleIDs = append(staleIDs, p.ID)
			}
			if len(staleIDs) == 0 {
				continue
			}

			claimed, err := b.client.XClaim(ctx, &goredis.XClaimArgs{
				Stream:   b.cfg.Stream,
				Group:    b.cfg.ConsumerGroup,
				Consumer: b.cfg.ConsumerName,
				MinIdle:  minIdle,
				Messages: staleIDs,
			}).Result()
			if err != nil {
				slog.Error("broker: reclaim xclaim failed", "stream", b.cfg.Stream, "error", err)
				continue
			}
			if len(claimed) == 0 {
				continue
			}

			var redeliver []goredis.XMessage
			for _, msg := range claimed {
				if exhausted[msg.ID] {
					b.deadLetter(ctx, msg)
					continue
				}
				redeliver = append(redeliver, msg)
			}

			slog.Info("broker: reclaimed stale pending entries", "stream", b.cfg.Stream,
				"count", len(claimed), "dead_lettered", len(claimed)-len(redeliver))
			if err := deliverMessages(ctx, redeliver, out); err != nil {
				return
			}
		}
	}
}

// deadLetter moves an exhausted message to the stage's DLQ stream and acks
// the original so it leaves the pending entries list.
func (b *RedisBroker) deadLetter(ctx context.Context, msg goredis.XMessage) {
	data, _ := msg.Values["data"].(string)
	if err := b.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: DLQStream(b.cfg.Stream),
		Values: map[string]interface{}{"data": data, "original_id": msg.ID},
	}).Err(); err != nil {
		slog.Error("broker: dead-letter xadd failed", "stream", b.cfg.Stream, "id", msg.ID, "error", err)
		return
	}
	if err := b.client.XAck(ctx, b.cfg.Stream, b.cfg.ConsumerGroup, msg.ID).Err(); err != nil {
		slog.Error("broker: dead-letter ack failed", "stream", b.cfg.Stream, "id", msg.ID, "error", err)
	}
}

// Close closes the underlying Redis client.
func (b *RedisBroker) Close() error {
	return b.client.Close()
}

func deliverMessages(ctx context.Context, msgs []goredis.XMessage, out chan<- model.Job) error {
	for _, msg := range msgs {
		data, ok := msg.Values["data"].(string)
		if !ok {
			continue
		}
		job := model.Job{ID: msg.ID, Payload: []byte(data)}
		select {
		case out <- job:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
