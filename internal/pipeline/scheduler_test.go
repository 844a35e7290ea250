package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"signalengine/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQueue records every pushed payload's FetchCandlesJob.Symbol.
type fakeQueue struct {
	mu      sync.Mutex
	symbols []string
}

func (q *fakeQueue) Push(ctx context.Context, payload []byte) error {
	var job model.FetchCandlesJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return err
	}
	q.mu.Lock()
	q.symbols = append(q.symbols, job.Symbol)
	q.mu.Unlock()
	return nil
}
func (q *fakeQueue) Consume(ctx context.Context, out chan<- model.Job) error { <-ctx.Done(); return ctx.Err() }
func (q *fakeQueue) Ack(ctx context.Context, jobID string) error            { return nil }
func (q *fakeQueue) RecoverPending(ctx context.Context, out chan<- model.Job) error { return nil }
func (q *fakeQueue) StartReclaimer(ctx context.Context, interval, minIdle time.Duration, out chan<- model.Job) {
}
func (q *fakeQueue) Close() error { return nil }

func (q *fakeQueue) snapshot() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.symbols))
	copy(out, q.symbols)
	return out
}

func TestCronExpression_MinuteGranularAboveSixtySeconds(t *testing.T) {
	assert.Equal(t, "0 */1 * * * *", cronExpression(60*time.Second))
	assert.Equal(t, "0 */5 * * * *", cronExpression(5*time.Minute))
}

func TestCronExpression_SecondGranularBelowSixtySeconds(t *testing.T) {
	assert.Equal(t, "*/1 * * * * *", cronExpression(1*time.Second))
	assert.Equal(t, "*/15 * * * * *", cronExpression(15*time.Second))
}

func TestScheduler_EnqueuesPerSymbolOnEachAlignedTick(t *testing.T) {
	q := &fakeQueue{}
	s := &Scheduler{Symbols: []string{"BTC", "ETH"}, Interval: time.Second, Fetch: q}

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()

	s.Run(ctx)
	time.Sleep(50 * time.Millisecond) // let any in-flight enqueue goroutines from the last tick finish

	got := q.snapshot()
	require.NotEmpty(t, got, "expected at least one tick to have fired")
	for _, sym := range got {
		assert.Contains(t, []string{"BTC", "ETH"}, sym)
	}

	counts := map[string]int{}
	for _, sym := range got {
		counts[sym]++
	}
	assert.Equal(t, counts["BTC"], counts["ETH"], "each tick enqueues one job per symbol")
}
