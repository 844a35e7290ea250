package cache

import (
	"context"
	"testing"
	"time"

	"signalengine/internal/model"
	"signalengine/internal/resilience"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyCache fails WriteCandle with resilience.ErrOpen while open is true.
type flakyCache struct {
	open    bool
	written []model.Candle
}

func (f *flakyCache) WriteCandle(ctx context.Context, c model.Candle) error {
	if f.open {
		return resilience.ErrOpen
	}
	f.written = append(f.written, c)
	return nil
}
func (f *flakyCache) RecentCandles(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error) {
	return nil, nil
}
func (f *flakyCache) Connected() bool { return !f.open }
func (f *flakyCache) Close() error    { return nil }

func candle(symbol string, ts int64) model.Candle {
	return model.Candle{Symbol: symbol, Interval: "1m", Timestamp: time.Unix(ts, 0).UTC(), Close: 100}
}

func TestBufferedCache_BuffersWhileCircuitOpen(t *testing.T) {
	underlying := &flakyCache{open: true}
	bc := NewBufferedCache(underlying, 0)

	err := bc.WriteCandle(context.Background(), candle("BTC", 1))
	require.NoError(t, err)
	assert.Equal(t, 1, bc.PendingCount())
	assert.Empty(t, underlying.written)
}

func TestBufferedCache_FlushesOnceWritesSucceedAgain(t *testing.T) {
	underlying := &flakyCache{open: true}
	bc := NewBufferedCache(underlying, 0)

	require.NoError(t, bc.WriteCandle(context.Background(), candle("BTC", 1)))
	require.NoError(t, bc.WriteCandle(context.Background(), candle("BTC", 2)))
	assert.Equal(t, 2, bc.PendingCount())

	underlying.open = false
	require.NoError(t, bc.WriteCandle(context.Background(), candle("BTC", 3)))

	assert.Equal(t, 0, bc.PendingCount())
	assert.Len(t, underlying.written, 3)
}

func TestBufferedCache_DropsOldestPastMaxBuffer(t *testing.T) {
	underlying := &flakyCache{open: true}
	bc := NewBufferedCache(underlying, 2)

	require.NoError(t, bc.WriteCandle(context.Background(), candle("BTC", 1)))
	require.NoError(t, bc.WriteCandle(context.Background(), candle("BTC", 2)))
	require.NoError(t, bc.WriteCandle(context.Background(), candle("BTC", 3)))

	assert.Equal(t, 2, bc.PendingCount())
	assert.Equal(t, int64(2), bc.buffer[0].Timestamp.Unix())
	assert.Equal(t, int64(3), bc.buffer[1].Timestamp.Unix())
}

func TestBufferedCache_PropagatesNonCircuitErrors(t *testing.T) {
	underlying := &erroringCache{}
	bc := NewBufferedCache(underlying, 0)

	err := bc.WriteCandle(context.Background(), candle("BTC", 1))
	assert.Error(t, err)
	assert.Equal(t, 0, bc.PendingCount())
}

type erroringCache struct{ flakyCache }

func (e *erroringCache) WriteCandle(ctx context.Context, c model.Candle) error {
	return assert.AnError
}
