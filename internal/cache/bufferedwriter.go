package cache

import (
	"context"
	"errors"
	"sync"

	"signalengine/internal/model"
	"signalengine/internal/resilience"
)

const defaultMaxBuffered = 10000

// BufferedCache wraps a model.Cache and holds candle writes locally while
// the underlying cache's circuit breaker is open, flushing them once writes
// start succeeding again. Spec §4.1: store/cache write failures are logged
// and the in-memory pipeline keeps running; this is what lets a transient
// Redis outage not lose the candles seen during it.
type BufferedCache struct {
	model.Cache

	mu     sync.Mutex
	buffer []model.Candle
	maxBuf int

	OnBuffer func(pending int)
	OnFlush  func(flushed int)
}

// NewBufferedCache wraps underlying. maxBufferSize <= 0 uses a default of 10000.
func NewBufferedCache(underlying model.Cache, maxBufferSize int) *BufferedCache {
	if maxBufferSize <= 0 {
		maxBufferSize = defaultMaxBuffered
	}
	return &BufferedCache{Cache: underlying, maxBuf: maxBufferSize}
}

// WriteCandle writes through the underlying cache. A circuit-open rejection
// is buffered instead of surfaced; any other error is returned as-is.
func (b *BufferedCache) WriteCandle(ctx context.Context, c model.Candle) error {
	err := b.Cache.WriteCandle(ctx, c)
	if errors.Is(err, resilience.ErrOpen) {
		b.bufferWrite(c)
		return nil
	}
	if err == nil {
		b.flush(ctx)
	}
	return err
}

func (b *BufferedCache) bufferWrite(c model.Candle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.buffer) >= b.maxBuf {
		b.buffer = b.buffer[1:]
	}
	b.buffer = append(b.buffer, c)
	if b.OnBuffer != nil {
		b.OnBuffer(len(b.buffer))
	}
}

// flush replays buffered candles through the underlying cache, stopping and
// re-buffering the remainder at the first failure.
func (b *BufferedCache) flush(ctx context.Context) {
	b.mu.Lock()
	if len(b.buffer) == 0 {
		b.mu.Unlock()
		return
	}
	toFlush := b.buffer
	b.buffer = nil
	b.mu.Unlock()

	flushed := 0
	for i, c := range toFlush {
		if err := b.Cache.WriteCandle(ctx, c); err != nil {
			b.mu.Lock()
			b.buffer = append(append([]model.Candle{}, toFlush[i:]...), b.buffer...)
			b.mu.Unlock()
			break
		}
		flushed++
	}
	if b.OnFlush != nil && flushed > 0 {
		b.OnFlush(flushed)
	}
}

// PendingCount returns the number of candles waiting to be flushed.
func (b *BufferedCache) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buffer)
}
