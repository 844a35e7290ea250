// Package ringbuf provides the ingestor's per-(symbol, interval) in-memory
// candle window (spec §4.1: cap 1,000 per key, eviction: oldest,
// same-timestamp duplicates replace). It is mutated only by the ingestor's
// feed-reader goroutine; any number of other goroutines in the same process
// may take a point-in-time Snapshot, matching the reader-many/writer-one
// discipline spec §5 requires for this buffer.
package ringbuf

import (
	"sync"

	"signalengine/internal/model"
)

// Ring is a fixed-capacity, timestamp-deduplicating candle window for one
// (symbol, interval) key.
type Ring struct {
	mu  sync.RWMutex
	buf []model.Candle
	cap int

	overflow uint64
}

// New creates a Ring capped at capacity entries. Minimum capacity is 1.
func New(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{cap: capacity, buf: make([]model.Candle, 0, capacity)}
}

// Push upserts a candle into the window. A candle sharing its timestamp
// with the most recent entry replaces it in place (an "open" candle
// mutating until it closes, spec §3); otherwise it is appended, evicting
// the oldest entry if the window is already at capacity. Returns true if an
// eviction occurred.
func (r *Ring) Push(c model.Candle) (evicted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n := len(r.buf); n > 0 && r.buf[n-1].Timestamp.Equal(c.Timestamp) {
		r.buf[n-1] = c
		return false
	}

	if len(r.buf) >= r.cap {
		copy(r.buf, r.buf[1:])
		r.buf = r.buf[:len(r.buf)-1]
		r.overflow++
		evicted = true
	}
	r.buf = append(r.buf, c)
	return evicted
}

// Snapshot returns a copy of the window's contents, oldest first. Safe for
// concurrent callers; mutating the result never affects the Ring.
func (r *Ring) Snapshot() []model.Candle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Candle, len(r.buf))
	copy(out, r.buf)
	return out
}

// Len returns the current number of entries in the window.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.buf)
}

// Cap returns the window's capacity.
func (r *Ring) Cap() int { return r.cap }

// Overflow returns the total number of evictions due to a full window.
func (r *Ring) Overflow() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.overflow
}

// Registry holds one Ring per (symbol, interval) key, created lazily on
// first Push.
type Registry struct {
	mu    sync.Mutex
	rings map[string]*Ring
	cap   int
}

// NewRegistry creates a Registry whose Rings are each capped at capacity.
func NewRegistry(capacity int) *Registry {
	return &Registry{rings: make(map[string]*Ring), cap: capacity}
}

// Push upserts c into its key's Ring, creating the Ring on first use for
// that key. Returns true if an eviction occurred.
func (reg *Registry) Push(key string, c model.Candle) bool {
	reg.mu.Lock()
	ring, ok := reg.rings[key]
	if !ok {
		ring = New(reg.cap)
		reg.rings[key] = ring
	}
	reg.mu.Unlock()
	return ring.Push(c)
}

// Snapshot returns the current window for key, oldest first, or nil if no
// candle has been pushed for that key yet.
func (reg *Registry) Snapshot(key string) []model.Candle {
	reg.mu.Lock()
	ring, ok := reg.rings[key]
	reg.mu.Unlock()
	if !ok {
		return nil
	}
	return ring.Snapshot()
}

// Keys returns every key with an active Ring.
func (reg *Registry) Keys() []string {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	keys := make([]string, 0, len(reg.rings))
	for k := range reg.rings {
		keys = append(keys, k)
	}
	return keys
}
