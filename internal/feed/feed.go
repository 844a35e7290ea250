// Package feed maintains the ingestor's long-lived streaming connection to
// the market data feed: a supervised state machine that reconnects with
// backoff and replays the current subscription set on every reconnect.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"signalengine/internal/model"
	"signalengine/pkg/wire"

	"github.com/StudioSol/set"
	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
)

// State is a connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateBackoff
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

const (
	writerQueueDepth  = 64
	stableConnection  = 60 * time.Second
	expectedServerPing = 15 * time.Second
	readDeadline       = 2 * expectedServerPing
)

// MidUpdate is a single symbol's latest mid price.
type MidUpdate struct {
	Symbol string
	Price  float64
}

// Config configures one Feed connection.
type Config struct {
	Endpoint string
}

// Feed owns the subscription set and connection state machine for one feed
// endpoint. Candles and mids are delivered to the caller's channels; the
// caller never touches the socket directly.
type Feed struct {
	cfg    Config
	dialer *websocket.Dialer

	mu       sync.Mutex
	state    State
	subs     *set.LinkedHashSetString
	writerCh chan wire.SubscribeFrame

	backoff *backoff.Backoff

	OnStateChange func(from, to State)
}

// New creates a Feed. Connections are not attempted until Run is called.
func New(cfg Config) *Feed {
	return &Feed{
		cfg:    cfg,
		dialer: websocket.DefaultDialer,
		state:  StateDisconnected,
		subs:   set.NewLinkedHashSetString(),
		backoff: &backoff.Backoff{
			Min:    500 * time.Millisecond,
			Max:    30 * time.Second,
			Factor: 2,
			Jitter: true,
		},
	}
}

// Subscribe adds a subscription key. It always succeeds immediately,
// independent of connection state; the key is sent to the server on the
// next Connected transition (and, if already connected, right away).
func (f *Feed) Subscribe(key model.SubscriptionKey) {
	f.mu.Lock()
	alreadyConnected := f.state == StateConnected
	f.subs.Add(key.String())
	f.mu.Unlock()

	if alreadyConnected {
		f.enqueueFrame(wire.NewSubscribeFrame(key))
	}
}

// CurrentState returns the feed's connection state.
func (f *Feed) CurrentState() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Run drives the connect/read/backoff loop until ctx is cancelled.
func (f *Feed) Run(ctx context.Context, candles chan<- model.Candle, mids chan<- MidUpdate) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		f.setState(StateConnecting)
		conn, _, err := f.dialer.DialContext(ctx, f.cfg.Endpoint, nil)
		if err != nil {
			slog.Warn("feed: dial failed", "endpoint", f.cfg.Endpoint, "error", err)
			if !f.sleepBackoff(ctx) {
				return ctx.Err()
			}
			continue
		}

		connectedAt := time.Now()
		f.setState(StateConnected)
		err = f.runConnection(ctx, conn, candles, mids)
		conn.Close()

		if time.Since(connectedAt) >= stableConnection {
			f.backoff.Reset()
		}

		f.setState(StateDisconnected)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("feed: connection ended, backing off", "error", err)
		if !f.sleepBackoff(ctx) {
			return ctx.Err()
		}
	}
}

// runConnection owns one live socket: a reader goroutine, a writer
// goroutine serialising outbound frames through a bounded channel, and the
// subscription replay fired immediately on connect.
func (f *Feed) runConnection(ctx context.Context, conn *websocket.Conn, candles chan<- model.Candle, mids chan<- MidUpdate) error {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make(chan wire.SubscribeFrame, writerQueueDepth)
	f.mu.Lock()
	f.writerCh = out
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.writerCh = nil
		f.mu.Unlock()
		close(out)
	}()

	errCh := make(chan error, 2)

	go f.writerLoop(connCtx, conn, out, errCh)
	go f.readerLoop(connCtx, conn, candles, mids, errCh)

	f.replaySubscriptions()

	select {
	case <-connCtx.Done():
		return connCtx.Err()
	case err := <-errCh:
		return err
	}
}

func (f *Feed) writerLoop(ctx context.Context, conn *websocket.Conn, out <-chan wire.SubscribeFrame, errCh chan<- error) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-out:
			if !ok {
				return
			}
			if err := conn.WriteJSON(frame); err != nil {
				select {
				case errCh <- fmt.Errorf("feed: write frame: %w", err):
				default:
				}
				return
			}
		}
	}
}

func (f *Feed) readerLoop(ctx context.Context, conn *websocket.Conn, candles chan<- model.Candle, mids chan<- MidUpdate, errCh chan<- error) {
	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case errCh <- fmt.Errorf("feed: read: %w", err):
			default:
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readDeadline))

		var env wire.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Warn("feed: unparseable frame, skipping", "error", err)
			continue
		}

		switch env.Kind() {
		case wire.FrameCandle:
			candle, err := env.ToCandle()
			if err != nil {
				slog.Warn("feed: skipping candle frame", "error", err)
				continue
			}
			if err := candle.Validate(); err != nil {
				slog.Warn("feed: skipping invalid candle", "error", err)
				continue
			}
			select {
			case candles <- candle:
			case <-ctx.Done():
				return
			}
		case wire.FrameMid:
			symbol, price, err := env.ToMid()
			if err != nil {
				slog.Warn("feed: skipping mid frame", "error", err)
				continue
			}
			select {
			case mids <- MidUpdate{Symbol: symbol, Price: price}:
			case <-ctx.Done():
				return
			default:
			}
		case wire.FrameAck:
			slog.Debug("feed: subscription ack received")
		case wire.FrameError:
			msg := env.ErrorMessage()
			if isFatalAuthError(msg) {
				select {
				case errCh <- fmt.Errorf("feed: fatal error frame: %s", msg):
				default:
				}
				return
			}
			slog.Warn("feed: error frame", "message", msg)
		default:
			slog.Debug("feed: unrecognized frame shape, ignoring")
		}
	}
}

// replaySubscriptions re-sends a subscribe frame for every key currently
// held, regardless of whether the server already knows about it.
func (f *Feed) replaySubscriptions() {
	for key := range f.subs.Iter() {
		subKey, err := model.ParseSubscriptionKey(key)
		if err != nil {
			continue
		}
		f.enqueueFrame(wire.NewSubscribeFrame(subKey))
	}
}

// enqueueFrame drops the frame if the writer queue is full; subscription
// resyncs are idempotent so a dropped resync is corrected on the next replay.
func (f *Feed) enqueueFrame(frame wire.SubscribeFrame) {
	f.mu.Lock()
	ch := f.writerCh
	f.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- frame:
	default:
		slog.Warn("feed: writer queue full, dropping subscribe resync")
	}
}

func (f *Feed) sleepBackoff(ctx context.Context) bool {
	f.setState(StateBackoff)
	d := f.backoff.Duration()
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

func (f *Feed) setState(to State) {
	f.mu.Lock()
	from := f.state
	f.state = to
	f.mu.Unlock()
	if from != to && f.OnStateChange != nil {
		f.OnStateChange(from, to)
	}
}

func isFatalAuthError(msg string) bool {
	return msg == "unauthorized" || msg == "auth_failed" || msg == "invalid_api_key"
}
