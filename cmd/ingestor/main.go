// cmd/ingestor runs the exchange feed client (spec.md §4.1): it maintains
// the reconnecting websocket connection, buffers candles per (symbol,
// interval) in memory, and write-throughs to the cache and store.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"signalengine/config"
	"signalengine/internal/cache"
	"signalengine/internal/fanout"
	"signalengine/internal/feed"
	"signalengine/internal/logging"
	"signalengine/internal/metrics"
	"signalengine/internal/model"
	"signalengine/internal/ringbuf"
	"signalengine/internal/store/sqlite"
)

const ringCapacity = 1000

func main() {
	cfg := config.Load()
	logger := logging.Init("ingestor", slog.LevelInfo)
	logger.Info("starting ingestor", "endpoint", cfg.FeedEndpoint, "symbols", cfg.Symbols, "environment", cfg.Environment)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	m := metrics.New()
	m.StartResourceSampler(ctx, 15*time.Second)
	health := metrics.NewHealth()

	rings := ringbuf.NewRegistry(ringCapacity)
	metricsServer := metrics.NewServer(cfg.MetricsAddr, health, func(mux *http.ServeMux) {
		mux.HandleFunc("/debug/ring", ringDebugHandler(rings, cfg.PrimaryInterval))
	})
	metricsServer.Start()

	store, err := sqlite.New(sqlite.Config{Path: cfg.SQLitePath})
	if err != nil {
		logger.Error("sqlite init failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	candleCache, err := cache.New(ctx, cache.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err != nil {
		logger.Error("redis cache init failed", "error", err)
		os.Exit(1)
	}
	defer candleCache.Close()

	bufferedCache := cache.NewBufferedCache(candleCache, 0)
	bufferedCache.OnBuffer = func(pending int) {
		logger.Warn("cache unavailable, buffering candle locally", "pending", pending)
	}
	bufferedCache.OnFlush = func(flushed int) {
		logger.Info("flushed buffered candles to cache", "count", flushed)
	}

	f := feed.New(feed.Config{Endpoint: cfg.FeedEndpoint})
	f.OnStateChange = func(from, to feed.State) {
		logger.Info("feed state transition", "from", from, "to", to)
		if to == feed.StateConnected {
			m.WebsocketConnected.Set(1)
		} else {
			m.WebsocketConnected.Set(0)
		}
	}

	for _, symbol := range cfg.Symbols {
		f.Subscribe(model.SubscriptionKey{Channel: "candle", Symbol: symbol, Interval: cfg.PrimaryInterval})
	}

	candles := make(chan model.Candle, 256)
	mids := make(chan feed.MidUpdate, 64)

	fo := fanout.New(256)
	cacheOut := fo.Subscribe()
	storeOut := fo.Subscribe()
	broadcast := make(chan model.Candle, 256)
	go fo.Run(ctx, broadcast)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for c := range cacheOut {
			writeCtx, writeCancel := context.WithTimeout(ctx, cfg.CacheTimeout)
			if err := bufferedCache.WriteCandle(writeCtx, c); err != nil {
				logger.Warn("cache write-through failed", "symbol", c.Symbol, "interval", c.Interval, "error", err)
			}
			writeCancel()
			m.CacheConnected.Set(boolFloat(candleCache.Connected()))
		}
	}()
	go func() {
		defer wg.Done()
		for c := range storeOut {
			writeCtx, writeCancel := context.WithTimeout(ctx, cfg.StoreTimeout)
			if err := store.AppendCandle(writeCtx, c); err != nil {
				logger.Warn("store write-through failed", "symbol", c.Symbol, "interval", c.Interval, "error", err)
			}
			writeCancel()
			m.StoreConnected.Set(boolFloat(store.Connected()))
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case c, ok := <-candles:
				if !ok {
					return
				}
				if rings.Push(c.Key(), c) {
					m.RingBufferOverflow.Inc()
				}
				select {
				case broadcast <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	go func() {
		if err := f.Run(ctx, candles, mids); err != nil && ctx.Err() == nil {
			logger.Error("feed run exited", "error", err)
		}
	}()

	logger.Info("ingestor running")
	<-sigCh
	logger.Info("shutdown signal received")
	cancel()

	drained := make(chan struct{})
	go func() {
		wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(5 * time.Second):
		logger.Warn("timed out waiting for write-through goroutines to drain")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	metricsServer.Stop(shutdownCtx)

	logger.Info("ingestor shutdown complete")
}

func boolFloat(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}

// ringDebugHandler serves the in-memory per-(symbol,interval) candle window
// for operator inspection: GET /debug/ring?symbol=BTC[&interval=1m]. This is
// the "downstream reader" of the ring buffer the spec's buffer-read
// scenario (§8 scenario 3) exercises, independent of the cache/store path.
func ringDebugHandler(rings *ringbuf.Registry, defaultInterval string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("symbol")
		if symbol == "" {
			http.Error(w, "missing symbol query parameter", http.StatusBadRequest)
			return
		}
		interval := r.URL.Query().Get("interval")
		if interval == "" {
			interval = defaultInterval
		}

		key := (&model.Candle{Symbol: symbol, Interval: interval}).Key()
		candles := rings.Snapshot(key)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(candles)
	}
}
