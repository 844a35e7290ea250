// cmd/api-server exposes the read-only strategy listing surface alongside
// the standard health and metrics endpoints. It never touches the feed or
// the job queues; it only reads the store the worker writes to.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"signalengine/config"
	"signalengine/internal/api"
	"signalengine/internal/logging"
	"signalengine/internal/metrics"
	"signalengine/internal/store/sqlite"
)

func main() {
	cfg := config.Load()
	logger := logging.Init("api-server", slog.LevelInfo)
	logger.Info("starting api-server", "addr", cfg.MetricsAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	m := metrics.New()
	m.StartResourceSampler(ctx, 15*time.Second)
	health := metrics.NewHealth()

	store, err := sqlite.New(sqlite.Config{Path: cfg.SQLitePath})
	if err != nil {
		logger.Error("sqlite init failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	router := api.NewRouter(store)
	server := metrics.NewServer(cfg.MetricsAddr, health, func(mux *http.ServeMux) {
		mux.Handle("/api/v1/strategies", router)
		mux.Handle("/api/v1/strategies/", router)
	})
	server.Start()

	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if store.Connected() {
					m.StoreConnected.Set(1)
				} else {
					m.StoreConnected.Set(0)
				}
			}
		}
	}()

	logger.Info("api-server running")
	<-sigCh
	logger.Info("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	server.Stop(shutdownCtx)

	logger.Info("api-server shutdown complete")
}
