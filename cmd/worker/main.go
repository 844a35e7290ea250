// cmd/worker runs the Scheduler and the three Fetch/Evaluate/Store worker
// pools (spec.md §4.2-§4.4) plus the metrics and health HTTP surface.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"signalengine/config"
	"signalengine/internal/cache"
	"signalengine/internal/logging"
	"signalengine/internal/metrics"
	"signalengine/internal/pipeline"
	"signalengine/internal/store/sqlite"
)

func main() {
	cfg := config.Load()
	logger := logging.Init("worker", slog.LevelInfo)
	logger.Info("starting worker", "symbols", cfg.Symbols, "eval_interval_s", cfg.EvalIntervalSeconds)

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

	if err := sqlite.SeedDefaultStrategies(ctx, store, cfg.StrategySeedPath); err != nil {
		logger.Warn("strategy seed failed", "error", err)
	}

	candleCache, err := cache.New(ctx, cache.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err != nil {
		logger.Error("redis cache init failed", "error", err)
		os.Exit(1)
	}
	defer candleCache.Close()

	svc, err := pipeline.New(ctx, pipeline.ServiceConfig{
		Symbols:         cfg.Symbols,
		EvalInterval:    time.Duration(cfg.EvalIntervalSeconds) * time.Second,
		Concurrency:     cfg.EffectiveConcurrency(),
		PrimaryInterval: cfg.PrimaryInterval,

		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		ConsumerGroup: cfg.ConsumerGroup,
		ConsumerName:  cfg.ConsumerName,

		PELReclaimInterval: cfg.PELReclaimInterval,
		PELMinIdle:         cfg.PELMinIdle,

		Store:   store,
		Cache:   candleCache,
		Metrics: m,
	})
	if err != nil {
		logger.Error("pipeline init failed", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	metricsServer := metrics.NewServer(cfg.MetricsAddr, health, nil)
	metricsServer.Start()

	go func() {
		candleCache.Connected()
		store.Connected()
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				boolToGauge(m.CacheConnected, candleCache.Connected())
				boolToGauge(m.StoreConnected, store.Connected())
			}
		}
	}()

	go svc.Run(ctx)

	logger.Info("worker running", "concurrency", cfg.EffectiveConcurrency())
	<-sigCh
	logger.Info("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	metricsServer.Stop(shutdownCtx)

	logger.Info("worker shutdown complete")
}

func boolToGauge(g interface{ Set(float64) }, ok bool) {
	if ok {
		g.Set(1)
		return
	}
	g.Set(0)
}
