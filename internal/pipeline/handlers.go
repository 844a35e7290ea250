// Package pipeline implements the Fetch -> Evaluate -> Store job handlers
// and the scheduler that feeds them (spec.md §4.2-4.4). Handlers are plain
// functions over model.Queue/Cache/Store ports; Service in service.go wires
// them to the concrete Redis/SQLite adapters and runs the worker pool.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"signalengine/internal/broker"
	"signalengine/internal/metrics"
	"signalengine/internal/model"
	"signalengine/internal/strategy"
)

// Handlers holds the dependencies every stage handler needs.
type Handlers struct {
	Store           model.Store
	Cache           model.Cache
	PrimaryInterval string
	Metrics         *metrics.Metrics
}

// FetchCandles reads up to 250 recent candles for job.Symbol, preferring the
// cache and falling back to the store, and returns the next stage's job.
// Spec §4.3.1.
func (h *Handlers) FetchCandles(ctx context.Context, job model.FetchCandlesJob) (model.EvaluateSignalJob, error) {
	const limit = 250

	candles, err := h.Cache.RecentCandles(ctx, job.Symbol, h.PrimaryInterval, limit)
	if err != nil {
		slog.Warn("pipeline: cache read failed, falling back to store", "symbol", job.Symbol, "error", err)
	}

	if len(candles) < model.MinCandles {
		storeCandles, storeErr := h.Store.RecentCandles(ctx, job.Symbol, h.PrimaryInterval, limit)
		if storeErr != nil {
			return model.EvaluateSignalJob{}, broker.Retryable(
				fmt.Errorf("fetch candles for %s: cache error=%v, store error=%w", job.Symbol, err, storeErr))
		}
		candles = storeCandles
	}

	if len(candles) < model.MinCandles {
		return model.EvaluateSignalJob{}, broker.Retryable(
			fmt.Errorf("fetch candles for %s: have %d, need at least %d", job.Symbol, len(candles), model.MinCandles))
	}

	return model.EvaluateSignalJob{Symbol: job.Symbol, Candles: candles}, nil
}

// EvaluateSignal loads every strategy bound to job.Symbol and evaluates each
// against job.Candles, returning one StoreSignalJob per non-null signal.
// Spec §4.3.2.
func (h *Handlers) EvaluateSignal(ctx context.Context, job model.EvaluateSignalJob) ([]model.StoreSignalJob, error) {
	strategies, err := h.Store.StrategiesForSymbol(ctx, job.Symbol)
	if err != nil {
		return nil, broker.Retryable(fmt.Errorf("evaluate: load strategies for %s: %w", job.Symbol, err))
	}
	if len(strategies) == 0 {
		return nil, nil
	}

	out := make([]model.StoreSignalJob, 0, len(strategies))
	for _, st := range strategies {
		sig := h.evaluateOne(st, job.Candles)
		if sig == nil {
			continue
		}
		if h.Metrics != nil {
			h.Metrics.SignalEvaluationsTotal.WithLabelValues(string(sig.Direction)).Inc()
		}
		out = append(out, model.StoreSignalJob{StrategyID: st.ID, Signal: *sig})
	}
	return out, nil
}

// evaluateOne evaluates a single strategy, recovering from a panic in the
// evaluator so one malformed strategy cannot take down its siblings.
func (h *Handlers) evaluateOne(st model.Strategy, candles []model.Candle) (sig *model.Signal) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("pipeline: strategy evaluation panicked", "strategy_id", st.ID, "panic", r)
			sig = nil
		}
	}()

	start := time.Now()
	sig = strategy.Evaluate(st, candles)
	if h.Metrics != nil {
		h.Metrics.SignalEvaluationDuration.Observe(time.Since(start).Seconds())
	}
	return sig
}

// StoreSignal performs exactly one idempotent insert into the signal table.
// Spec §4.3.3.
func (h *Handlers) StoreSignal(ctx context.Context, job model.StoreSignalJob) error {
	sig := job.Signal
	sig.StrategyID = job.StrategyID
	if err := h.Store.InsertSignal(ctx, sig); err != nil {
		return broker.Retryable(fmt.Errorf("store signal for strategy %d: %w", job.StrategyID, err))
	}
	return nil
}
