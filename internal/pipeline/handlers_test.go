package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"signalengine/internal/broker"
	"signalengine/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCache and fakeStore are minimal in-memory model.Cache/model.Store
// implementations for exercising the handlers without Redis or SQLite.
type fakeCache struct {
	candles []model.Candle
	err     error
}

func (f *fakeCache) WriteCandle(ctx context.Context, c model.Candle) error { return nil }
func (f *fakeCache) RecentCandles(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error) {
	return f.candles, f.err
}
func (f *fakeCache) Connected() bool { return f.err == nil }
func (f *fakeCache) Close() error    { return nil }

type fakeStore struct {
	candles     []model.Candle
	candlesErr  error
	strategies  []model.Strategy
	strategyErr error
	signals     []model.Signal
	insertErr   error
}

func (f *fakeStore) AppendCandle(ctx context.Context, c model.Candle) error { return nil }
func (f *fakeStore) RecentCandles(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error) {
	return f.candles, f.candlesErr
}
func (f *fakeStore) StrategiesForSymbol(ctx context.Context, symbol string) ([]model.Strategy, error) {
	return f.strategies, f.strategyErr
}
func (f *fakeStore) GetStrategy(ctx context.Context, id int64) (model.Strategy, error) {
	for _, s := range f.strategies {
		if s.ID == id {
			return s, nil
		}
	}
	return model.Strategy{}, errors.New("not found")
}
func (f *fakeStore) ListStrategies(ctx context.Context) ([]model.Strategy, error) {
	return f.strategies, nil
}
func (f *fakeStore) UpsertStrategy(ctx context.Context, s model.Strategy) (model.Strategy, error) {
	return s, nil
}
func (f *fakeStore) DeleteStrategy(ctx context.Context, id int64) error { return nil }
func (f *fakeStore) InsertSignal(ctx context.Context, s model.Signal) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.signals = append(f.signals, s)
	return nil
}
func (f *fakeStore) Connected() bool { return f.candlesErr == nil }
func (f *fakeStore) Close() error    { return nil }

func candleSeries(n int) []model.Candle {
	out := make([]model.Candle, n)
	ts := time.Unix(0, 0).UTC()
	for i := 0; i < n; i++ {
		price := 100 + float64(i)
		out[i] = model.Candle{Symbol: "BTC", Interval: "1m", Timestamp: ts.Add(time.Duration(i) * time.Minute),
			Open: price, High: price + 1, Low: price - 1, Close: price, Volume: 10}
	}
	return out
}

func TestFetchCandles_PrefersCacheOverStore(t *testing.T) {
	h := &Handlers{
		Cache:           &fakeCache{candles: candleSeries(60)},
		Store:           &fakeStore{candles: candleSeries(5)},
		PrimaryInterval: "1m",
	}
	out, err := h.FetchCandles(context.Background(), model.FetchCandlesJob{Symbol: "BTC"})
	require.NoError(t, err)
	assert.Len(t, out.Candles, 60)
}

func TestFetchCandles_FallsBackToStoreWhenCacheShort(t *testing.T) {
	h := &Handlers{
		Cache:           &fakeCache{candles: candleSeries(5)},
		Store:           &fakeStore{candles: candleSeries(60)},
		PrimaryInterval: "1m",
	}
	out, err := h.FetchCandles(context.Background(), model.FetchCandlesJob{Symbol: "BTC"})
	require.NoError(t, err)
	assert.Len(t, out.Candles, 60)
}

func TestFetchCandles_BelowMinCandles_IsRetryable(t *testing.T) {
	h := &Handlers{
		Cache:           &fakeCache{candles: candleSeries(5)},
		Store:           &fakeStore{candles: candleSeries(5)},
		PrimaryInterval: "1m",
	}
	_, err := h.FetchCandles(context.Background(), model.FetchCandlesJob{Symbol: "BTC"})
	require.Error(t, err)
	assert.True(t, broker.IsRetryable(err))
}

func TestFetchCandles_StoreErrorWhenCacheAlsoShort_IsRetryable(t *testing.T) {
	h := &Handlers{
		Cache:           &fakeCache{candles: candleSeries(5)},
		Store:           &fakeStore{candlesErr: errors.New("disk io error")},
		PrimaryInterval: "1m",
	}
	_, err := h.FetchCandles(context.Background(), model.FetchCandlesJob{Symbol: "BTC"})
	require.Error(t, err)
	assert.True(t, broker.IsRetryable(err))
}

func TestEvaluateSignal_NoStrategies_IsNotAnError(t *testing.T) {
	h := &Handlers{Store: &fakeStore{}}
	out, err := h.EvaluateSignal(context.Background(), model.EvaluateSignalJob{Symbol: "BTC", Candles: candleSeries(250)})
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestEvaluateSignal_LoadStrategiesError_IsRetryable(t *testing.T) {
	h := &Handlers{Store: &fakeStore{strategyErr: errors.New("db unavailable")}}
	_, err := h.EvaluateSignal(context.Background(), model.EvaluateSignalJob{Symbol: "BTC", Candles: candleSeries(250)})
	require.Error(t, err)
	assert.True(t, broker.IsRetryable(err))
}

func TestEvaluateSignal_ProducesOneJobPerSignalingStrategy(t *testing.T) {
	ptr := func(f float64) *float64 { return &f }
	strategies := []model.Strategy{
		{ID: 1, Symbol: "BTC", Config: model.StrategyConfig{
			Rules: []model.Rule{{ID: "r1", Type: model.RuleCondition,
				Condition: &model.Condition{Indicator: model.IndicatorRSI, Comparison: model.CompareGreaterThan, Threshold: ptr(-100)}}},
			Aggregation: model.AggregationConfig{Method: model.AggregationSum, Thresholds: model.SignalThresholds{LongMin: 1, ShortMax: -1}},
		}},
	}
	h := &Handlers{Store: &fakeStore{strategies: strategies}}
	out, err := h.EvaluateSignal(context.Background(), model.EvaluateSignalJob{Symbol: "BTC", Candles: candleSeries(250)})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0].StrategyID)
}

func TestStoreSignal_SetsStrategyIDAndInserts(t *testing.T) {
	fs := &fakeStore{}
	h := &Handlers{Store: fs}
	job := model.StoreSignalJob{StrategyID: 7, Signal: model.Signal{Symbol: "BTC", Direction: model.DirectionLong}}
	err := h.StoreSignal(context.Background(), job)
	require.NoError(t, err)
	require.Len(t, fs.signals, 1)
	assert.Equal(t, int64(7), fs.signals[0].StrategyID)
}

func TestStoreSignal_InsertError_IsRetryable(t *testing.T) {
	h := &Handlers{Store: &fakeStore{insertErr: errors.New("constraint violation")}}
	err := h.StoreSignal(context.Background(), model.StoreSignalJob{StrategyID: 1})
	require.Error(t, err)
	assert.True(t, broker.IsRetryable(err))
}
