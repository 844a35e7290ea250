package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"signalengine/internal/model"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := New(Config{Path: filepath.Join(dir, "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_AppendAndRecentCandles_OrderedOldestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		c := model.Candle{
			Symbol: "BTC", Interval: "1m",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 10,
		}
		require.NoError(t, s.AppendCandle(ctx, c))
	}

	candles, err := s.RecentCandles(ctx, "BTC", "1m", 3)
	require.NoError(t, err)
	require.Len(t, candles, 3)
	require.True(t, candles[0].Timestamp.Before(candles[1].Timestamp))
	require.True(t, candles[1].Timestamp.Before(candles[2].Timestamp))
}

func TestStore_UpsertStrategy_AssignsIDThenUpdates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	st := model.Strategy{
		Name:   "trend-follow",
		Symbol: "ETH",
		Config: model.StrategyConfig{
			Aggregation: model.AggregationConfig{Method: model.AggregationSum},
		},
	}

	created, err := s.UpsertStrategy(ctx, st)
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	created.Name = "trend-follow-v2"
	updated, err := s.UpsertStrategy(ctx, created)
	require.NoError(t, err)
	require.Equal(t, created.ID, updated.ID)

	fetched, err := s.GetStrategy(ctx, updated.ID)
	require.NoError(t, err)
	require.Equal(t, "trend-follow-v2", fetched.Name)
}

func TestStore_InsertSignal_IdempotentOnStrategyAndTimestamp(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sig := model.Signal{
		StrategyID: 1,
		Symbol:     "BTC",
		Direction:  model.DirectionLong,
		Confidence: 0.8,
		Price:      50000,
		Timestamp:  time.Now().UTC(),
	}

	require.NoError(t, s.InsertSignal(ctx, sig))
	sig.Confidence = 0.9
	require.NoError(t, s.InsertSignal(ctx, sig)) // same key, replaces rather than duplicates
}

func TestStore_DeleteStrategy_RemovesRow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	created, err := s.UpsertStrategy(ctx, model.Strategy{Name: "temp", Symbol: "BTC"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteStrategy(ctx, created.ID))

	_, err = s.GetStrategy(ctx, created.ID)
	require.Error(t, err)
}
