package strategy

import (
	"testing"
	"time"

	"signalengine/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uptrendCandles(n int) []model.Candle {
	out := make([]model.Candle, n)
	ts := time.Unix(0, 0).UTC()
	for i := 0; i < n; i++ {
		price := 100 + 0.5*float64(i)
		out[i] = model.Candle{
			Symbol: "BTC", Interval: "1m",
			Timestamp: ts.Add(time.Duration(i) * time.Minute),
			Open:      price, High: price + 1, Low: price - 1, Close: price, Volume: 10,
		}
	}
	return out
}

func rangingCandles(n int) []model.Candle {
	out := make([]model.Candle, n)
	ts := time.Unix(0, 0).UTC()
	for i := 0; i < n; i++ {
		price := 100 + 5*sinApprox(float64(i)/20)
		out[i] = model.Candle{
			Symbol: "BTC", Interval: "1m",
			Timestamp: ts.Add(time.Duration(i) * time.Minute),
			Open:      price, High: price + 0.5, Low: price - 0.5, Close: price, Volume: 10,
		}
	}
	return out
}

// sinApprox avoids importing math purely for a periodic test fixture.
func sinApprox(x float64) float64 {
	// crude triangle wave, period 2π-equivalent over x in "cycles"
	frac := x - float64(int(x))
	if frac < 0 {
		frac += 1
	}
	if frac < 0.5 {
		return 4*frac - 1
	}
	return 3 - 4*frac
}

func ptr(f float64) *float64 { return &f }

func TestEvaluate_MonotoneUptrend_AlwaysPassRSI(t *testing.T) {
	s := model.Strategy{
		ID: 1, Symbol: "BTC",
		Config: model.StrategyConfig{
			Rules: []model.Rule{{
				ID: "r1", Type: model.RuleCondition,
				Condition: &model.Condition{Indicator: model.IndicatorRSI, Comparison: model.CompareGreaterThan, Threshold: ptr(-100)},
			}},
			Aggregation: model.AggregationConfig{Method: model.AggregationSum, Thresholds: model.SignalThresholds{LongMin: 1, ShortMax: -1}},
		},
	}
	sig := Evaluate(s, uptrendCandles(250))
	require.NotNil(t, sig)
	assert.Equal(t, model.DirectionLong, sig.Direction)
	assert.InDelta(t, 1.0, sig.Confidence, 1e-9)
	assert.NotEmpty(t, sig.Reasons)
}

func TestEvaluate_RangingMarket_NoCrossObserved(t *testing.T) {
	state := "BullishCross"
	s := model.Strategy{
		ID: 2, Symbol: "BTC",
		Config: model.StrategyConfig{
			Rules: []model.Rule{{
				ID: "r1", Type: model.RuleCondition,
				Condition: &model.Condition{Indicator: model.IndicatorMACD, Comparison: model.CompareSignalState, SignalState: &state},
			}},
			// A failed condition scores -1, so the short threshold sits below it.
			Aggregation: model.AggregationConfig{Method: model.AggregationSum, Thresholds: model.SignalThresholds{LongMin: 1, ShortMax: -2}},
		},
	}
	sig := Evaluate(s, rangingCandles(250))
	require.NotNil(t, sig)
	assert.Equal(t, model.DirectionNeutral, sig.Direction)
}

func TestEvaluate_BelowMinCandles_ReturnsNil(t *testing.T) {
	s := model.Strategy{ID: 3, Symbol: "BTC", Config: model.StrategyConfig{
		Aggregation: model.AggregationConfig{Thresholds: model.SignalThresholds{LongMin: 1, ShortMax: -1}},
	}}
	assert.Nil(t, Evaluate(s, uptrendCandles(49)))
}

func TestEvaluate_ZeroTotalWithSymmetricThresholds_IsNeutral(t *testing.T) {
	s := model.Strategy{
		ID: 4, Symbol: "BTC",
		Config: model.StrategyConfig{
			// One failing (-1) and one passing (+1) condition: total is 0.
			Rules: []model.Rule{
				{ID: "a", Type: model.RuleCondition, Condition: &model.Condition{Indicator: model.IndicatorRSI, Comparison: model.CompareGreaterThan, Threshold: ptr(1000)}},
				{ID: "b", Type: model.RuleCondition, Condition: &model.Condition{Indicator: model.IndicatorRSI, Comparison: model.CompareGreaterThan, Threshold: ptr(-100)}},
			},
			Aggregation: model.AggregationConfig{Method: model.AggregationSum, Thresholds: model.SignalThresholds{LongMin: 1, ShortMax: -1}},
		},
	}
	sig := Evaluate(s, uptrendCandles(250))
	require.NotNil(t, sig)
	assert.Equal(t, model.DirectionNeutral, sig.Direction)
}

func TestEvaluate_Deterministic(t *testing.T) {
	s := model.Strategy{
		ID: 5, Symbol: "BTC",
		Config: model.StrategyConfig{
			Rules: []model.Rule{{ID: "r1", Type: model.RuleCondition, Condition: &model.Condition{Indicator: model.IndicatorRSI, Comparison: model.CompareGreaterThan, Threshold: ptr(-100)}}},
			Aggregation: model.AggregationConfig{Method: model.AggregationSum, Thresholds: model.SignalThresholds{LongMin: 1, ShortMax: -1}},
		},
	}
	candles := uptrendCandles(250)
	sig1 := Evaluate(s, candles)
	sig2 := Evaluate(s, candles)
	require.NotNil(t, sig1)
	require.NotNil(t, sig2)
	assert.Equal(t, sig1.Direction, sig2.Direction)
	assert.Equal(t, sig1.Confidence, sig2.Confidence)
}
