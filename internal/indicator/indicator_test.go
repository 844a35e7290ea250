package indicator

import (
	"testing"
	"time"

	"signalengine/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candleSeries(n int, start float64, step float64) []model.Candle {
	out := make([]model.Candle, n)
	ts := time.Unix(0, 0).UTC()
	price := start
	for i := 0; i < n; i++ {
		out[i] = model.Candle{
			Symbol:    "BTC",
			Interval:  "1m",
			Timestamp: ts.Add(time.Duration(i) * time.Minute),
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    10,
		}
		price += step
	}
	return out
}

func TestEMA_SeedsFromSMA(t *testing.T) {
	ema := NewEMA(5)
	candles := candleSeries(5, 100, 0)
	for _, c := range candles {
		ema.Update(c)
	}
	require.True(t, ema.Ready())
	assert.InDelta(t, 100.0, ema.Value(), 1e-9)
}

func TestRSI_UndefinedBelowLeadIn(t *testing.T) {
	rsi := NewRSI(14)
	for _, c := range candleSeries(13, 100, 1) {
		rsi.Update(c)
	}
	assert.False(t, rsi.Ready())
}

func TestRSI_MonotoneUptrendIsOverbought(t *testing.T) {
	rsi := NewRSI(14)
	for _, c := range candleSeries(30, 100, 0.5) {
		rsi.Update(c)
	}
	require.True(t, rsi.Ready())
	assert.Greater(t, rsi.Value(), 70.0)
	assert.Equal(t, RSIOverbought, rsi.State())
}

func TestCompute_IndicatorsNotReadyBelowMinCandles(t *testing.T) {
	// Compute itself does not enforce MinCandles — the evaluator does — but
	// every indicator should simply remain not-ready on a short slice.
	v := Compute(candleSeries(10, 100, 1))
	assert.False(t, v.rsiOK)
	assert.False(t, v.macdOK)
}

func TestOBV_TracksDirection(t *testing.T) {
	obv := NewOBV()
	obv.Update(model.Candle{Close: 100, Volume: 10})
	obv.Update(model.Candle{Close: 105, Volume: 5})
	obv.Update(model.Candle{Close: 102, Volume: 3})
	require.True(t, obv.Ready())
	assert.Equal(t, OBVFalling, obv.State())
}

func TestVolumeProfile_TiesBreakTowardLowestBucket(t *testing.T) {
	vp := NewVolumeProfile(10, 20)
	// Two buckets (100 and 200) each accumulate equal volume; the tie must
	// resolve the same way on every run, not by map iteration order.
	for i := 0; i < 10; i++ {
		vp.Update(model.Candle{Close: 105, Volume: 4})
		vp.Update(model.Candle{Close: 205, Volume: 4})
	}
	require.True(t, vp.Ready())
	assert.Equal(t, 100.0, vp.POC())
}
