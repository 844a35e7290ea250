// Package indicator implements the streaming technical-indicator state
// machines required by the strategy evaluator. Each indicator consumes
// candles left-to-right and exposes a value and/or categorical state;
// output is undefined until the indicator's initialization lead-in has
// been consumed, and callers must treat an undefined output as "not present".
package indicator

import "signalengine/internal/model"

// Stream is the shape every indicator state machine implements.
type Stream interface {
	Update(c model.Candle)
	Ready() bool
}

// EMA smoothing constant α = 2/(period+1); first value seeds from the SMA
// of the first `period` samples.
func emaAlpha(period int) float64 {
	return 2.0 / (float64(period) + 1.0)
}

// wilderAlpha is Wilder's smoothing constant α = 1/period. ATR and RSI apply
// the same smoothing inline as (avg*(period-1) + x) / period rather than
// calling this helper.
func wilderAlpha(period int) float64 {
	return 1.0 / float64(period)
}
