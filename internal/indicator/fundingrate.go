package indicator

import "signalengine/internal/model"

// FundingRateState classifies a rolling-mean funding rate.
type FundingRateState string

const (
	FundingExtremeLong  FundingRateState = "ExtremeLong"  // persistently high positive funding
	FundingExtremeShort FundingRateState = "ExtremeShort"  // persistently high negative funding
	FundingNeutral      FundingRateState = "Neutral"
)

// FundingRate computes a rolling mean of the funding rate over `window` samples.
type FundingRate struct {
	window int
	buf    []float64
	idx    int
	count  int
	sum    float64
	mean   float64
}

// NewFundingRate creates a FundingRate indicator (spec default window: 24).
func NewFundingRate(window int) *FundingRate {
	return &FundingRate{window: window, buf: make([]float64, window)}
}

func (f *FundingRate) Update(c model.Candle) {
	if c.FundingRate == nil {
		return
	}
	rate := *c.FundingRate
	if f.count >= f.window {
		f.sum -= f.buf[f.idx]
	} else {
		f.count++
	}
	f.buf[f.idx] = rate
	f.sum += rate
	f.idx = (f.idx + 1) % f.window
	f.mean = f.sum / float64(f.count)
}

func (f *FundingRate) Ready() bool    { return f.count >= f.window }
func (f *FundingRate) Value() float64 { return f.mean }

func (f *FundingRate) State() FundingRateState {
	if !f.Ready() {
		return FundingNeutral
	}
	switch {
	case f.mean > 0.0005:
		return FundingExtremeLong
	case f.mean < -0.0005:
		return FundingExtremeShort
	default:
		return FundingNeutral
	}
}
