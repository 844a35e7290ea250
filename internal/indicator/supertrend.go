package indicator

import "signalengine/internal/model"

// SuperTrendState is the categorical trend state.
type SuperTrendState string

const (
	SuperTrendUptrend   SuperTrendState = "Uptrend"
	SuperTrendDowntrend SuperTrendState = "Downtrend"
	SuperTrendFlip      SuperTrendState = "Flip"
)

// SuperTrend is an ATR-trailing-band trend indicator (spec default: period
// 10, multiplier 3).
type SuperTrend struct {
	atr        *ATR
	multiplier float64
	upperBand  float64
	lowerBand  float64
	value      float64
	trendUp    bool
	haveTrend  bool
	flipped    bool
}

// NewSuperTrend creates a SuperTrend indicator with the given ATR period and multiplier.
func NewSuperTrend(period int, multiplier float64) *SuperTrend {
	return &SuperTrend{atr: NewATR(period), multiplier: multiplier}
}

func (s *SuperTrend) Update(c model.Candle) {
	s.atr.Update(c)
	s.flipped = false
	if !s.atr.Ready() {
		return
	}

	mid := (c.High + c.Low) / 2
	basicUpper := mid + s.multiplier*s.atr.Value()
	basicLower := mid - s.multiplier*s.atr.Value()

	if !s.haveTrend {
		s.upperBand = basicUpper
		s.lowerBand = basicLower
		s.trendUp = c.Close >= mid
		s.haveTrend = true
	} else {
		if basicUpper < s.upperBand || c.Close > s.upperBand {
			s.upperBand = basicUpper
		}
		if basicLower > s.lowerBand || c.Close < s.lowerBand {
			s.lowerBand = basicLower
		}

		wasUp := s.trendUp
		switch {
		case s.trendUp && c.Close < s.lowerBand:
			s.trendUp = false
		case !s.trendUp && c.Close > s.upperBand:
			s.trendUp = true
		}
		if wasUp != s.trendUp {
			s.flipped = true
		}
	}

	if s.trendUp {
		s.value = s.lowerBand
	} else {
		s.value = s.upperBand
	}
}

func (s *SuperTrend) Ready() bool    { return s.atr.Ready() && s.haveTrend }
func (s *SuperTrend) Value() float64 { return s.value }

func (s *SuperTrend) State() SuperTrendState {
	if s.flipped {
		return SuperTrendFlip
	}
	if s.trendUp {
		return SuperTrendUptrend
	}
	return SuperTrendDowntrend
}
