package indicator

import (
	"signalengine/internal/model"

	"gonum.org/v1/gonum/stat"
)

// BollingerState is the categorical band state.
type BollingerState string

const (
	BollingerSqueeze  BollingerState = "Squeeze"
	BollingerBreakout BollingerState = "Breakout"
	BollingerInside   BollingerState = "Inside"
)

// Bollinger tracks a rolling SMA and standard deviation over `period`
// samples (spec default: 20, 2σ), using gonum's stat.StdDev for the
// sample (n-1) standard deviation of the window.
type Bollinger struct {
	period int
	k      float64
	buf    []float64
	idx    int
	count  int

	mid, upper, lower float64
	bandwidth         float64
	baseline          float64
	readings          int
}

// NewBollinger creates a Bollinger Bands indicator.
func NewBollinger(period int, k float64) *Bollinger {
	return &Bollinger{period: period, k: k, buf: make([]float64, period)}
}

func (b *Bollinger) Update(c model.Candle) {
	b.buf[b.idx] = c.Close
	b.idx = (b.idx + 1) % b.period
	if b.count < b.period {
		b.count++
	}
	if b.count < b.period {
		return
	}

	window := make([]float64, b.period)
	copy(window, b.buf)
	mean := stat.Mean(window, nil)
	sd := stat.StdDev(window, nil)

	b.mid = mean
	b.upper = mean + b.k*sd
	b.lower = mean - b.k*sd
	b.bandwidth = b.upper - b.lower

	b.readings++
	b.baseline += (b.bandwidth - b.baseline) / float64(b.readings)
}

func (b *Bollinger) Ready() bool     { return b.count >= b.period }
func (b *Bollinger) Mid() float64    { return b.mid }
func (b *Bollinger) Upper() float64  { return b.upper }
func (b *Bollinger) Lower() float64  { return b.lower }

// State classifies band width against its own trailing baseline, or flags
// a close outside the bands as a breakout.
func (b *Bollinger) State(lastClose float64) BollingerState {
	if !b.Ready() {
		return BollingerInside
	}
	if lastClose > b.upper || lastClose < b.lower {
		return BollingerBreakout
	}
	if b.baseline > 0 && b.bandwidth < 0.5*b.baseline {
		return BollingerSqueeze
	}
	return BollingerInside
}
