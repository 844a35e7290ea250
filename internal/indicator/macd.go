package indicator

import "signalengine/internal/model"

// MACDState is the categorical state attached to a MACD reading.
type MACDState string

const (
	MACDBullishCross    MACDState = "BullishCross"
	MACDBearishCross    MACDState = "BearishCross"
	MACDBullishMomentum MACDState = "BullishMomentum"
	MACDBearishMomentum MACDState = "BearishMomentum"
)

// MACD computes the MACD line, signal line and histogram from three EMAs.
type MACD struct {
	fast, slow, signal     *EMA
	signalPeriod           int
	prevHist               float64
	havePrevHist           bool
	macd, sigVal, hist     float64
	signalSeeded           bool
	signalSum              float64
	signalCount            int
}

// NewMACD creates a MACD indicator (spec default: 12, 26, 9).
func NewMACD(fastPeriod, slowPeriod, signalPeriod int) *MACD {
	return &MACD{
		fast:         NewEMA(fastPeriod),
		slow:         NewEMA(slowPeriod),
		signalPeriod: signalPeriod,
	}
}

func (m *MACD) Update(c model.Candle) {
	m.fast.Update(c)
	m.slow.Update(c)

	if !m.fast.Ready() || !m.slow.Ready() {
		return
	}

	line := m.fast.Value() - m.slow.Value()
	m.macd = line

	if !m.signalSeeded {
		m.signalSum += line
		m.signalCount++
		if m.signalCount == m.signalPeriod {
			m.sigVal = m.signalSum / float64(m.signalPeriod)
			m.signalSeeded = true
		}
		return
	}

	alpha := emaAlpha(m.signalPeriod)
	m.havePrevHist = true
	m.prevHist = m.hist
	m.sigVal = (line-m.sigVal)*alpha + m.sigVal
	m.hist = m.macd - m.sigVal
}

func (m *MACD) Ready() bool      { return m.signalSeeded }
func (m *MACD) Value() float64   { return m.macd }
func (m *MACD) Signal() float64  { return m.sigVal }
func (m *MACD) Histogram() float64 { return m.hist }

// State classifies the MACD/signal relationship.
func (m *MACD) State() MACDState {
	if m.havePrevHist {
		if m.prevHist <= 0 && m.hist > 0 {
			return MACDBullishCross
		}
		if m.prevHist >= 0 && m.hist < 0 {
			return MACDBearishCross
		}
	}
	if m.hist > 0 {
		return MACDBullishMomentum
	}
	return MACDBearishMomentum
}
