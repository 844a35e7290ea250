package indicator

import "signalengine/internal/model"

// Values bundles every indicator's computed output for one evaluation.
// The rule evaluator queries it by indicator kind instead of dispatching on
// indicator name at hot-path time (spec design note §9).
type Values struct {
	CurrentPrice float64

	RSIValue float64
	RSIState RSIState
	rsiOK    bool

	MACDValue float64
	MACDState MACDState
	macdOK    bool

	EMAFast, EMASlow float64
	EMAState         EMACrossoverState
	emaOK            bool

	SuperTrendValue float64
	SuperTrendState SuperTrendState
	supertrendOK    bool

	BollingerMid, BollingerUpper, BollingerLower float64
	BollingerState                              BollingerState
	bollingerOK                                  bool

	ATRValue float64
	ATRState ATRRegime
	atrOK    bool

	OBVValue float64
	OBVState OBVState
	obvOK    bool

	VolumeProfilePOC   float64
	VolumeProfileState VolumeProfileState
	volumeProfileOK    bool

	OpenInterestState OpenInterestState
	oiOK              bool

	FundingRateValue float64
	FundingRateState FundingRateState
	fundingOK        bool
}

// Has reports whether the indicator produced a defined output this call.
func (v *Values) Has(kind model.IndicatorType) bool {
	switch kind {
	case model.IndicatorRSI:
		return v.rsiOK
	case model.IndicatorMACD:
		return v.macdOK
	case model.IndicatorEMA:
		return v.emaOK
	case model.IndicatorSuperTrend:
		return v.supertrendOK
	case model.IndicatorBollinger:
		return v.bollingerOK
	case model.IndicatorATR:
		return v.atrOK
	case model.IndicatorOBV:
		return v.obvOK
	case model.IndicatorVolumeProfile:
		return v.volumeProfileOK
	case model.IndicatorOpenInterest:
		return v.oiOK
	case model.IndicatorFundingRate:
		return v.fundingOK
	default:
		return false
	}
}

// NumericValue returns the indicator's primary numeric output, if it has one.
// OBV, VolumeProfile and OpenInterest report no numeric value here (their
// OBVValue/VolumeProfilePOC fields are not exposed through this method);
// only their categorical state is queryable.
func (v *Values) NumericValue(kind model.IndicatorType) (float64, bool) {
	switch kind {
	case model.IndicatorRSI:
		return v.RSIValue, v.rsiOK
	case model.IndicatorMACD:
		return v.MACDValue, v.macdOK
	case model.IndicatorEMA:
		return v.EMAFast, v.emaOK
	case model.IndicatorSuperTrend:
		return v.SuperTrendValue, v.supertrendOK
	case model.IndicatorBollinger:
		return v.BollingerMid, v.bollingerOK
	case model.IndicatorATR:
		return v.ATRValue, v.atrOK
	case model.IndicatorFundingRate:
		return v.FundingRateValue, v.fundingOK
	default:
		return 0, false
	}
}

// StateValue returns the indicator's categorical state as a string, if any.
func (v *Values) StateValue(kind model.IndicatorType) (string, bool) {
	switch kind {
	case model.IndicatorRSI:
		return string(v.RSIState), v.rsiOK
	case model.IndicatorMACD:
		return string(v.MACDState), v.macdOK
	case model.IndicatorEMA:
		return string(v.EMAState), v.emaOK
	case model.IndicatorSuperTrend:
		return string(v.SuperTrendState), v.supertrendOK
	case model.IndicatorBollinger:
		return string(v.BollingerState), v.bollingerOK
	case model.IndicatorATR:
		return string(v.ATRState), v.atrOK
	case model.IndicatorOBV:
		return string(v.OBVState), v.obvOK
	case model.IndicatorVolumeProfile:
		return string(v.VolumeProfileState), v.volumeProfileOK
	case model.IndicatorOpenInterest:
		return string(v.OpenInterestState), v.oiOK
	case model.IndicatorFundingRate:
		return string(v.FundingRateState), v.fundingOK
	default:
		return "", false
	}
}

// Compute replays candles left-to-right through a fresh instance of every
// indicator and returns the resulting snapshot. Stateless: callers own no
// indicator state across invocations.
func Compute(candles []model.Candle) Values {
	rsi := NewRSI(14)
	macd := NewMACD(12, 26, 9)
	ema := NewEMACrossover(20, 50)
	atr := NewATR(14)
	st := NewSuperTrend(10, 3)
	boll := NewBollinger(20, 2)
	obv := NewOBV()
	vp := NewVolumeProfile(10.0, 240)
	oi := NewOpenInterest()
	fr := NewFundingRate(24)

	for _, c := range candles {
		rsi.Update(c)
		macd.Update(c)
		ema.Update(c)
		atr.Update(c)
		st.Update(c)
		boll.Update(c)
		obv.Update(c)
		vp.Update(c)
		oi.Update(c)
		fr.Update(c)
	}

	last := candles[len(candles)-1]
	var v Values
	v.CurrentPrice = last.Close

	if rsi.Ready() {
		v.RSIValue, v.RSIState, v.rsiOK = rsi.Value(), rsi.State(), true
	}
	if macd.Ready() {
		v.MACDValue, v.MACDState, v.macdOK = macd.Value(), macd.State(), true
	}
	if ema.Ready() {
		v.EMAFast, v.EMASlow, v.EMAState, v.emaOK = ema.Fast(), ema.Slow(), ema.State(), true
	}
	if st.Ready() {
		v.SuperTrendValue, v.SuperTrendState, v.supertrendOK = st.Value(), st.State(), true
	}
	if boll.Ready() {
		v.BollingerMid, v.BollingerUpper, v.BollingerLower = boll.Mid(), boll.Upper(), boll.Lower()
		v.BollingerState, v.bollingerOK = boll.State(last.Close), true
	}
	if atr.Ready() {
		v.ATRValue, v.ATRState, v.atrOK = atr.Value(), atr.Regime(), true
	}
	if obv.Ready() {
		v.OBVValue, v.OBVState, v.obvOK = obv.Value(), obv.State(), true
	}
	if vp.Ready() {
		v.VolumeProfilePOC, v.VolumeProfileState, v.volumeProfileOK = vp.POC(), vp.State(last.Close), true
	}
	if oi.Ready() {
		v.OpenInterestState, v.oiOK = oi.State(), true
	}
	if fr.Ready() {
		v.FundingRateValue, v.FundingRateState, v.fundingOK = fr.Value(), fr.State(), true
	}

	return v
}
