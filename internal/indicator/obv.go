package indicator

import "signalengine/internal/model"

// OBVState is the categorical trend of the On-Balance Volume running sum.
type OBVState string

const (
	OBVRising  OBVState = "Rising"
	OBVFalling OBVState = "Falling"
	OBVFlat    OBVState = "Flat"
)

// OBV is the On-Balance Volume running sum: add volume on an up close,
// subtract on a down close, unchanged on a flat close.
type OBV struct {
	prevClose float64
	haveClose bool
	value     float64
	prevValue float64
	seen      int
}

// NewOBV creates an OBV indicator.
func NewOBV() *OBV { return &OBV{} }

func (o *OBV) Update(c model.Candle) {
	if !o.haveClose {
		o.prevClose = c.Close
		o.haveClose = true
		o.seen++
		return
	}
	o.prevValue = o.value
	switch {
	case c.Close > o.prevClose:
		o.value += c.Volume
	case c.Close < o.prevClose:
		o.value -= c.Volume
	}
	o.prevClose = c.Close
	o.seen++
}

func (o *OBV) Ready() bool    { return o.seen >= 2 }
func (o *OBV) Value() float64 { return o.value }

func (o *OBV) State() OBVState {
	if !o.Ready() {
		return OBVFlat
	}
	switch {
	case o.value > o.prevValue:
		return OBVRising
	case o.value < o.prevValue:
		return OBVFalling
	default:
		return OBVFlat
	}
}
