// Package wire defines the JSON frame shapes exchanged with the market data
// feed, and the conversion from its decimal-string OHLCV encoding into
// model.Candle.
package wire

import (
	"encoding/json"
	"fmt"
	"time"

	"signalengine/internal/model"

	"github.com/shopspring/decimal"
)

// SubscribeFrame is the outbound frame that opens a candle subscription.
type SubscribeFrame struct {
	Method       string       `json:"method"`
	Subscription Subscription `json:"subscription"`
}

// Subscription names one channel the feed should stream.
type Subscription struct {
	Type     string `json:"type"`
	Coin     string `json:"coin"`
	Interval string `json:"interval,omitempty"`
}

// NewSubscribeFrame builds the outbound subscribe frame for one candle key.
func NewSubscribeFrame(key model.SubscriptionKey) SubscribeFrame {
	return SubscribeFrame{
		Method: "subscribe",
		Subscription: Subscription{
			Type:     "candle",
			Coin:     key.Symbol,
			Interval: key.Interval,
		},
	}
}

// Envelope is the shape every inbound frame is first decoded into, so the
// reader can route on the fields actually present before fully parsing.
type Envelope struct {
	Channel      string          `json:"channel,omitempty"`
	Method       string          `json:"method,omitempty"`
	Subscription json.RawMessage `json:"subscription,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`

	// Candle frame fields, all decimal strings on the wire except t/T.
	T int64  `json:"t,omitempty"`
	TEnd int64  `json:"T,omitempty"`
	S    string `json:"s,omitempty"`
	I    string `json:"i,omitempty"`
	O    string `json:"o,omitempty"`
	H    string `json:"h,omitempty"`
	L    string `json:"l,omitempty"`
	C    string `json:"c,omitempty"`
	V    string `json:"v,omitempty"`

	// Mid-price frame fields.
	Coin string `json:"coin,omitempty"`
	Px   string `json:"px,omitempty"`
}

// FrameKind classifies a decoded Envelope.
type FrameKind int

const (
	FrameUnknown FrameKind = iota
	FrameCandle
	FrameMid
	FrameAck
	FrameError
)

// Kind classifies the envelope by which fields are populated, per the wire
// contract: candle frames carry s/i/c, mid frames carry coin/px, acks echo
// method+subscription, errors carry channel=="error".
func (e Envelope) Kind() FrameKind {
	switch {
	case e.Channel == "error":
		return FrameError
	case e.Method == "subscribe" && len(e.Subscription) > 0:
		return FrameAck
	case e.S != "" && e.C != "":
		return FrameCandle
	case e.Coin != "" && e.Px != "":
		return FrameMid
	default:
		return FrameUnknown
	}
}

// ErrorMessage extracts the error frame's message.
func (e Envelope) ErrorMessage() string {
	var d struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(e.Data, &d)
	return d.Error
}

// ToCandle converts a candle envelope into a model.Candle. Numeric fields are
// parsed via shopspring/decimal since the wire represents them as strings to
// avoid float round-tripping loss.
func (e Envelope) ToCandle() (model.Candle, error) {
	open, err := parseDecimal(e.O)
	if err != nil {
		return model.Candle{}, fmt.Errorf("wire: parse open %q: %w", e.O, err)
	}
	high, err := parseDecimal(e.H)
	if err != nil {
		return model.Candle{}, fmt.Errorf("wire: parse high %q: %w", e.H, err)
	}
	low, err := parseDecimal(e.L)
	if err != nil {
		return model.Candle{}, fmt.Errorf("wire: parse low %q: %w", e.L, err)
	}
	closePx, err := parseDecimal(e.C)
	if err != nil {
		return model.Candle{}, fmt.Errorf("wire: parse close %q: %w", e.C, err)
	}
	volume, err := parseDecimal(e.V)
	if err != nil {
		return model.Candle{}, fmt.Errorf("wire: parse volume %q: %w", e.V, err)
	}

	return model.Candle{
		Symbol:    e.S,
		Interval:  e.I,
		Timestamp: time.UnixMilli(e.TEnd).UTC(),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePx,
		Volume:    volume,
	}, nil
}

// ToMid extracts the (symbol, price) pair from a mid-price envelope.
func (e Envelope) ToMid() (symbol string, price float64, err error) {
	px, err := parseDecimal(e.Px)
	if err != nil {
		return "", 0, fmt.Errorf("wire: parse mid price %q: %w", e.Px, err)
	}
	return e.Coin, px, nil
}

func parseDecimal(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	f, _ := d.Float64()
	return f, nil
}
