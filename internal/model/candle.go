package model

import (
	"fmt"
	"strings"
	"time"
)

// Candle is an immutable fixed-interval OHLCV record for one symbol.
// Identity is (Symbol, Interval, Timestamp); a late update with the same
// identity replaces the prior record rather than appending a new one.
type Candle struct {
	Symbol       string    `json:"symbol"`
	Interval     string    `json:"interval"`
	Timestamp    time.Time `json:"timestamp"` // aligned to interval boundary, UTC
	Open         float64   `json:"open"`
	High         float64   `json:"high"`
	Low          float64   `json:"low"`
	Close        float64   `json:"close"`
	Volume       float64   `json:"volume"`
	OpenInterest *float64  `json:"open_interest,omitempty"`
	FundingRate  *float64  `json:"funding_rate,omitempty"`
}

// Key identifies the ring buffer / cache bucket this candle belongs to.
func (c *Candle) Key() string {
	return c.Symbol + ":" + c.Interval
}

// Validate checks the OHLC ordering and non-negative volume invariant.
func (c *Candle) Validate() error {
	lo := c.Low
	hi := c.High
	minOC := c.Open
	if c.Close < minOC {
		minOC = c.Close
	}
	maxOC := c.Open
	if c.Close > maxOC {
		maxOC = c.Close
	}
	if !(lo <= minOC && minOC <= maxOC && maxOC <= hi) {
		return fmt.Errorf("candle %s@%s: low=%v high=%v open=%v close=%v violates ordering",
			c.Symbol, c.Timestamp, lo, hi, c.Open, c.Close)
	}
	if c.Volume < 0 {
		return fmt.Errorf("candle %s@%s: negative volume %v", c.Symbol, c.Timestamp, c.Volume)
	}
	return nil
}

// SubscriptionKey identifies one feed subscription. Set-valued: at most one
// active subscription per key is meaningful, duplicates are harmless.
type SubscriptionKey struct {
	Channel  string `json:"channel"`
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
}

func (k SubscriptionKey) String() string {
	return k.Channel + ":" + k.Symbol + ":" + k.Interval
}

// ParseSubscriptionKey inverts SubscriptionKey.String.
func ParseSubscriptionKey(s string) (SubscriptionKey, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return SubscriptionKey{}, fmt.Errorf("malformed subscription key %q", s)
	}
	return SubscriptionKey{Channel: parts[0], Symbol: parts[1], Interval: parts[2]}, nil
}
