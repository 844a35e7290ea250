package model

import "time"

// Direction is the directional hint a Signal carries.
type Direction string

const (
	DirectionLong    Direction = "Long"
	DirectionShort   Direction = "Short"
	DirectionNeutral Direction = "Neutral"
)

// SignalReason explains one passed rule's contribution, ordered descending by weight.
type SignalReason struct {
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
}

// Signal is the Evaluator's output: created once, stored once.
type Signal struct {
	Symbol     string         `json:"symbol"`
	Direction  Direction      `json:"direction"`
	Confidence float64        `json:"confidence"`
	Price      float64        `json:"price"`
	SLPct      float64        `json:"sl_pct"`
	TPPct      float64        `json:"tp_pct"`
	Reasons    []SignalReason `json:"reasons"`
	Timestamp  time.Time      `json:"timestamp"`
	StrategyID int64          `json:"strategy_id"`
}

// TimestampMs is the millisecond epoch used as part of the signal's storage identity.
func (s *Signal) TimestampMs() int64 {
	return s.Timestamp.UnixMilli()
}
