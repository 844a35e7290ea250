package model

import "time"

// StrategyConfig is a rule tree plus an aggregation policy, bound to a symbol.
type StrategyConfig struct {
	Rules       []Rule            `json:"rules" yaml:"rules"`
	Aggregation AggregationConfig `json:"aggregation" yaml:"aggregation"`
}

// Strategy is a persisted entity: one config version per id.
type Strategy struct {
	ID        int64          `json:"id" yaml:"id"`
	Name      string         `json:"name" yaml:"name"`
	Symbol    string         `json:"symbol" yaml:"symbol"`
	Config    StrategyConfig `json:"config" yaml:"config"`
	CreatedAt time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" yaml:"updated_at"`
}
