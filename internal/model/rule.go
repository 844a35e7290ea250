package model

// RuleType tags the variant held by a Rule.
type RuleType string

const (
	RuleCondition     RuleType = "Condition"
	RuleGroup         RuleType = "Group"
	RuleWeightedGroup RuleType = "WeightedGroup"
)

// LogicalOperator combines children of a Group.
type LogicalOperator string

const (
	OpAND LogicalOperator = "AND"
	OpOR  LogicalOperator = "OR"
)

// IndicatorType names one of the required streaming indicators.
type IndicatorType string

const (
	IndicatorMACD          IndicatorType = "MACD"
	IndicatorRSI           IndicatorType = "RSI"
	IndicatorEMA           IndicatorType = "EMA"
	IndicatorSuperTrend    IndicatorType = "SuperTrend"
	IndicatorBollinger     IndicatorType = "Bollinger"
	IndicatorATR           IndicatorType = "ATR"
	IndicatorOBV           IndicatorType = "OBV"
	IndicatorVolumeProfile IndicatorType = "VolumeProfile"
	IndicatorFundingRate   IndicatorType = "FundingRate"
	IndicatorOpenInterest  IndicatorType = "OpenInterest"
)

// Comparison is the operator a Condition applies to an indicator's value or state.
type Comparison string

const (
	CompareGreaterThan  Comparison = "GreaterThan"
	CompareLessThan     Comparison = "LessThan"
	CompareGreaterEqual Comparison = "GreaterEqual"
	CompareLessEqual    Comparison = "LessEqual"
	CompareEqual        Comparison = "Equal"
	CompareNotEqual     Comparison = "NotEqual"
	CompareInRange      Comparison = "InRange"
	CompareSignalState  Comparison = "SignalState"
)

// Condition evaluates one indicator against a threshold or categorical state.
type Condition struct {
	Indicator       IndicatorType          `json:"indicator" yaml:"indicator"`
	IndicatorParams map[string]interface{} `json:"indicator_params,omitempty" yaml:"indicator_params,omitempty"`
	Comparison      Comparison             `json:"comparison" yaml:"comparison"`
	Threshold       *float64               `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	// RangeLow/RangeHigh are used only when Comparison == CompareInRange.
	RangeLow    *float64 `json:"range_low,omitempty" yaml:"range_low,omitempty"`
	RangeHigh   *float64 `json:"range_high,omitempty" yaml:"range_high,omitempty"`
	SignalState *string  `json:"signal_state,omitempty" yaml:"signal_state,omitempty"`
}

// Rule is a recursive sum type: exactly one of Condition or Children is set,
// selected by Type. Never mutated after construction.
type Rule struct {
	ID        string          `json:"id" yaml:"id"`
	Type      RuleType        `json:"type" yaml:"type"`
	Weight    *float64        `json:"weight,omitempty" yaml:"weight,omitempty"`
	Operator  *LogicalOperator `json:"operator,omitempty" yaml:"operator,omitempty"`
	Condition *Condition      `json:"condition,omitempty" yaml:"condition,omitempty"`
	Children  []Rule          `json:"children,omitempty" yaml:"children,omitempty"`
}

// EffectiveWeight returns Weight if set, otherwise the default of 1.0.
func (r Rule) EffectiveWeight() float64 {
	if r.Weight != nil {
		return *r.Weight
	}
	return 1.0
}

// AggregationMethod selects how rule results combine into a total score.
type AggregationMethod string

const (
	AggregationSum        AggregationMethod = "Sum"
	AggregationWeightedSum AggregationMethod = "WeightedSum"
	AggregationMajority    AggregationMethod = "Majority"
	AggregationAll         AggregationMethod = "All"
	AggregationAny         AggregationMethod = "Any"
)

// SignalThresholds classify a total score into a direction.
type SignalThresholds struct {
	LongMin  int `json:"long_min" yaml:"long_min"`
	ShortMax int `json:"short_max" yaml:"short_max"`
}

// AggregationConfig is the strategy-level combination policy.
type AggregationConfig struct {
	Method     AggregationMethod `json:"method" yaml:"method"`
	Thresholds SignalThresholds  `json:"thresholds" yaml:"thresholds"`
}

// RuleResult is the outcome of evaluating one top-level rule.
type RuleResult struct {
	RuleID string
	Passed bool
	Score  float64
	Weight float64
}
