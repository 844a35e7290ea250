package strategy

import (
	"signalengine/internal/indicator"
	"signalengine/internal/model"
)

// evaluateCondition applies one Condition's comparison against the computed
// indicator snapshot. An undefined (not-yet-ready) indicator makes the
// condition fail (spec §4.4.2).
func evaluateCondition(c model.Condition, v indicator.Values) bool {
	if c.Comparison == model.CompareSignalState {
		state, ok := v.StateValue(c.Indicator)
		if !ok || c.SignalState == nil {
			return false
		}
		return state == *c.SignalState
	}

	value, ok := v.NumericValue(c.Indicator)
	if !ok {
		return false
	}

	switch c.Comparison {
	case model.CompareGreaterThan:
		return c.Threshold != nil && value > *c.Threshold
	case model.CompareLessThan:
		return c.Threshold != nil && value < *c.Threshold
	case model.CompareGreaterEqual:
		return c.Threshold != nil && value >= *c.Threshold
	case model.CompareLessEqual:
		return c.Threshold != nil && value <= *c.Threshold
	case model.CompareEqual:
		return c.Threshold != nil && value == *c.Threshold
	case model.CompareNotEqual:
		return c.Threshold != nil && value != *c.Threshold
	case model.CompareInRange:
		return c.RangeLow != nil && c.RangeHigh != nil && value >= *c.RangeLow && value <= *c.RangeHigh
	default:
		return false
	}
}
