// Package strategy implements the recursive rule-tree evaluator: the pure
// function (strategy, candles) → signal? at the heart of the Evaluator
// (spec §4.4). It performs no I/O and holds no state across invocations.
package strategy

import (
	"sort"

	"signalengine/internal/indicator"
	"signalengine/internal/model"

	"github.com/samber/lo"
)

// ATRMultiplierSL and ATRMultiplierTP are the default stop-loss / take-profit
// multipliers applied to the ATR reading (spec §4.4.4).
const (
	ATRMultiplierSL = 1.5
	ATRMultiplierTP = 3.0
)

// Evaluate runs strategy against candles and returns the resulting signal,
// or nil if there is not enough data to evaluate (candles shorter than
// model.MinCandles).
func Evaluate(s model.Strategy, candles []model.Candle) *model.Signal {
	if len(candles) < model.MinCandles {
		return nil
	}

	values := indicator.Compute(candles)
	last := candles[len(candles)-1]

	results := make([]model.RuleResult, 0, len(s.Config.Rules))
	for _, rule := range s.Config.Rules {
		results = append(results, evaluateRule(rule, values))
	}

	total := aggregate(results, s.Config.Aggregation.Method)
	thresholds := s.Config.Aggregation.Thresholds

	direction := model.DirectionNeutral
	switch {
	case total >= float64(thresholds.LongMin):
		direction = model.DirectionLong
	case total <= float64(thresholds.ShortMax):
		direction = model.DirectionShort
	}

	confidence := 0.0
	sumWeights := lo.SumBy(results, func(r model.RuleResult) float64 { return absf(r.Weight) })
	if sumWeights < 1 {
		sumWeights = 1
	}
	confidence = clamp(absf(total)/sumWeights, 0, 1)

	slPct, tpPct := 0.0, 0.0
	if atrValue, ok := values.NumericValue(model.IndicatorATR); direction != model.DirectionNeutral && ok && last.Close != 0 {
		slPct = (ATRMultiplierSL * atrValue) / last.Close
		tpPct = (ATRMultiplierTP * atrValue) / last.Close
	}

	passed := lo.Filter(results, func(r model.RuleResult, _ int) bool { return r.Passed })
	reasons := lo.Map(passed, func(r model.RuleResult, _ int) model.SignalReason {
		return model.SignalReason{Description: reasonDescription(r), Weight: r.Weight}
	})
	sort.Slice(reasons, func(i, j int) bool { return reasons[i].Weight > reasons[j].Weight })

	return &model.Signal{
		Symbol:     s.Symbol,
		Direction:  direction,
		Confidence: confidence,
		Price:      last.Close,
		SLPct:      slPct,
		TPPct:      tpPct,
		Reasons:    reasons,
		Timestamp:  last.Timestamp,
		StrategyID: s.ID,
	}
}

func reasonDescription(r model.RuleResult) string {
	if r.Passed {
		return "rule " + r.RuleID + " passed"
	}
	return "rule " + r.RuleID + " failed"
}

// evaluateRule recursively walks one rule and returns its (passed, score, weight).
func evaluateRule(r model.Rule, v indicator.Values) model.RuleResult {
	switch r.Type {
	case model.RuleCondition:
		weight := r.EffectiveWeight()
		if r.Condition == nil {
			return model.RuleResult{RuleID: r.ID, Passed: false, Score: -weight, Weight: weight}
		}
		passed := evaluateCondition(*r.Condition, v)
		score := weight
		if !passed {
			score = -weight
		}
		return model.RuleResult{RuleID: r.ID, Passed: passed, Score: score, Weight: weight}

	case model.RuleGroup:
		children := make([]model.RuleResult, 0, len(r.Children))
		for _, c := range r.Children {
			children = append(children, evaluateRule(c, v))
		}
		op := model.OpAND
		if r.Operator != nil {
			op = *r.Operator
		}
		passed := groupPassed(op, children)
		score := sumScores(children)
		return model.RuleResult{RuleID: r.ID, Passed: passed, Score: score, Weight: r.EffectiveWeight()}

	case model.RuleWeightedGroup:
		children := make([]model.RuleResult, 0, len(r.Children))
		for _, c := range r.Children {
			children = append(children, evaluateRule(c, v))
		}
		op := model.OpAND
		if r.Operator != nil {
			op = *r.Operator
		}
		passed := groupPassed(op, children)
		weight := r.EffectiveWeight()
		score := weight * sumScores(children)
		return model.RuleResult{RuleID: r.ID, Passed: passed, Score: score, Weight: weight}

	default:
		return model.RuleResult{RuleID: r.ID, Passed: false, Score: 0, Weight: r.EffectiveWeight()}
	}
}

func groupPassed(op model.LogicalOperator, children []model.RuleResult) bool {
	if op == model.OpOR {
		return lo.SomeBy(children, func(r model.RuleResult) bool { return r.Passed })
	}
	return lo.EveryBy(children, func(r model.RuleResult) bool { return r.Passed })
}

func sumScores(results []model.RuleResult) float64 {
	return lo.SumBy(results, func(r model.RuleResult) float64 { return r.Score })
}

// aggregate applies the strategy's AggregationMethod over its top-level rule
// results (spec §4.4.3).
func aggregate(results []model.RuleResult, method model.AggregationMethod) float64 {
	switch method {
	case model.AggregationSum:
		return sumScores(results)
	case model.AggregationWeightedSum:
		return lo.SumBy(results, func(r model.RuleResult) float64 { return r.Score * r.Weight })
	case model.AggregationMajority:
		// Magnitude is the raw vote count, not a sum of scores — this
		// mirrors the source's Majority branch exactly.
		pos, neg := 0, 0
		for _, r := range results {
			if r.Passed {
				if r.Score > 0 {
					pos++
				} else if r.Score < 0 {
					neg++
				}
			}
		}
		return float64(pos - neg)
	case model.AggregationAll:
		if lo.EveryBy(results, func(r model.RuleResult) bool { return r.Passed }) {
			return sumScores(results)
		}
		return 0
	case model.AggregationAny:
		if lo.SomeBy(results, func(r model.RuleResult) bool { return r.Passed }) {
			return sumScores(results)
		}
		return 0
	default:
		return sumScores(results)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func absf(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
