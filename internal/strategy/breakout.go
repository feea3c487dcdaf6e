package strategy

import (
	"tradeking/pkg/exchanges/common"
)

// BreakoutParams configures the breakout rule.
type BreakoutParams struct {
	MinVolume float64 `json:"min_volume"`
}

// BreakoutRule goes long when the current close breaks above the previous
// candle's high on sufficient volume, and short on the mirrored low breakout.
// Unlike the technical rule it is evaluated on every tick, so an intrabar
// breakout can trigger before the candle closes.
type BreakoutRule struct {
	params BreakoutParams
}

// NewBreakoutRule creates the rule with the given parameters.
func NewBreakoutRule(p BreakoutParams) *BreakoutRule {
	return &BreakoutRule{params: p}
}

func (r *BreakoutRule) Name() string { return "Breakout" }

// Params returns the effective parameters.
func (r *BreakoutRule) Params() BreakoutParams { return r.params }

func (r *BreakoutRule) Evaluate(candles []common.Candle, tick TickType) int {
	if len(candles) < 2 {
		return 0
	}

	last := candles[len(candles)-1]
	prev := candles[len(candles)-2]

	if last.Close > prev.High && last.Volume > r.params.MinVolume {
		return 1
	}
	if last.Close < prev.Low && last.Volume > r.params.MinVolume {
		return -1
	}
	return 0
}
