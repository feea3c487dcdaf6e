package strategy

import (
	"encoding/json"
	"fmt"

	"tradeking/pkg/exchanges/common"
)

// Rule variant identifiers, persisted in strategy configurations.
const (
	TypeTechnical = "technical"
	TypeBreakout  = "breakout"
)

// Rule evaluates entry signals against the candle sequence. Evaluate returns
// 1 for long, -1 for short and 0 for no signal; each variant decides which
// tick classifications it reacts to.
type Rule interface {
	Name() string
	Evaluate(candles []common.Candle, tick TickType) int
}

// BuildRule constructs a rule variant from its persisted parameter blob.
func BuildRule(ruleType string, extra json.RawMessage) (Rule, error) {
	switch ruleType {
	case TypeTechnical:
		p := DefaultTechnicalParams()
		if len(extra) > 0 {
			if err := json.Unmarshal(extra, &p); err != nil {
				return nil, fmt.Errorf("parse technical params: %w", err)
			}
		}
		return NewTechnicalRule(p), nil
	case TypeBreakout:
		var p BreakoutParams
		if len(extra) > 0 {
			if err := json.Unmarshal(extra, &p); err != nil {
				return nil, fmt.Errorf("parse breakout params: %w", err)
			}
		}
		return NewBreakoutRule(p), nil
	default:
		return nil, fmt.Errorf("unknown strategy type %q", ruleType)
	}
}
