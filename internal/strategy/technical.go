package strategy

import (
	"tradeking/internal/indicators"
	"tradeking/pkg/exchanges/common"
)

// TechnicalParams configures the RSI/MACD rule.
type TechnicalParams struct {
	EmaFast   int `json:"ema_fast"`
	EmaSlow   int `json:"ema_slow"`
	EmaSignal int `json:"ema_signal"`
	RsiLength int `json:"rsi_length"`
}

// DefaultTechnicalParams returns the conventional 12/26/9 MACD and 14-period
// RSI settings.
func DefaultTechnicalParams() TechnicalParams {
	return TechnicalParams{EmaFast: 12, EmaSlow: 26, EmaSignal: 9, RsiLength: 14}
}

// TechnicalRule goes long on an oversold RSI confirmed by a MACD line above
// its signal line, and short on the mirrored condition. Indicators are
// evaluated over closed candles only, so the in-progress bucket never feeds
// a signal, and the check runs once per new candle.
type TechnicalRule struct {
	params TechnicalParams
}

// NewTechnicalRule creates the rule with the given parameters; zero fields
// fall back to defaults.
func NewTechnicalRule(p TechnicalParams) *TechnicalRule {
	def := DefaultTechnicalParams()
	if p.EmaFast <= 0 {
		p.EmaFast = def.EmaFast
	}
	if p.EmaSlow <= 0 {
		p.EmaSlow = def.EmaSlow
	}
	if p.EmaSignal <= 0 {
		p.EmaSignal = def.EmaSignal
	}
	if p.RsiLength <= 0 {
		p.RsiLength = def.RsiLength
	}
	return &TechnicalRule{params: p}
}

func (r *TechnicalRule) Name() string { return "Technical" }

// Params returns the effective parameters.
func (r *TechnicalRule) Params() TechnicalParams { return r.params }

func (r *TechnicalRule) Evaluate(candles []common.Candle, tick TickType) int {
	if tick != TickNewCandle {
		return 0
	}
	if len(candles) < 2 {
		return 0
	}

	// Drop the in-progress candle; the latest closed candle decides.
	closes := make([]float64, 0, len(candles)-1)
	for _, c := range candles[:len(candles)-1] {
		closes = append(closes, c.Close)
	}

	rsi, ok := indicators.RSI(closes, r.params.RsiLength)
	if !ok {
		return 0
	}
	macdLine, macdSignal, ok := indicators.MACD(closes, r.params.EmaFast, r.params.EmaSlow, r.params.EmaSignal)
	if !ok {
		return 0
	}

	if rsi < 30 && macdLine > macdSignal {
		return 1
	}
	if rsi > 70 && macdLine < macdSignal {
		return -1
	}
	return 0
}
