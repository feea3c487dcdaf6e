package db

// WatchRow is one saved watchlist entry.
type WatchRow struct {
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
}

// StrategyRow is one saved strategy configuration. ExtraParams carries the
// rule-specific settings as a JSON blob.
type StrategyRow struct {
	StrategyType string  `json:"strategy_type"`
	Contract     string  `json:"contract"`
	Exchange     string  `json:"exchange"`
	Timeframe    string  `json:"timeframe"`
	BalancePct   float64 `json:"balance_pct"`
	TakeProfit   float64 `json:"take_profit"`
	StopLoss     float64 `json:"stop_loss"`
	ExtraParams  string  `json:"extra_params"`
}
