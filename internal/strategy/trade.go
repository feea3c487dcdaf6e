package strategy

import (
	"tradeking/pkg/exchanges/common"
)

// Trade statuses.
const (
	TradeOpen   = "open"
	TradeClosed = "closed"
)

// Trade is one position opened by a strategy instance. The entry price is
// unknown until the entry order reports filled; PnL is recomputed on every
// price update while the trade is open.
type Trade struct {
	ID           string
	Time         int64 // open time, ms
	Contract     common.Contract
	Strategy     string
	Side         common.Side
	Status       string
	EntryPrice   float64
	EntryFilled  bool
	Quantity     float64
	PnL          float64
	EntryOrderID string
}

// UpdatePnL recomputes the running profit and loss at the given price.
// Inverse contracts settle in the base asset, so their PnL uses reciprocal
// prices; linear and quanto contracts use the plain price difference scaled
// by the contract multiplier.
func (t *Trade) UpdatePnL(price float64) {
	if t.Status != TradeOpen || !t.EntryFilled || price <= 0 || t.EntryPrice <= 0 {
		return
	}

	mult := t.Contract.Multiplier
	if mult == 0 {
		mult = 1
	}

	if t.Contract.Inverse {
		if t.Side == common.SideLong {
			t.PnL = (1/t.EntryPrice - 1/price) * mult * t.Quantity
		} else {
			t.PnL = (1/price - 1/t.EntryPrice) * mult * t.Quantity
		}
		return
	}

	if t.Side == common.SideLong {
		t.PnL = (price - t.EntryPrice) * mult * t.Quantity
	} else {
		t.PnL = (t.EntryPrice - price) * mult * t.Quantity
	}
}

// TradeView is the externally consumed, immutable copy of a Trade.
type TradeView struct {
	ID         string      `json:"id"`
	Time       int64       `json:"time"`
	Symbol     string      `json:"symbol"`
	Exchange   string      `json:"exchange"`
	Strategy   string      `json:"strategy"`
	Side       common.Side `json:"side"`
	Status     string      `json:"status"`
	EntryPrice float64     `json:"entry_price"`
	Quantity   float64     `json:"quantity"`
	PnL        float64     `json:"pnl"`
}

func (t *Trade) view() TradeView {
	return TradeView{
		ID:         t.ID,
		Time:       t.Time,
		Symbol:     t.Contract.Symbol,
		Exchange:   t.Contract.Exchange,
		Strategy:   t.Strategy,
		Side:       t.Side,
		Status:     t.Status,
		EntryPrice: t.EntryPrice,
		Quantity:   t.Quantity,
		PnL:        t.PnL,
	}
}
