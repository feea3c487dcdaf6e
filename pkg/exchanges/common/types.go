package common

import (
	"fmt"
	"math"
)

// Side denotes the direction of a position.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// OrderType denotes basic order types.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OrderState normalizes venue order status into a small set.
type OrderState string

const (
	StateNew      OrderState = "new"
	StatePartial  OrderState = "partially_filled"
	StateFilled   OrderState = "filled"
	StateCanceled OrderState = "canceled"
	StateRejected OrderState = "rejected"
	StateUnknown  OrderState = "unknown"
)

// Contract describes a tradable instrument as reported by the venue catalog.
// Immutable after a catalog refresh.
type Contract struct {
	Symbol        string
	Exchange      string
	BaseAsset     string
	QuoteAsset    string
	PriceDecimals int
	TickSize      float64
	LotSize       float64
	Inverse       bool
	Quanto        bool
	Multiplier    float64
}

// RoundQty rounds a quantity to the nearest multiple of the contract lot size.
func (c Contract) RoundQty(qty float64) float64 {
	if c.LotSize <= 0 {
		return qty
	}
	rounded := math.Round(qty/c.LotSize) * c.LotSize
	return math.Round(rounded*1e8) / 1e8
}

// RoundPrice rounds a price to the nearest tick and formats it without
// scientific notation, as venues require.
func (c Contract) RoundPrice(price float64) string {
	p := price
	if c.TickSize > 0 {
		p = math.Round(price/c.TickSize) * c.TickSize
	}
	return fmt.Sprintf("%.*f", c.PriceDecimals, p)
}

// Balance is one wallet entry of the account.
type Balance struct {
	Asset         string
	WalletBalance float64
}

// Candle is a fixed-duration OHLCV aggregate of trade ticks.
type Candle struct {
	Timestamp int64 // bucket start, ms
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timeframe string
}

// TradeTick is a single trade print from the venue stream.
type TradeTick struct {
	Symbol    string
	Price     float64
	Size      float64
	Timestamp int64 // ms
}

// Quote is the latest best bid/ask for an instrument.
type Quote struct {
	Symbol string
	Bid    float64
	Ask    float64
}

// OrderStatus is the ephemeral result of an order placement or poll.
type OrderStatus struct {
	OrderID     string
	Status      OrderState
	AvgPrice    float64
	ExecutedQty float64
}

// OrderRequest captures an order intent to be sent to a venue.
type OrderRequest struct {
	Contract    Contract
	Type        OrderType
	Side        Side
	Qty         float64
	Price       float64 // 0 means no price (market)
	TimeInForce string  // empty means venue default
}

var timeframeMs = map[string]int64{
	"1m":  60_000,
	"5m":  300_000,
	"15m": 900_000,
	"30m": 1_800_000,
	"1h":  3_600_000,
	"4h":  14_400_000,
}

// TimeframeMs returns the width of a timeframe bucket in milliseconds.
func TimeframeMs(tf string) (int64, error) {
	ms, ok := timeframeMs[tf]
	if !ok {
		return 0, fmt.Errorf("unsupported timeframe %q", tf)
	}
	return ms, nil
}

// Timeframes lists the supported timeframe labels.
func Timeframes() []string {
	return []string{"1m", "5m", "15m", "30m", "1h", "4h"}
}
