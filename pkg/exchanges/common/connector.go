package common

import "context"

// MaxSubscriptionsPerCall mirrors venue limits on combined stream
// subscriptions; a single subscribe call refuses more instruments than this.
const MaxSubscriptionsPerCall = 200

// TickHandler receives inbound market data for one instrument. Strategy
// instances implement it; the venue websocket goroutine is the only caller
// of OnTrade, so trade classification for one handler is strictly ordered.
type TickHandler interface {
	ID() string
	Symbol() string
	OnTrade(t TradeTick)
	OnQuote(q Quote)
}

// Connector abstracts a trading venue: one REST transport plus one long-lived
// reconnecting websocket session. REST operations are synchronous and return
// the zero value with an error on any transport failure or venue rejection;
// they never panic on venue-reported errors.
type Connector interface {
	// Platform returns the venue identifier ("binance" or "bitmex").
	Platform() string

	// Contracts returns the instrument catalog snapshot, keyed by symbol.
	Contracts() map[string]Contract
	// GetContract looks up one instrument by symbol.
	GetContract(symbol string) (Contract, bool)
	// RefreshContracts re-fetches the catalog from the venue.
	RefreshContracts(ctx context.Context) error

	// GetBalances fetches account balances keyed by asset.
	GetBalances(ctx context.Context) (map[string]Balance, error)
	// GetHistoricalCandles fetches candles bounded to the venue's maximum
	// lookback window, oldest first.
	GetHistoricalCandles(ctx context.Context, contract Contract, timeframe string) ([]Candle, error)

	// PlaceOrder submits an order; quantity and price are rounded to the
	// contract's lot and tick sizes before sending.
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderStatus, error)
	// CancelOrder cancels an order by id.
	CancelOrder(ctx context.Context, contract Contract, orderID string) (OrderStatus, error)
	// GetOrderStatus fetches the current status of an order by id.
	GetOrderStatus(ctx context.Context, contract Contract, orderID string) (OrderStatus, error)
	// TradeSize converts a balance percentage into an order quantity at the
	// given reference price, rounded to the contract lot size.
	TradeSize(ctx context.Context, contract Contract, price float64, balancePct float64) (float64, error)

	// SubscribeChannel subscribes instruments to a websocket channel. An
	// empty contract list subscribes the unkeyed channel. Already-tracked
	// instruments are skipped unless force is set (used after reconnect).
	SubscribeChannel(channel string, contracts []Contract, force bool) error
	// MarketDataChannel is the venue channel carrying best bid/ask updates.
	MarketDataChannel() string
	// TradeChannel is the venue channel carrying trade prints.
	TradeChannel() string

	// RegisterHandler adds a strategy instance to the dispatch registry.
	RegisterHandler(h TickHandler)
	// UnregisterHandler removes an instance by id.
	UnregisterHandler(id string)

	// Quotes returns a copy of the per-instrument price cache.
	Quotes() map[string]Quote
	// Connected reports whether the websocket session is open.
	Connected() bool
	// Close terminates the websocket loop permanently.
	Close()
}
