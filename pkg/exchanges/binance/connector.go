package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"tradeking/pkg/cache"
	"tradeking/pkg/exchanges/common"
)

// Platform is the venue identifier.
const Platform = "binance"

const (
	channelBookTicker = "bookTicker"
	channelAggTrade   = "aggTrade"

	// The websocket stream always carries the default instrument so the
	// price board is never empty.
	defaultSymbol = "BTCUSDT"

	reconnectDelay = 20 * time.Second
)

// Connector binds the REST client, the market data websocket and the handler
// registry into one venue.
type Connector struct {
	client   *Client
	cache    *cache.QuoteCache
	registry *common.HandlerRegistry
	subs     *common.SubscriptionSet
	session  *common.Session
	log      *logrus.Entry

	contractsMu sync.RWMutex
	contracts   map[string]common.Contract

	wsID atomic.Int64
}

// NewConnector creates the venue. Call Start to open the websocket.
func NewConnector(cfg Config) *Connector {
	wsURL := "wss://fstream.binance.com/ws"
	if cfg.Testnet {
		wsURL = "wss://stream.binancefuture.com/ws"
	}

	c := &Connector{
		client:    NewClient(cfg),
		cache:     cache.NewQuoteCache(),
		registry:  common.NewHandlerRegistry(),
		subs:      common.NewSubscriptionSet(),
		contracts: make(map[string]common.Contract),
		log:       logrus.WithField("exchange", Platform),
	}
	c.session = common.NewSession(wsURL, reconnectDelay, common.SessionHooks{
		OnOpen:    c.onOpen,
		OnMessage: c.onMessage,
	}, c.log)
	return c
}

// Start launches the websocket loop and the server clock synchronizer.
func (c *Connector) Start(ctx context.Context) {
	c.client.TimeSync().Start(ctx)
	go c.session.Run()
}

func (c *Connector) Platform() string { return Platform }

// Contracts returns the instrument catalog snapshot.
func (c *Connector) Contracts() map[string]common.Contract {
	c.contractsMu.RLock()
	defer c.contractsMu.RUnlock()
	out := make(map[string]common.Contract, len(c.contracts))
	for k, v := range c.contracts {
		out[k] = v
	}
	return out
}

func (c *Connector) GetContract(symbol string) (common.Contract, bool) {
	c.contractsMu.RLock()
	defer c.contractsMu.RUnlock()
	ct, ok := c.contracts[symbol]
	return ct, ok
}

func (c *Connector) RefreshContracts(ctx context.Context) error {
	list, err := c.client.GetExchangeInfo(ctx)
	if err != nil {
		return err
	}
	c.contractsMu.Lock()
	c.contracts = make(map[string]common.Contract, len(list))
	for _, ct := range list {
		c.contracts[ct.Symbol] = ct
	}
	c.contractsMu.Unlock()
	c.log.Infof("loaded %d contracts", len(list))
	return nil
}

func (c *Connector) GetBalances(ctx context.Context) (map[string]common.Balance, error) {
	return c.client.GetAccountBalances(ctx)
}

func (c *Connector) GetHistoricalCandles(ctx context.Context, contract common.Contract, timeframe string) ([]common.Candle, error) {
	return c.client.GetHistoricalCandles(ctx, contract, timeframe)
}

func (c *Connector) PlaceOrder(ctx context.Context, req common.OrderRequest) (common.OrderStatus, error) {
	return c.client.PlaceOrder(ctx, req)
}

func (c *Connector) CancelOrder(ctx context.Context, contract common.Contract, orderID string) (common.OrderStatus, error) {
	return c.client.CancelOrder(ctx, contract, orderID)
}

func (c *Connector) GetOrderStatus(ctx context.Context, contract common.Contract, orderID string) (common.OrderStatus, error) {
	return c.client.GetOrderStatus(ctx, contract, orderID)
}

// TradeSize converts a quote-currency balance percentage into a base
// quantity at the given price, rounded to the contract lot size.
func (c *Connector) TradeSize(ctx context.Context, contract common.Contract, price float64, balancePct float64) (float64, error) {
	if price <= 0 {
		return 0, fmt.Errorf("invalid reference price %v", price)
	}
	balances, err := c.GetBalances(ctx)
	if err != nil {
		return 0, err
	}
	bal, ok := balances[contract.QuoteAsset]
	if !ok {
		return 0, fmt.Errorf("no %s balance on account", contract.QuoteAsset)
	}

	qty := bal.WalletBalance * balancePct / 100 / price
	qty = contract.RoundQty(qty)
	c.log.Infof("current %s balance = %v, trade size = %v", contract.QuoteAsset, bal.WalletBalance, qty)
	return qty, nil
}

func (c *Connector) MarketDataChannel() string { return channelBookTicker }
func (c *Connector) TradeChannel() string      { return channelAggTrade }

// SubscribeChannel subscribes instruments to a stream. Binance streams are
// always keyed by instrument, so an empty contract list is a no-op.
func (c *Connector) SubscribeChannel(channel string, contracts []common.Contract, force bool) error {
	if len(contracts) > common.MaxSubscriptionsPerCall {
		return fmt.Errorf("subscribe %s: %d instruments exceeds the %d per-call limit",
			channel, len(contracts), common.MaxSubscriptionsPerCall)
	}

	symbols := make([]string, 0, len(contracts))
	for _, ct := range contracts {
		symbols = append(symbols, ct.Symbol)
	}

	send := c.subs.Filter(channel, symbols, force)
	if len(send) == 0 {
		return nil
	}

	params := make([]string, 0, len(send))
	for _, sym := range send {
		params = append(params, strings.ToLower(sym)+"@"+channel)
	}

	msg := map[string]any{
		"method": "SUBSCRIBE",
		"params": params,
		"id":     c.wsID.Add(1),
	}
	if err := c.session.Send(msg); err != nil {
		// Tracked symbols are replayed on the next open.
		c.log.Warnf("subscribe %s deferred, websocket down: %v", channel, err)
		return nil
	}
	c.log.Infof("subscribed %d instruments to %s", len(send), channel)
	return nil
}

func (c *Connector) RegisterHandler(h common.TickHandler) { c.registry.Add(h) }
func (c *Connector) UnregisterHandler(id string)          { c.registry.Remove(id) }

// Quotes returns a copy of the per-instrument price cache.
func (c *Connector) Quotes() map[string]common.Quote {
	snap := c.cache.Snapshot()
	out := make(map[string]common.Quote, len(snap))
	for sym, q := range snap {
		out[sym] = common.Quote{Symbol: sym, Bid: q[0], Ask: q[1]}
	}
	return out
}

func (c *Connector) Connected() bool { return c.session.Connected() }

func (c *Connector) Close() { c.session.Close() }

// onOpen replays every tracked subscription and makes sure the default
// instrument's book is streaming.
func (c *Connector) onOpen() {
	for _, channel := range []string{channelBookTicker, channelAggTrade} {
		tracked := c.subs.Tracked(channel)
		if len(tracked) == 0 {
			continue
		}
		contracts := make([]common.Contract, 0, len(tracked))
		for _, sym := range tracked {
			contracts = append(contracts, common.Contract{Symbol: sym})
		}
		if err := c.SubscribeChannel(channel, contracts, true); err != nil {
			c.log.Errorf("resubscribe %s failed: %v", channel, err)
		}
	}
	if err := c.SubscribeChannel(channelBookTicker, []common.Contract{{Symbol: defaultSymbol}}, false); err != nil {
		c.log.Errorf("default subscription failed: %v", err)
	}
}

// bookTickerFrame is a best bid/ask update. Raw stream frames sometimes
// arrive without the "e" tag; the book update id identifies them.
type bookTickerFrame struct {
	Symbol string `json:"s"`
	Bid    string `json:"b"`
	Ask    string `json:"a"`
}

func (c *Connector) onMessage(msg []byte) {
	var probe struct {
		Event    string `json:"e"`
		UpdateID int64  `json:"u"`
	}
	if err := json.Unmarshal(msg, &probe); err != nil {
		return
	}

	event := probe.Event
	if event == "" && probe.UpdateID > 0 {
		event = channelBookTicker
	}

	switch event {
	case channelBookTicker:
		var frame bookTickerFrame
		if err := json.Unmarshal(msg, &frame); err != nil {
			return
		}
		bid, err1 := strconv.ParseFloat(frame.Bid, 64)
		ask, err2 := strconv.ParseFloat(frame.Ask, 64)
		if err1 != nil || err2 != nil {
			return
		}
		c.cache.Set(frame.Symbol, bid, ask)
		q := common.Quote{Symbol: frame.Symbol, Bid: bid, Ask: ask}
		for _, h := range c.registry.ForSymbol(frame.Symbol) {
			h.OnQuote(q)
		}

	case channelAggTrade:
		var frame struct {
			Symbol    string `json:"s"`
			Price     string `json:"p"`
			Qty       string `json:"q"`
			TradeTime int64  `json:"T"`
		}
		if err := json.Unmarshal(msg, &frame); err != nil {
			return
		}
		price, err1 := strconv.ParseFloat(frame.Price, 64)
		size, err2 := strconv.ParseFloat(frame.Qty, 64)
		if err1 != nil || err2 != nil {
			return
		}
		t := common.TradeTick{
			Symbol:    frame.Symbol,
			Price:     price,
			Size:      size,
			Timestamp: frame.TradeTime,
		}
		for _, h := range c.registry.ForSymbol(frame.Symbol) {
			h.OnTrade(t)
		}
	}
}
