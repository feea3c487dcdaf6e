package bitmex

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"tradeking/pkg/cache"
	"tradeking/pkg/exchanges/common"
)

// Platform is the venue identifier.
const Platform = "bitmex"

const (
	channelInstrument = "instrument"
	channelTrade      = "trade"

	// The margin currency every trade size is computed from.
	marginCurrency = "XBt"

	reconnectDelay = 2 * time.Second

	// globalKey marks an unkeyed channel subscription in the tracker.
	globalKey = "*"
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
}

// NewConnector creates the venue. Call Start to open the websocket.
func NewConnector(cfg Config) *Connector {
	wsURL := "wss://www.bitmex.com/realtime"
	if cfg.Testnet {
		wsURL = "wss://testnet.bitmex.com/realtime"
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

// Start launches the websocket loop.
func (c *Connector) Start(ctx context.Context) {
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
	list, err := c.client.GetActiveInstruments(ctx)
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
	return c.client.GetBalances(ctx)
}

func (c *Connector) GetHistoricalCandles(ctx context.Context, contract common.Contract, timeframe string) ([]common.Candle, error) {
	return c.client.GetHistoricalCandles(ctx, contract, timeframe)
}

func (c *Connector) PlaceOrder(ctx context.Context, req common.OrderRequest) (common.OrderStatus, error) {
	return c.client.PlaceOrder(ctx, req)
}

func (c *Connector) CancelOrder(ctx context.Context, contract common.Contract, orderID string) (common.OrderStatus, error) {
	return c.client.CancelOrder(ctx, orderID)
}

func (c *Connector) GetOrderStatus(ctx context.Context, contract common.Contract, orderID string) (common.OrderStatus, error) {
	return c.client.GetOrderStatus(ctx, contract, orderID)
}

// TradeSize converts a margin balance percentage into a contract count at
// the given price. The count follows the venue's contract conventions:
// quanto and linear contracts scale with price, inverse contracts scale with
// its reciprocal. The result is truncated to a whole number of contracts.
func (c *Connector) TradeSize(ctx context.Context, contract common.Contract, price float64, balancePct float64) (float64, error) {
	if price <= 0 {
		return 0, fmt.Errorf("invalid reference price %v", price)
	}
	balances, err := c.GetBalances(ctx)
	if err != nil {
		return 0, err
	}
	bal, ok := balances[marginCurrency]
	if !ok {
		return 0, fmt.Errorf("no %s margin balance on account", marginCurrency)
	}

	mult := contract.Multiplier
	if mult == 0 {
		mult = 1
	}

	size := bal.WalletBalance * balancePct / 100
	var contractsNumber float64
	switch {
	case contract.Quanto:
		contractsNumber = size / (mult * price)
	case contract.Inverse:
		contractsNumber = size / (mult / price)
	default:
		contractsNumber = size / (mult * price)
	}
	contractsNumber = math.Trunc(contractsNumber)

	c.log.Infof("current %s balance = %v, contracts number = %v", marginCurrency, bal.WalletBalance, contractsNumber)
	return contractsNumber, nil
}

func (c *Connector) MarketDataChannel() string { return channelInstrument }
func (c *Connector) TradeChannel() string      { return channelTrade }

// SubscribeChannel subscribes a channel. An empty contract list subscribes
// the unkeyed channel, which streams every instrument.
func (c *Connector) SubscribeChannel(channel string, contracts []common.Contract, force bool) error {
	if len(contracts) > common.MaxSubscriptionsPerCall {
		return fmt.Errorf("subscribe %s: %d instruments exceeds the %d per-call limit",
			channel, len(contracts), common.MaxSubscriptionsPerCall)
	}

	symbols := []string{globalKey}
	if len(contracts) > 0 {
		symbols = make([]string, 0, len(contracts))
		for _, ct := range contracts {
			symbols = append(symbols, ct.Symbol)
		}
	}

	send := c.subs.Filter(channel, symbols, force)
	if len(send) == 0 {
		return nil
	}

	args := make([]string, 0, len(send))
	for _, sym := range send {
		if sym == globalKey {
			args = append(args, channel)
		} else {
			args = append(args, channel+":"+sym)
		}
	}

	msg := map[string]any{"op": "subscribe", "args": args}
	if err := c.session.Send(msg); err != nil {
		// Tracked topics are replayed on the next open.
		c.log.Warnf("subscribe %s deferred, websocket down: %v", channel, err)
		return nil
	}
	c.log.Infof("subscribed %d topics to %s", len(args), channel)
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

// onOpen subscribes the unkeyed instrument and trade streams, then replays
// any per-instrument topics tracked before the reconnect.
func (c *Connector) onOpen() {
	for _, channel := range []string{channelInstrument, channelTrade} {
		tracked := c.subs.Tracked(channel)
		contracts := make([]common.Contract, 0, len(tracked))
		for _, sym := range tracked {
			if sym == globalKey {
				continue
			}
			contracts = append(contracts, common.Contract{Symbol: sym})
		}
		if err := c.SubscribeChannel(channel, nil, true); err != nil {
			c.log.Errorf("resubscribe %s failed: %v", channel, err)
		}
		if len(contracts) > 0 {
			if err := c.SubscribeChannel(channel, contracts, true); err != nil {
				c.log.Errorf("resubscribe %s failed: %v", channel, err)
			}
		}
	}
}

// tableFrame is a table push. Instrument updates are partial and may carry
// only one side of the book; trade rows carry ISO timestamps.
type tableFrame struct {
	Table string `json:"table"`
	Data  []struct {
		Symbol    string   `json:"symbol"`
		BidPrice  *float64 `json:"bidPrice"`
		AskPrice  *float64 `json:"askPrice"`
		Price     float64  `json:"price"`
		Size      float64  `json:"size"`
		Timestamp string   `json:"timestamp"`
	} `json:"data"`
}

func (c *Connector) onMessage(msg []byte) {
	var frame tableFrame
	if err := json.Unmarshal(msg, &frame); err != nil {
		return
	}

	switch frame.Table {
	case channelInstrument:
		for _, d := range frame.Data {
			if d.BidPrice == nil && d.AskPrice == nil {
				continue
			}
			if d.BidPrice != nil {
				c.cache.SetBid(d.Symbol, *d.BidPrice)
			}
			if d.AskPrice != nil {
				c.cache.SetAsk(d.Symbol, *d.AskPrice)
			}
			bid, ask, _ := c.cache.Get(d.Symbol)
			q := common.Quote{Symbol: d.Symbol, Bid: bid, Ask: ask}
			for _, h := range c.registry.ForSymbol(d.Symbol) {
				h.OnQuote(q)
			}
		}

	case channelTrade:
		for _, d := range frame.Data {
			ts, err := time.Parse(time.RFC3339, d.Timestamp)
			if err != nil {
				continue
			}
			t := common.TradeTick{
				Symbol:    d.Symbol,
				Price:     d.Price,
				Size:      d.Size,
				Timestamp: ts.UnixMilli(),
			}
			for _, h := range c.registry.ForSymbol(d.Symbol) {
				h.OnTrade(t)
			}
		}
	}
}
