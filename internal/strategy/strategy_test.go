package strategy

import (
	"context"
	"errors"
	"sync"
	"testing"

	"tradeking/pkg/exchanges/common"
)

type placeResult struct {
	status common.OrderStatus
	err    error
}

// fakeConnector satisfies common.Connector with scripted order results.
type fakeConnector struct {
	mu           sync.Mutex
	orders       []common.OrderRequest
	placeQueue   []placeResult
	tradeSize    float64
	tradeSizeErr error
	statusFn     func(orderID string) (common.OrderStatus, error)
}

func (f *fakeConnector) Platform() string                      { return "fake" }
func (f *fakeConnector) Contracts() map[string]common.Contract { return nil }
func (f *fakeConnector) GetContract(string) (common.Contract, bool) {
	return common.Contract{}, false
}
func (f *fakeConnector) RefreshContracts(context.Context) error { return nil }
func (f *fakeConnector) GetBalances(context.Context) (map[string]common.Balance, error) {
	return nil, nil
}
func (f *fakeConnector) GetHistoricalCandles(context.Context, common.Contract, string) ([]common.Candle, error) {
	return nil, nil
}

func (f *fakeConnector) PlaceOrder(ctx context.Context, req common.OrderRequest) (common.OrderStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, req)
	if len(f.placeQueue) == 0 {
		return common.OrderStatus{}, errors.New("no scripted result")
	}
	res := f.placeQueue[0]
	f.placeQueue = f.placeQueue[1:]
	return res.status, res.err
}

func (f *fakeConnector) CancelOrder(context.Context, common.Contract, string) (common.OrderStatus, error) {
	return common.OrderStatus{}, nil
}

func (f *fakeConnector) GetOrderStatus(ctx context.Context, contract common.Contract, orderID string) (common.OrderStatus, error) {
	if f.statusFn != nil {
		return f.statusFn(orderID)
	}
	return common.OrderStatus{}, errors.New("no status")
}

func (f *fakeConnector) TradeSize(context.Context, common.Contract, float64, float64) (float64, error) {
	return f.tradeSize, f.tradeSizeErr
}

func (f *fakeConnector) SubscribeChannel(string, []common.Contract, bool) error { return nil }
func (f *fakeConnector) MarketDataChannel() string                              { return "md" }
func (f *fakeConnector) TradeChannel() string                                   { return "trade" }
func (f *fakeConnector) RegisterHandler(common.TickHandler)                     {}
func (f *fakeConnector) UnregisterHandler(string)                               {}
func (f *fakeConnector) Quotes() map[string]common.Quote                        { return nil }
func (f *fakeConnector) Connected() bool                                        { return true }
func (f *fakeConnector) Close()                                                 {}

func (f *fakeConnector) placedOrders() []common.OrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]common.OrderRequest(nil), f.orders...)
}

func filled(orderID string, avgPrice, qty float64) placeResult {
	return placeResult{status: common.OrderStatus{
		OrderID:     orderID,
		Status:      common.StateFilled,
		AvgPrice:    avgPrice,
		ExecutedQty: qty,
	}}
}

func newTestInstance(t *testing.T, conn *fakeConnector) *Instance {
	t.Helper()
	cfg := Config{
		Exchange:   "fake",
		Symbol:     "BTCUSDT",
		Type:       TypeBreakout,
		Timeframe:  "1m",
		BalancePct: 10,
		TakeProfit: 10,
		StopLoss:   5,
	}
	contract := common.Contract{Symbol: "BTCUSDT", Exchange: "fake", Multiplier: 1, LotSize: 1}
	seed := []common.Candle{
		{Timestamp: 0, Open: 100, High: 100, Low: 99, Close: 99.5, Volume: 5, Timeframe: "1m"},
	}
	inst, err := NewInstance("inst-1", cfg, contract, conn, NewBreakoutRule(BreakoutParams{}), seed, nil)
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	return inst
}

func TestInstanceOpensSinglePosition(t *testing.T) {
	conn := &fakeConnector{
		tradeSize:  3,
		placeQueue: []placeResult{filled("order-1", 101, 3)},
	}
	inst := newTestInstance(t, conn)
	defer inst.Stop()

	// Breakout above the seed candle high opens a position.
	inst.OnTrade(common.TradeTick{Symbol: "BTCUSDT", Price: 101, Size: 1, Timestamp: 60_000})

	orders := conn.placedOrders()
	if len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}
	if orders[0].Side != common.SideLong || orders[0].Type != common.OrderTypeMarket {
		t.Errorf("unexpected order: %+v", orders[0])
	}

	trades := inst.Trades()
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].Status != TradeOpen || trades[0].EntryPrice != 101 {
		t.Errorf("unexpected trade: %+v", trades[0])
	}

	// Another breakout tick while the position is open must not stack a
	// second entry.
	inst.OnTrade(common.TradeTick{Symbol: "BTCUSDT", Price: 102, Size: 1, Timestamp: 61_000})
	if got := len(conn.placedOrders()); got != 1 {
		t.Fatalf("expected still 1 order, got %d", got)
	}
}

func TestInstanceTakeProfitClosesAndReleases(t *testing.T) {
	conn := &fakeConnector{
		tradeSize: 2,
		placeQueue: []placeResult{
			filled("entry-1", 101, 2),
			filled("exit-1", 112, 2),
			filled("entry-2", 115, 2),
		},
	}
	inst := newTestInstance(t, conn)
	defer inst.Stop()

	inst.OnTrade(common.TradeTick{Symbol: "BTCUSDT", Price: 101, Size: 1, Timestamp: 60_000})

	// Same-bucket tick past entry*1.10 triggers the take profit exit. The
	// breakout condition still holds on that tick, so once the slot frees up
	// a new entry follows immediately.
	inst.OnTrade(common.TradeTick{Symbol: "BTCUSDT", Price: 112, Size: 1, Timestamp: 61_000})

	orders := conn.placedOrders()
	if len(orders) != 3 {
		t.Fatalf("expected entry, exit and re-entry, got %d orders", len(orders))
	}
	if orders[1].Side != common.SideShort {
		t.Errorf("exit side = %s, want short", orders[1].Side)
	}
	if orders[1].Qty != 2 {
		t.Errorf("exit qty = %v, want full position of 2", orders[1].Qty)
	}

	trades := inst.Trades()
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	if trades[0].Status != TradeClosed {
		t.Errorf("first trade status = %s, want closed", trades[0].Status)
	}
	if trades[1].Status != TradeOpen || trades[1].EntryPrice != 115 {
		t.Errorf("unexpected re-entry trade: %+v", trades[1])
	}
}

func TestInstanceStopLossUsesShortSideThresholds(t *testing.T) {
	conn := &fakeConnector{
		tradeSize: 2,
		placeQueue: []placeResult{
			filled("entry-1", 90, 2),
			filled("exit-1", 95, 2),
			filled("entry-2", 95, 2),
		},
	}
	inst := newTestInstance(t, conn)
	defer inst.Stop()

	// Downside breakout opens a short.
	inst.OnTrade(common.TradeTick{Symbol: "BTCUSDT", Price: 90, Size: 1, Timestamp: 60_000})
	orders := conn.placedOrders()
	if len(orders) != 1 || orders[0].Side != common.SideShort {
		t.Fatalf("expected one short entry, got %+v", orders)
	}

	// Price moving against the short past entry*1.05 hits the stop loss.
	inst.OnTrade(common.TradeTick{Symbol: "BTCUSDT", Price: 95, Size: 1, Timestamp: 61_000})
	orders = conn.placedOrders()
	if len(orders) < 2 {
		t.Fatalf("expected exit order, got %d orders", len(orders))
	}
	if orders[1].Side != common.SideLong {
		t.Errorf("exit side = %s, want long", orders[1].Side)
	}
	if inst.Trades()[0].Status != TradeClosed {
		t.Error("expected trade closed after stop loss")
	}
}

func TestInstanceExitFailureKeepsPositionOpen(t *testing.T) {
	conn := &fakeConnector{
		tradeSize: 2,
		placeQueue: []placeResult{
			filled("entry-1", 101, 2),
			{err: errors.New("venue rejected")},
		},
	}
	inst := newTestInstance(t, conn)
	defer inst.Stop()

	inst.OnTrade(common.TradeTick{Symbol: "BTCUSDT", Price: 101, Size: 1, Timestamp: 60_000})
	inst.OnTrade(common.TradeTick{Symbol: "BTCUSDT", Price: 112, Size: 1, Timestamp: 61_000})

	trades := inst.Trades()
	if trades[0].Status != TradeOpen {
		t.Errorf("trade status = %s, want open after failed exit", trades[0].Status)
	}
	if got := len(conn.placedOrders()); got != 2 {
		t.Fatalf("expected entry and failed exit attempt, got %d orders", got)
	}

	// The position slot stays occupied; the next bucket's breakout is ignored.
	inst.OnTrade(common.TradeTick{Symbol: "BTCUSDT", Price: 130, Size: 1, Timestamp: 120_000})
	if got := len(conn.placedOrders()); got != 2 {
		t.Errorf("expected no new orders, got %d", got)
	}
	if len(inst.Trades()) != 1 {
		t.Errorf("expected single trade, got %d", len(inst.Trades()))
	}
}

func TestInstanceZeroSizeSkipsSignal(t *testing.T) {
	conn := &fakeConnector{tradeSize: 0}
	inst := newTestInstance(t, conn)
	defer inst.Stop()

	inst.OnTrade(common.TradeTick{Symbol: "BTCUSDT", Price: 101, Size: 1, Timestamp: 60_000})
	if got := len(conn.placedOrders()); got != 0 {
		t.Fatalf("expected no orders, got %d", got)
	}
	if inst.Logs().Len() == 0 {
		t.Error("expected a log entry explaining the skipped signal")
	}
}

func TestInstanceQuoteUpdatesPnL(t *testing.T) {
	conn := &fakeConnector{
		tradeSize:  2,
		placeQueue: []placeResult{filled("entry-1", 100, 2)},
	}
	inst := newTestInstance(t, conn)
	defer inst.Stop()

	inst.OnTrade(common.TradeTick{Symbol: "BTCUSDT", Price: 101, Size: 1, Timestamp: 60_000})
	// Long positions are marked at the bid.
	inst.OnQuote(common.Quote{Symbol: "BTCUSDT", Bid: 110, Ask: 111})

	trades := inst.Trades()
	if trades[0].PnL != 20 {
		t.Errorf("PnL = %v, want 20", trades[0].PnL)
	}
}
