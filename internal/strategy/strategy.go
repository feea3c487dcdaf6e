package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"tradeking/internal/events"
	"tradeking/internal/order"
	"tradeking/pkg/exchanges/common"
	"tradeking/pkg/logstream"
)

// staleTickMs is the wall-clock staleness threshold: ticks arriving this far
// behind real time are logged but still processed.
const staleTickMs = 2000

// Config holds the operator-supplied parameters of one strategy instance.
// Extra carries rule-specific parameters as an opaque blob so configurations
// persist without the store knowing about rule variants.
type Config struct {
	Exchange   string          `json:"exchange"`
	Symbol     string          `json:"symbol"`
	Type       string          `json:"strategy_type"`
	Timeframe  string          `json:"timeframe"`
	BalancePct float64         `json:"balance_pct"`
	TakeProfit float64         `json:"take_profit"` // pct offset from entry; <=0 disables
	StopLoss   float64         `json:"stop_loss"`   // pct offset from entry; <=0 disables
	Extra      json.RawMessage `json:"extra_params,omitempty"`
}

// Validate rejects configurations that cannot run.
func (c Config) Validate() error {
	if c.Exchange == "" || c.Symbol == "" {
		return fmt.Errorf("exchange and symbol are required")
	}
	if _, err := common.TimeframeMs(c.Timeframe); err != nil {
		return err
	}
	if c.BalancePct <= 0 || c.BalancePct > 100 {
		return fmt.Errorf("balance_pct must be in (0, 100], got %v", c.BalancePct)
	}
	return nil
}

// Instance is one running strategy: a candle aggregator, a rule variant and
// the trades it has opened. It implements common.TickHandler; OnTrade is
// only ever called from the venue websocket goroutine, OnQuote and the API
// accessors may run concurrently, so all state is guarded by one mutex.
type Instance struct {
	id       string
	cfg      Config
	contract common.Contract
	conn     common.Connector
	rule     Rule
	bus      *events.Bus[TradeView]
	logs     *logstream.Buffer

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	series  *series
	trades  []*Trade
	ongoing bool
}

// NewInstance builds an instance seeded with historical candles.
func NewInstance(id string, cfg Config, contract common.Contract, conn common.Connector, rule Rule, seed []common.Candle, bus *events.Bus[TradeView]) (*Instance, error) {
	s, err := newSeries(cfg.Timeframe, seed)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Instance{
		id:       id,
		cfg:      cfg,
		contract: contract,
		conn:     conn,
		rule:     rule,
		bus:      bus,
		logs:     logstream.NewBuffer(),
		ctx:      ctx,
		cancel:   cancel,
		series:   s,
	}, nil
}

func (i *Instance) ID() string     { return i.id }
func (i *Instance) Symbol() string { return i.contract.Symbol }

// Config returns the instance configuration.
func (i *Instance) Config() Config { return i.cfg }

// RuleName returns the rule variant name.
func (i *Instance) RuleName() string { return i.rule.Name() }

// Logs exposes the instance's operator log buffer.
func (i *Instance) Logs() *logstream.Buffer { return i.logs }

// Stop cancels any pending fill polling. Candle and trade state is simply
// discarded with the instance; websocket subscriptions are left in place.
func (i *Instance) Stop() { i.cancel() }

// OnTrade folds one trade print into the candle sequence, enforces TP/SL on
// open trades and evaluates the entry rule.
func (i *Instance) OnTrade(t common.TradeTick) {
	if diff := time.Now().UnixMilli() - t.Timestamp; diff >= staleTickMs {
		logrus.WithFields(logrus.Fields{
			"exchange": i.contract.Exchange,
			"symbol":   i.contract.Symbol,
		}).Warnf("late tick: %d ms between arrival and trade time", diff)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	tick, missing := i.series.apply(t.Price, t.Size, t.Timestamp)
	if missing > 0 {
		logrus.Infof("%s: filled %d missing candles for %s %s", i.contract.Exchange, missing, i.contract.Symbol, i.cfg.Timeframe)
	}

	if tick == TickSameCandle {
		for _, tr := range i.trades {
			if tr.Status == TradeOpen && tr.EntryFilled {
				i.checkTakeProfitStopLoss(tr)
			}
		}
	}

	if !i.ongoing {
		if signal := i.rule.Evaluate(i.series.candles, tick); signal != 0 {
			i.openPosition(signal)
		}
	}
}

// OnQuote recomputes the open trade PnL from the latest best bid/ask. It
// never touches the candle sequence.
func (i *Instance) OnQuote(q common.Quote) {
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, tr := range i.trades {
		if tr.Status != TradeOpen || !tr.EntryFilled {
			continue
		}
		price := q.Bid
		if tr.Side == common.SideShort {
			price = q.Ask
		}
		if price <= 0 {
			continue
		}
		tr.UpdatePnL(price)
		if i.bus != nil {
			i.bus.Publish(tr.view())
		}
	}
}

// Trades returns a copy of the instance's trade records.
func (i *Instance) Trades() []TradeView {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]TradeView, 0, len(i.trades))
	for _, tr := range i.trades {
		out = append(out, tr.view())
	}
	return out
}

// Candles returns a copy of the candle sequence.
func (i *Instance) Candles() []common.Candle {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.series.snapshot()
}

// openPosition sizes and submits a market entry order. Caller holds i.mu.
func (i *Instance) openPosition(signal int) {
	refPrice := i.series.lastClose()
	qty, err := i.conn.TradeSize(i.ctx, i.contract, refPrice, i.cfg.BalancePct)
	if err != nil {
		i.logs.Append(fmt.Sprintf("Cannot size order on %s %s: %v", i.contract.Symbol, i.cfg.Timeframe, err))
		return
	}
	if qty <= 0 {
		i.logs.Append(fmt.Sprintf("Trade size for %s rounded to zero, skipping signal", i.contract.Symbol))
		return
	}

	side := common.SideLong
	if signal == -1 {
		side = common.SideShort
	}
	i.logs.Append(fmt.Sprintf("%s signal on %s %s", side, i.contract.Symbol, i.cfg.Timeframe))

	status, err := i.conn.PlaceOrder(i.ctx, common.OrderRequest{
		Contract: i.contract,
		Type:     common.OrderTypeMarket,
		Side:     side,
		Qty:      qty,
	})
	if err != nil {
		i.logs.Append(fmt.Sprintf("Entry order on %s failed: %v", i.contract.Symbol, err))
		return
	}

	i.logs.Append(fmt.Sprintf("%s order placed on %s | status: %s", side, i.contract.Exchange, status.Status))
	i.ongoing = true

	tr := &Trade{
		ID:           status.OrderID,
		Time:         time.Now().UnixMilli(),
		Contract:     i.contract,
		Strategy:     i.rule.Name(),
		Side:         side,
		Status:       TradeOpen,
		Quantity:     status.ExecutedQty,
		EntryOrderID: status.OrderID,
	}
	if status.Status == common.StateFilled {
		tr.EntryPrice = status.AvgPrice
		tr.EntryFilled = true
	} else {
		i.watchFill(tr)
	}
	i.trades = append(i.trades, tr)

	if i.bus != nil {
		i.bus.Publish(tr.view())
	}
}

// watchFill polls the entry order until filled and backfills entry
// price/quantity onto the trade. Abandoned polls surface in the log stream.
func (i *Instance) watchFill(tr *Trade) {
	orderID := tr.EntryOrderID
	order.Watch(i.ctx, orderID, order.DefaultConfig(),
		func(ctx context.Context) (common.OrderStatus, error) {
			return i.conn.GetOrderStatus(ctx, i.contract, orderID)
		},
		func(status common.OrderStatus) {
			i.mu.Lock()
			tr.EntryPrice = status.AvgPrice
			tr.Quantity = status.ExecutedQty
			tr.EntryFilled = true
			view := tr.view()
			i.mu.Unlock()

			i.logs.Append(fmt.Sprintf("Entry order %s on %s filled at %v", orderID, i.contract.Symbol, status.AvgPrice))
			if i.bus != nil {
				i.bus.Publish(view)
			}
		},
		func(attempts int) {
			i.logs.Append(fmt.Sprintf("Order poll abandoned for %s on %s after %d attempts", orderID, i.contract.Symbol, attempts))
		})
}

// checkTakeProfitStopLoss closes the trade with an opposite market order
// when a threshold is hit. A failed exit order leaves the trade open and is
// only logged; no retry is scheduled. Caller holds i.mu.
func (i *Instance) checkTakeProfitStopLoss(tr *Trade) {
	current := i.series.lastClose()

	takeProfit, stopLoss := false, false
	switch tr.Side {
	case common.SideLong:
		if i.cfg.TakeProfit > 0 && current >= tr.EntryPrice*(1+i.cfg.TakeProfit/100) {
			takeProfit = true
		}
		if i.cfg.StopLoss > 0 && current <= tr.EntryPrice*(1-i.cfg.StopLoss/100) {
			stopLoss = true
		}
	case common.SideShort:
		if i.cfg.TakeProfit > 0 && current <= tr.EntryPrice*(1-i.cfg.TakeProfit/100) {
			takeProfit = true
		}
		if i.cfg.StopLoss > 0 && current >= tr.EntryPrice*(1+i.cfg.StopLoss/100) {
			stopLoss = true
		}
	}
	if !takeProfit && !stopLoss {
		return
	}

	reason := "Take profit"
	if stopLoss {
		reason = "Stop loss"
	}
	i.logs.Append(fmt.Sprintf("%s hit on %s %s | price %v, entry %v", reason, i.contract.Symbol, i.cfg.Timeframe, current, tr.EntryPrice))

	exitSide := common.SideShort
	if tr.Side == common.SideShort {
		exitSide = common.SideLong
	}

	_, err := i.conn.PlaceOrder(i.ctx, common.OrderRequest{
		Contract: i.contract,
		Type:     common.OrderTypeMarket,
		Side:     exitSide,
		Qty:      tr.Quantity,
	})
	if err != nil {
		i.logs.Append(fmt.Sprintf("Exit order on %s %s failed, position remains open: %v", i.contract.Symbol, i.cfg.Timeframe, err))
		return
	}

	i.logs.Append(fmt.Sprintf("Exit order on %s %s placed successfully", i.contract.Symbol, i.cfg.Timeframe))
	tr.Status = TradeClosed
	i.ongoing = false

	if i.bus != nil {
		i.bus.Publish(tr.view())
	}
}
