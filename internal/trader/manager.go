// Package trader owns the running strategy instances and the operator
// workspace: which instruments are watched and which strategies are active.
package trader

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tradeking/internal/events"
	"tradeking/internal/strategy"
	"tradeking/pkg/config"
	"tradeking/pkg/db"
	"tradeking/pkg/exchanges/common"
	"tradeking/pkg/logstream"
)

// Manager routes operator commands to venues and strategy instances.
type Manager struct {
	connectors map[string]common.Connector
	workspace  *db.WorkspaceQueries
	bus        *events.Bus[strategy.TradeView]
	defaults   config.StrategyDefaults
	logs       *logstream.Buffer

	mu        sync.Mutex
	instances map[string]*strategy.Instance
	watchlist []db.WatchRow
}

// NewManager creates the manager over the given venues.
func NewManager(connectors map[string]common.Connector, workspace *db.WorkspaceQueries, bus *events.Bus[strategy.TradeView], defaults config.StrategyDefaults) *Manager {
	return &Manager{
		connectors: connectors,
		workspace:  workspace,
		bus:        bus,
		defaults:   defaults,
		logs:       logstream.NewBuffer(),
		instances:  make(map[string]*strategy.Instance),
	}
}

// Connector returns the venue connector by platform name.
func (m *Manager) Connector(platform string) (common.Connector, bool) {
	c, ok := m.connectors[platform]
	return c, ok
}

// Platforms returns the configured venue names, sorted.
func (m *Manager) Platforms() []string {
	out := make([]string, 0, len(m.connectors))
	for name := range m.connectors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Activate builds a strategy instance from its configuration, seeds it with
// history and wires it into the venue stream. Activation fails when the
// venue cannot provide any historical candles.
func (m *Manager) Activate(ctx context.Context, cfg strategy.Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	conn, ok := m.connectors[cfg.Exchange]
	if !ok {
		return "", fmt.Errorf("unknown exchange %q", cfg.Exchange)
	}
	contract, ok := conn.GetContract(cfg.Symbol)
	if !ok {
		return "", fmt.Errorf("unknown contract %q on %s", cfg.Symbol, cfg.Exchange)
	}

	if len(cfg.Extra) == 0 {
		extra, err := m.defaultExtra(cfg.Type)
		if err != nil {
			return "", err
		}
		cfg.Extra = extra
	}
	rule, err := strategy.BuildRule(cfg.Type, cfg.Extra)
	if err != nil {
		return "", err
	}

	seed, err := conn.GetHistoricalCandles(ctx, contract, cfg.Timeframe)
	if err != nil {
		return "", fmt.Errorf("fetch history for %s %s: %w", cfg.Symbol, cfg.Timeframe, err)
	}
	if len(seed) == 0 {
		return "", fmt.Errorf("no historical candles for %s %s", cfg.Symbol, cfg.Timeframe)
	}

	id := uuid.NewString()
	inst, err := strategy.NewInstance(id, cfg, contract, conn, rule, seed, m.bus)
	if err != nil {
		return "", err
	}

	conn.RegisterHandler(inst)
	if err := conn.SubscribeChannel(conn.TradeChannel(), []common.Contract{contract}, false); err != nil {
		conn.UnregisterHandler(id)
		return "", err
	}
	if err := conn.SubscribeChannel(conn.MarketDataChannel(), []common.Contract{contract}, false); err != nil {
		logrus.Warnf("market data subscription for %s failed: %v", cfg.Symbol, err)
	}

	m.mu.Lock()
	m.instances[id] = inst
	m.mu.Unlock()

	m.logs.Append(fmt.Sprintf("%s strategy activated on %s %s %s", rule.Name(), cfg.Exchange, cfg.Symbol, cfg.Timeframe))
	return id, nil
}

// Deactivate stops an instance and removes it from the venue dispatch. The
// websocket subscriptions stay in place; another instance may be consuming
// the same stream.
func (m *Manager) Deactivate(id string) error {
	m.mu.Lock()
	inst, ok := m.instances[id]
	if ok {
		delete(m.instances, id)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown strategy %q", id)
	}

	cfg := inst.Config()
	if conn, ok := m.connectors[cfg.Exchange]; ok {
		conn.UnregisterHandler(id)
	}
	inst.Stop()

	m.logs.Append(fmt.Sprintf("%s strategy deactivated on %s %s", inst.RuleName(), cfg.Exchange, cfg.Symbol))
	return nil
}

// Instance returns a running instance by id.
func (m *Manager) Instance(id string) (*strategy.Instance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[id]
	return inst, ok
}

// Instances returns a copy of the running instances keyed by id.
func (m *Manager) Instances() map[string]*strategy.Instance {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*strategy.Instance, len(m.instances))
	for id, inst := range m.instances {
		out[id] = inst
	}
	return out
}

// Trades aggregates the trade records of every running instance.
func (m *Manager) Trades() []strategy.TradeView {
	var out []strategy.TradeView
	for _, inst := range m.Instances() {
		out = append(out, inst.Trades()...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

// CollectLogs drains undelivered log entries from the manager and every
// instance buffer.
func (m *Manager) CollectLogs() []logstream.Entry {
	out := m.logs.Collect()
	for _, inst := range m.Instances() {
		out = append(out, inst.Logs().Collect()...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

// Watchlist returns the watched instruments.
func (m *Manager) Watchlist() []db.WatchRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]db.WatchRow(nil), m.watchlist...)
}

// SetWatchlist replaces the watched instruments, subscribes their market
// data streams and persists the new list.
func (m *Manager) SetWatchlist(ctx context.Context, entries []db.WatchRow) error {
	perExchange := make(map[string][]common.Contract)
	for _, w := range entries {
		conn, ok := m.connectors[w.Exchange]
		if !ok {
			return fmt.Errorf("unknown exchange %q", w.Exchange)
		}
		contract, ok := conn.GetContract(w.Symbol)
		if !ok {
			return fmt.Errorf("unknown contract %q on %s", w.Symbol, w.Exchange)
		}
		perExchange[w.Exchange] = append(perExchange[w.Exchange], contract)
	}

	for exchange, contracts := range perExchange {
		conn := m.connectors[exchange]
		if err := conn.SubscribeChannel(conn.MarketDataChannel(), contracts, false); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.watchlist = append([]db.WatchRow(nil), entries...)
	m.mu.Unlock()

	return m.workspace.SaveWatchlist(ctx, entries)
}

// Prices returns the per-venue quote caches.
func (m *Manager) Prices() map[string]map[string]common.Quote {
	out := make(map[string]map[string]common.Quote, len(m.connectors))
	for name, conn := range m.connectors {
		out[name] = conn.Quotes()
	}
	return out
}

// SaveWorkspace persists the watchlist and the running strategy
// configurations.
func (m *Manager) SaveWorkspace(ctx context.Context) error {
	m.mu.Lock()
	watchlist := append([]db.WatchRow(nil), m.watchlist...)
	rows := make([]db.StrategyRow, 0, len(m.instances))
	for _, inst := range m.instances {
		cfg := inst.Config()
		rows = append(rows, db.StrategyRow{
			StrategyType: cfg.Type,
			Contract:     cfg.Symbol,
			Exchange:     cfg.Exchange,
			Timeframe:    cfg.Timeframe,
			BalancePct:   cfg.BalancePct,
			TakeProfit:   cfg.TakeProfit,
			StopLoss:     cfg.StopLoss,
			ExtraParams:  string(cfg.Extra),
		})
	}
	m.mu.Unlock()

	if err := m.workspace.SaveWatchlist(ctx, watchlist); err != nil {
		return err
	}
	return m.workspace.SaveStrategies(ctx, rows)
}

// LoadWorkspace restores the saved watchlist and reactivates saved
// strategies. A strategy that fails to activate is logged and skipped so a
// single broken entry cannot block startup.
func (m *Manager) LoadWorkspace(ctx context.Context) error {
	watchlist, err := m.workspace.GetWatchlist(ctx)
	if err != nil {
		return err
	}
	if len(watchlist) > 0 {
		if err := m.SetWatchlist(ctx, watchlist); err != nil {
			logrus.Warnf("restore watchlist: %v", err)
		}
	}

	rows, err := m.workspace.GetStrategies(ctx)
	if err != nil {
		return err
	}
	for _, row := range rows {
		cfg := strategy.Config{
			Exchange:   row.Exchange,
			Symbol:     row.Contract,
			Type:       row.StrategyType,
			Timeframe:  row.Timeframe,
			BalancePct: row.BalancePct,
			TakeProfit: row.TakeProfit,
			StopLoss:   row.StopLoss,
		}
		if row.ExtraParams != "" {
			cfg.Extra = json.RawMessage(row.ExtraParams)
		}
		if _, err := m.Activate(ctx, cfg); err != nil {
			logrus.Warnf("restore %s strategy on %s %s: %v", row.StrategyType, row.Exchange, row.Contract, err)
		}
	}
	return nil
}

// defaultExtra renders the configured defaults for a rule variant as its
// parameter blob.
func (m *Manager) defaultExtra(ruleType string) (json.RawMessage, error) {
	switch ruleType {
	case strategy.TypeTechnical:
		return json.Marshal(strategy.TechnicalParams{
			EmaFast:   m.defaults.Technical.EmaFast,
			EmaSlow:   m.defaults.Technical.EmaSlow,
			EmaSignal: m.defaults.Technical.EmaSignal,
			RsiLength: m.defaults.Technical.RsiLength,
		})
	case strategy.TypeBreakout:
		return json.Marshal(strategy.BreakoutParams{
			MinVolume: m.defaults.Breakout.MinVolume,
		})
	default:
		return nil, fmt.Errorf("unknown strategy type %q", ruleType)
	}
}
