package db

import (
	"context"
	"reflect"
	"testing"
)

func newTestQueries(t *testing.T) *WorkspaceQueries {
	t.Helper()
	database, err := New(":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := ApplyMigrations(database); err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}
	return NewWorkspaceQueries(database.DB)
}

func TestWatchlistRoundtrip(t *testing.T) {
	q := newTestQueries(t)
	ctx := context.Background()

	got, err := q.GetWatchlist(ctx)
	if err != nil {
		t.Fatalf("GetWatchlist: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty watchlist, got %v", got)
	}

	entries := []WatchRow{
		{Symbol: "XBTUSD", Exchange: "bitmex"},
		{Symbol: "BTCUSDT", Exchange: "binance"},
		{Symbol: "ETHUSDT", Exchange: "binance"},
	}
	if err := q.SaveWatchlist(ctx, entries); err != nil {
		t.Fatalf("SaveWatchlist: %v", err)
	}

	got, err = q.GetWatchlist(ctx)
	if err != nil {
		t.Fatalf("GetWatchlist: %v", err)
	}
	want := []WatchRow{
		{Symbol: "BTCUSDT", Exchange: "binance"},
		{Symbol: "ETHUSDT", Exchange: "binance"},
		{Symbol: "XBTUSD", Exchange: "bitmex"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("watchlist = %v, want %v", got, want)
	}

	// A save replaces the previous snapshot entirely.
	if err := q.SaveWatchlist(ctx, []WatchRow{{Symbol: "XBTUSD", Exchange: "bitmex"}}); err != nil {
		t.Fatalf("SaveWatchlist: %v", err)
	}
	got, err = q.GetWatchlist(ctx)
	if err != nil {
		t.Fatalf("GetWatchlist: %v", err)
	}
	if len(got) != 1 || got[0].Symbol != "XBTUSD" {
		t.Errorf("watchlist after replace = %v", got)
	}
}

func TestStrategiesRoundtrip(t *testing.T) {
	q := newTestQueries(t)
	ctx := context.Background()

	entries := []StrategyRow{
		{
			StrategyType: "technical",
			Contract:     "BTCUSDT",
			Exchange:     "binance",
			Timeframe:    "15m",
			BalancePct:   5,
			TakeProfit:   2,
			StopLoss:     1,
			ExtraParams:  `{"rsi_length":14}`,
		},
		{
			StrategyType: "breakout",
			Contract:     "XBTUSD",
			Exchange:     "bitmex",
			Timeframe:    "1h",
			BalancePct:   10,
			TakeProfit:   3,
			StopLoss:     1.5,
		},
	}
	if err := q.SaveStrategies(ctx, entries); err != nil {
		t.Fatalf("SaveStrategies: %v", err)
	}

	got, err := q.GetStrategies(ctx)
	if err != nil {
		t.Fatalf("GetStrategies: %v", err)
	}
	if !reflect.DeepEqual(got, entries) {
		t.Errorf("strategies = %v, want %v", got, entries)
	}

	if err := q.SaveStrategies(ctx, nil); err != nil {
		t.Fatalf("SaveStrategies(nil): %v", err)
	}
	got, err = q.GetStrategies(ctx)
	if err != nil {
		t.Fatalf("GetStrategies: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty strategies after clearing save, got %v", got)
	}
}
