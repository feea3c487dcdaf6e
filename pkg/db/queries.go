// Package db persists the operator workspace: the watchlist and the saved
// strategy configurations. Saves replace the whole table in one transaction
// so the stored workspace always matches the last snapshot exactly.
package db

import (
	"context"
	"database/sql"
	"fmt"
)

// WorkspaceQueries provides workspace persistence.
type WorkspaceQueries struct {
	db *sql.DB
}

// NewWorkspaceQueries creates a new WorkspaceQueries instance.
func NewWorkspaceQueries(db *sql.DB) *WorkspaceQueries {
	return &WorkspaceQueries{db: db}
}

// GetWatchlist returns all saved watchlist entries.
func (q *WorkspaceQueries) GetWatchlist(ctx context.Context) ([]WatchRow, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT symbol, exchange
		FROM watchlist
		ORDER BY exchange, symbol
	`)
	if err != nil {
		return nil, fmt.Errorf("query watchlist: %w", err)
	}
	defer rows.Close()

	var out []WatchRow
	for rows.Next() {
		var w WatchRow
		if err := rows.Scan(&w.Symbol, &w.Exchange); err != nil {
			return nil, fmt.Errorf("scan watchlist row: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// SaveWatchlist replaces the stored watchlist with the given entries.
func (q *WorkspaceQueries) SaveWatchlist(ctx context.Context, entries []WatchRow) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin watchlist save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM watchlist`); err != nil {
		return fmt.Errorf("clear watchlist: %w", err)
	}
	for _, w := range entries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO watchlist (symbol, exchange) VALUES (?, ?)
		`, w.Symbol, w.Exchange); err != nil {
			return fmt.Errorf("insert watchlist row: %w", err)
		}
	}
	return tx.Commit()
}

// GetStrategies returns all saved strategy configurations.
func (q *WorkspaceQueries) GetStrategies(ctx context.Context) ([]StrategyRow, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT strategy_type, contract, exchange, timeframe,
		       balance_pct, take_profit, stop_loss, COALESCE(extra_params, '')
		FROM strategies
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query strategies: %w", err)
	}
	defer rows.Close()

	var out []StrategyRow
	for rows.Next() {
		var s StrategyRow
		if err := rows.Scan(&s.StrategyType, &s.Contract, &s.Exchange, &s.Timeframe,
			&s.BalancePct, &s.TakeProfit, &s.StopLoss, &s.ExtraParams); err != nil {
			return nil, fmt.Errorf("scan strategy row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SaveStrategies replaces the stored strategy configurations.
func (q *WorkspaceQueries) SaveStrategies(ctx context.Context, entries []StrategyRow) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin strategies save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM strategies`); err != nil {
		return fmt.Errorf("clear strategies: %w", err)
	}
	for _, s := range entries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO strategies (strategy_type, contract, exchange, timeframe,
			                        balance_pct, take_profit, stop_loss, extra_params)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, s.StrategyType, s.Contract, s.Exchange, s.Timeframe,
			s.BalancePct, s.TakeProfit, s.StopLoss, s.ExtraParams); err != nil {
			return fmt.Errorf("insert strategy row: %w", err)
		}
	}
	return tx.Commit()
}
