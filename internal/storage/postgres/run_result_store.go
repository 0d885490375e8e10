package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// RunResultStore implements storage.RunResultStore using PostgreSQL. A run is
// written atomically across the header, trade, equity point and skip tables.
type RunResultStore struct {
	pool *Pool
}

// NewRunResultStore creates a new RunResultStore.
func NewRunResultStore(pool *Pool) *RunResultStore {
	return &RunResultStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunResultStore = (*RunResultStore)(nil)

// Insert adds a completed run. Returns ErrDuplicateKey if run_id exists.
func (s *RunResultStore) Insert(ctx context.Context, r *domain.RunResult) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	configJSON, err := json.Marshal(r.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO run_results (
			run_id, symbol, sizing_id, config, bar_count, final_state,
			total_return, annual_return, max_drawdown, sharpe_ratio, win_rate, profit_factor,
			generated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		r.RunID, r.Symbol, r.SizingID, configJSON, r.BarCount, string(r.FinalState),
		r.Metrics.TotalReturn, r.Metrics.AnnualReturn, r.Metrics.MaxDrawdown,
		r.Metrics.SharpeRatio, r.Metrics.WinRate, r.Metrics.ProfitFactor,
		r.GeneratedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run result: %w", err)
	}

	for i, t := range r.Trades {
		_, err = tx.Exec(ctx, `
			INSERT INTO run_trades (
				run_id, seq, trade_date, action, execution_price, shares,
				commission, gross_value, cash_before, cash_after, equity_before, equity_after,
				trigger_reason, entry_price, holding_days, realized_profit, realized_profit_pct
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		`,
			r.RunID, i, t.Date, string(t.Action), t.ExecutionPrice, t.Shares,
			t.Commission, t.GrossValue, t.CashBefore, t.CashAfter, t.EquityBefore, t.EquityAfter,
			t.TriggerReason, t.EntryPrice, t.HoldingDays, t.RealizedProfit, t.RealizedProfitPct,
		)
		if err != nil {
			return fmt.Errorf("insert run trade %d: %w", i, err)
		}
	}

	for i, p := range r.EquityCurve {
		_, err = tx.Exec(ctx, `
			INSERT INTO run_equity_points (
				run_id, seq, point_date, open, high, low, close, volume,
				cash, shares_held, position_value, equity, drawdown
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`,
			r.RunID, i, p.Date, p.Open, p.High, p.Low, p.Close, p.Volume,
			p.Cash, p.SharesHeld, p.PositionValue, p.Equity, p.Drawdown,
		)
		if err != nil {
			return fmt.Errorf("insert equity point %d: %w", i, err)
		}
	}

	for i, sk := range r.Skipped {
		_, err = tx.Exec(ctx, `
			INSERT INTO run_skipped_signals (run_id, seq, signal_date, signal, reason, detail)
			VALUES ($1, $2, $3, $4, $5, $6)
		`,
			r.RunID, i, sk.Date, int(sk.Signal), string(sk.Reason), sk.Detail,
		)
		if err != nil {
			return fmt.Errorf("insert skipped signal %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunResultStore) GetByID(ctx context.Context, runID string) (*domain.RunResult, error) {
	r := &domain.RunResult{}
	var configJSON []byte
	var finalState string

	err := s.pool.QueryRow(ctx, `
		SELECT run_id, symbol, sizing_id, config, bar_count, final_state,
		       total_return, annual_return, max_drawdown, sharpe_ratio, win_rate, profit_factor,
		       generated_at
		FROM run_results
		WHERE run_id = $1
	`, runID).Scan(
		&r.RunID, &r.Symbol, &r.SizingID, &configJSON, &r.BarCount, &finalState,
		&r.Metrics.TotalReturn, &r.Metrics.AnnualReturn, &r.Metrics.MaxDrawdown,
		&r.Metrics.SharpeRatio, &r.Metrics.WinRate, &r.Metrics.ProfitFactor,
		&r.GeneratedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("select run result: %w", err)
	}
	r.FinalState = domain.PositionState(finalState)

	if err := json.Unmarshal(configJSON, &r.Config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if r.Trades, err = s.loadTrades(ctx, runID); err != nil {
		return nil, err
	}
	if r.EquityCurve, err = s.loadEquityCurve(ctx, runID); err != nil {
		return nil, err
	}
	if r.Skipped, err = s.loadSkipped(ctx, runID); err != nil {
		return nil, err
	}
	return r, nil
}

// GetBySymbol retrieves all runs for a symbol, newest first.
func (s *RunResultStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.RunResult, error) {
	ids, err := s.queryIDs(ctx, `
		SELECT run_id FROM run_results
		WHERE symbol = $1
		ORDER BY generated_at DESC
	`, symbol)
	if err != nil {
		return nil, err
	}

	results := make([]*domain.RunResult, 0, len(ids))
	for _, id := range ids {
		r, err := s.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

// ListIDs lists all stored run IDs.
func (s *RunResultStore) ListIDs(ctx context.Context) ([]string, error) {
	return s.queryIDs(ctx, `SELECT run_id FROM run_results ORDER BY run_id ASC`)
}

func (s *RunResultStore) queryIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query run ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *RunResultStore) loadTrades(ctx context.Context, runID string) ([]*domain.Trade, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT trade_date, action, execution_price, shares,
		       commission, gross_value, cash_before, cash_after, equity_before, equity_after,
		       trigger_reason, entry_price, holding_days, realized_profit, realized_profit_pct
		FROM run_trades
		WHERE run_id = $1
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run trades: %w", err)
	}
	defer rows.Close()

	var trades []*domain.Trade
	for rows.Next() {
		t := &domain.Trade{}
		var action string
		err := rows.Scan(
			&t.Date, &action, &t.ExecutionPrice, &t.Shares,
			&t.Commission, &t.GrossValue, &t.CashBefore, &t.CashAfter, &t.EquityBefore, &t.EquityAfter,
			&t.TriggerReason, &t.EntryPrice, &t.HoldingDays, &t.RealizedProfit, &t.RealizedProfitPct,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run trade: %w", err)
		}
		t.Action = domain.Action(action)
		t.Date = t.Date.UTC()
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (s *RunResultStore) loadEquityCurve(ctx context.Context, runID string) ([]*domain.EquityPoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT point_date, open, high, low, close, volume,
		       cash, shares_held, position_value, equity, drawdown
		FROM run_equity_points
		WHERE run_id = $1
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query equity points: %w", err)
	}
	defer rows.Close()

	var points []*domain.EquityPoint
	for rows.Next() {
		p := &domain.EquityPoint{}
		err := rows.Scan(
			&p.Date, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume,
			&p.Cash, &p.SharesHeld, &p.PositionValue, &p.Equity, &p.Drawdown,
		)
		if err != nil {
			return nil, fmt.Errorf("scan equity point: %w", err)
		}
		p.Date = p.Date.UTC()
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *RunResultStore) loadSkipped(ctx context.Context, runID string) ([]*domain.SkippedSignal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT signal_date, signal, reason, detail
		FROM run_skipped_signals
		WHERE run_id = $1
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query skipped signals: %w", err)
	}
	defer rows.Close()

	var skipped []*domain.SkippedSignal
	for rows.Next() {
		sk := &domain.SkippedSignal{}
		var signal int
		var reason string
		if err := rows.Scan(&sk.Date, &signal, &reason, &sk.Detail); err != nil {
			return nil, fmt.Errorf("scan skipped signal: %w", err)
		}
		sk.Signal = domain.Signal(signal)
		sk.Reason = domain.SkipReason(reason)
		sk.Date = sk.Date.UTC()
		skipped = append(skipped, sk)
	}
	return skipped, rows.Err()
}
