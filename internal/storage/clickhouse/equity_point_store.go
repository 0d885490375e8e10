package clickhouse

import (
	"context"
	"fmt"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// EquityPointStore writes per-run equity curves to ClickHouse for analytical
// queries across many runs. Postgres remains the system of record for runs;
// this table is a write-once analytical copy.
type EquityPointStore struct {
	conn *Conn
}

// NewEquityPointStore creates a new EquityPointStore.
func NewEquityPointStore(conn *Conn) *EquityPointStore {
	return &EquityPointStore{conn: conn}
}

// Ensure EquityPointStore implements the interface
var _ storage.EquityCurveStore = (*EquityPointStore)(nil)

// InsertCurve stores the full equity curve of one run. Returns
// ErrDuplicateKey if the run already has points stored.
func (s *EquityPointStore) InsertCurve(ctx context.Context, runID, symbol string, points []*domain.EquityPoint) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count() FROM equity_points WHERE run_id = ?`, runID).Scan(&count)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if count > 0 {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO equity_points (
			run_id, symbol, seq, date,
			open, high, low, close, volume,
			cash, shares_held, position_value, equity, drawdown
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for i, p := range points {
		err := batch.Append(
			runID, symbol, uint32(i), p.Date,
			p.Open, p.High, p.Low, p.Close, p.Volume,
			p.Cash, p.SharesHeld, p.PositionValue, p.Equity, p.Drawdown,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByRunID retrieves the equity curve of a run, ordered by seq ASC.
// Returns ErrNotFound if the run has no stored points.
func (s *EquityPointStore) GetByRunID(ctx context.Context, runID string) ([]*domain.EquityPoint, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT date, open, high, low, close, volume,
		       cash, shares_held, position_value, equity, drawdown
		FROM equity_points
		WHERE run_id = ?
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
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, storage.ErrNotFound
	}
	return points, nil
}

// MaxDrawdownBySymbol aggregates, per symbol, the worst drawdown across all
// stored runs. This is the kind of cross-run scan the analytical table is for.
func (s *EquityPointStore) MaxDrawdownBySymbol(ctx context.Context) (map[string]float64, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT symbol, max(drawdown)
		FROM equity_points
		GROUP BY symbol
	`)
	if err != nil {
		return nil, fmt.Errorf("query max drawdowns: %w", err)
	}
	defer rows.Close()

	result := make(map[string]float64)
	for rows.Next() {
		var symbol string
		var dd float64
		if err := rows.Scan(&symbol, &dd); err != nil {
			return nil, fmt.Errorf("scan drawdown: %w", err)
		}
		result[symbol] = dd
	}
	return result, rows.Err()
}
