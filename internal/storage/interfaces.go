package storage

import (
	"context"
	"time"

	"backtest-lab/internal/domain"
)

// BarStore provides access to daily bar storage.
type BarStore interface {
	// InsertBars adds bars for a symbol. Fails the entire batch on any
	// duplicate (symbol, date).
	InsertBars(ctx context.Context, bars []*domain.Bar) error

	// GetBySymbol retrieves all bars for a symbol, ordered by date ASC.
	// Returns ErrNotFound if the symbol has no bars.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.Bar, error)

	// GetByDateRange retrieves bars for a symbol within [start, end]
	// (inclusive), ordered by date ASC.
	GetByDateRange(ctx context.Context, symbol string, start, end time.Time) ([]*domain.Bar, error)

	// Symbols lists the distinct symbols with stored bars.
	Symbols(ctx context.Context) ([]string, error)
}

// RunResultStore provides access to completed run storage.
type RunResultStore interface {
	// Insert adds a completed run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.RunResult) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.RunResult, error)

	// GetBySymbol retrieves all runs for a symbol, newest first.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.RunResult, error)

	// ListIDs lists all stored run IDs.
	ListIDs(ctx context.Context) ([]string, error)
}

// EquityCurveStore holds a write-once analytical copy of per-run equity
// curves, separate from the run system of record, for cross-run queries.
type EquityCurveStore interface {
	// InsertCurve stores the full equity curve of one run. Returns
	// ErrDuplicateKey if the run already has points stored.
	InsertCurve(ctx context.Context, runID, symbol string, points []*domain.EquityPoint) error

	// GetByRunID retrieves the equity curve of a run, ordered by sequence.
	// Returns ErrNotFound if the run has no stored points.
	GetByRunID(ctx context.Context, runID string) ([]*domain.EquityPoint, error)
}

// ResultCache keys completed runs by their deterministic run key so a
// repeated configuration over identical data is served without re-simulating.
type ResultCache interface {
	// Get retrieves a cached run. Returns ErrNotFound on a miss.
	Get(ctx context.Context, runKey string) (*domain.RunResult, error)

	// Set stores a run under its key, overwriting any previous entry.
	Set(ctx context.Context, runKey string, r *domain.RunResult) error
}
