package memory

import (
	"context"
	"sync"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// EquityCurveStore is an in-memory implementation of storage.EquityCurveStore.
type EquityCurveStore struct {
	mu     sync.RWMutex
	curves map[string][]*domain.EquityPoint // keyed by run_id
	symbol map[string]string                // run_id -> symbol
}

// NewEquityCurveStore creates a new in-memory equity curve store.
func NewEquityCurveStore() *EquityCurveStore {
	return &EquityCurveStore{
		curves: make(map[string][]*domain.EquityPoint),
		symbol: make(map[string]string),
	}
}

var _ storage.EquityCurveStore = (*EquityCurveStore)(nil)

// InsertCurve stores the full equity curve of one run. Returns
// ErrDuplicateKey if the run already has points stored.
func (s *EquityCurveStore) InsertCurve(_ context.Context, runID, symbol string, points []*domain.EquityPoint) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.curves[runID]; exists {
		return storage.ErrDuplicateKey
	}

	stored := make([]*domain.EquityPoint, len(points))
	for i, p := range points {
		cp := *p
		stored[i] = &cp
	}
	s.curves[runID] = stored
	s.symbol[runID] = symbol
	return nil
}

// GetByRunID retrieves the equity curve of a run in insertion order.
// Returns ErrNotFound if the run has no stored points.
func (s *EquityCurveStore) GetByRunID(_ context.Context, runID string) ([]*domain.EquityPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points, exists := s.curves[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	out := make([]*domain.EquityPoint, len(points))
	for i, p := range points {
		cp := *p
		out[i] = &cp
	}
	return out, nil
}

// Len reports the number of stored curves.
func (s *EquityCurveStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.curves)
}
