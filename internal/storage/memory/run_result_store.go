package memory

import (
	"context"
	"sort"
	"sync"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// RunResultStore is an in-memory implementation of storage.RunResultStore.
type RunResultStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RunResult // keyed by run_id
}

// NewRunResultStore creates a new in-memory run result store.
func NewRunResultStore() *RunResultStore {
	return &RunResultStore{
		data: make(map[string]*domain.RunResult),
	}
}

var _ storage.RunResultStore = (*RunResultStore)(nil)

// Insert adds a completed run. Returns ErrDuplicateKey if run_id exists.
func (s *RunResultStore) Insert(_ context.Context, r *domain.RunResult) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[r.RunID] = cloneRunResult(r)
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunResultStore) GetByID(_ context.Context, runID string) (*domain.RunResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneRunResult(r), nil
}

// GetBySymbol retrieves all runs for a symbol, newest first.
func (s *RunResultStore) GetBySymbol(_ context.Context, symbol string) ([]*domain.RunResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RunResult
	for _, r := range s.data {
		if r.Symbol == symbol {
			result = append(result, cloneRunResult(r))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].GeneratedAt.After(result[j].GeneratedAt)
	})
	return result, nil
}

// ListIDs lists all stored run IDs, sorted.
func (s *RunResultStore) ListIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// cloneRunResult copies a run deeply enough that callers cannot mutate
// stored trades, equity points or skip records through returned pointers.
func cloneRunResult(r *domain.RunResult) *domain.RunResult {
	out := *r

	out.Trades = make([]*domain.Trade, len(r.Trades))
	for i, t := range r.Trades {
		tradeCopy := *t
		out.Trades[i] = &tradeCopy
	}
	out.EquityCurve = make([]*domain.EquityPoint, len(r.EquityCurve))
	for i, p := range r.EquityCurve {
		pointCopy := *p
		out.EquityCurve[i] = &pointCopy
	}
	out.Skipped = make([]*domain.SkippedSignal, len(r.Skipped))
	for i, sk := range r.Skipped {
		skipCopy := *sk
		out.Skipped[i] = &skipCopy
	}
	return &out
}
