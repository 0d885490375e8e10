package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// BarStore is an in-memory implementation of storage.BarStore.
type BarStore struct {
	mu   sync.RWMutex
	data map[string]map[time.Time]*domain.Bar // symbol -> date -> bar
}

// NewBarStore creates a new in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{
		data: make(map[string]map[time.Time]*domain.Bar),
	}
}

var _ storage.BarStore = (*BarStore)(nil)

// InsertBars adds bars for a symbol. Fails the entire batch on any duplicate.
func (s *BarStore) InsertBars(_ context.Context, bars []*domain.Bar) error {
	for _, b := range bars {
		if b == nil || b.Symbol == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the whole batch before touching state.
	for _, b := range bars {
		if _, exists := s.data[b.Symbol][b.Date]; exists {
			return storage.ErrDuplicateKey
		}
	}

	for _, b := range bars {
		if s.data[b.Symbol] == nil {
			s.data[b.Symbol] = make(map[time.Time]*domain.Bar)
		}
		barCopy := *b
		s.data[b.Symbol][b.Date] = &barCopy
	}
	return nil
}

// GetBySymbol retrieves all bars for a symbol, ordered by date ASC.
func (s *BarStore) GetBySymbol(_ context.Context, symbol string) ([]*domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bySymbol, exists := s.data[symbol]
	if !exists || len(bySymbol) == 0 {
		return nil, storage.ErrNotFound
	}

	result := make([]*domain.Bar, 0, len(bySymbol))
	for _, b := range bySymbol {
		barCopy := *b
		result = append(result, &barCopy)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// GetByDateRange retrieves bars for a symbol within [start, end] (inclusive).
func (s *BarStore) GetByDateRange(_ context.Context, symbol string, start, end time.Time) ([]*domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Bar
	for date, b := range s.data[symbol] {
		if date.Before(start) || date.After(end) {
			continue
		}
		barCopy := *b
		result = append(result, &barCopy)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// Symbols lists the distinct symbols with stored bars, sorted.
func (s *BarStore) Symbols(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbols := make([]string, 0, len(s.data))
	for symbol, bars := range s.data {
		if len(bars) > 0 {
			symbols = append(symbols, symbol)
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}
