package memory

import (
	"context"
	"sync"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// ResultCache is an in-memory implementation of storage.ResultCache. It lives
// for one process and is passed explicitly to anything that wants it; there is
// no global instance.
type ResultCache struct {
	mu   sync.RWMutex
	data map[string]*domain.RunResult // keyed by run key
}

// NewResultCache creates a new in-memory result cache.
func NewResultCache() *ResultCache {
	return &ResultCache{
		data: make(map[string]*domain.RunResult),
	}
}

var _ storage.ResultCache = (*ResultCache)(nil)

// Get retrieves a cached run. Returns ErrNotFound on a miss.
func (c *ResultCache) Get(_ context.Context, runKey string) (*domain.RunResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, exists := c.data[runKey]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneRunResult(r), nil
}

// Set stores a run under its key, overwriting any previous entry.
func (c *ResultCache) Set(_ context.Context, runKey string, r *domain.RunResult) error {
	if runKey == "" || r == nil {
		return storage.ErrInvalidInput
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[runKey] = cloneRunResult(r)
	return nil
}

// Len reports the number of cached runs.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
