// internal/storage/runstore/memory.go
package runstore

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/newthinker/tradesim/internal/backtest"
)

type memoryRun struct {
	summary Summary
	records []backtest.Record
}

// MemoryStore is an in-memory run store. It keeps at most maxSize runs,
// evicting the oldest.
type MemoryStore struct {
	runs    []memoryRun
	maxSize int
	mu      sync.RWMutex
	now     func() time.Time
}

// NewMemoryStore creates a new in-memory store with max capacity.
func NewMemoryStore(maxSize int) *MemoryStore {
	return &MemoryStore{
		runs:    make([]memoryRun, 0, maxSize),
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Save adds a run to the store.
func (m *MemoryStore) Save(ctx context.Context, result *backtest.Result) error {
	if result.Run == nil || result.Run.ID == "" {
		return fmt.Errorf("result has no run id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.runs {
		if r.summary.ID == result.Run.ID {
			return ErrDuplicate
		}
	}

	m.runs = append(m.runs, memoryRun{
		summary: SummaryOf(result, m.now()),
		records: slices.Clone(result.Run.Records),
	})

	// Trim if over capacity (remove oldest)
	if m.maxSize > 0 && len(m.runs) > m.maxSize {
		m.runs = m.runs[len(m.runs)-m.maxSize:]
	}

	return nil
}

// Get retrieves a run header by ID.
func (m *MemoryStore) Get(ctx context.Context, id string) (*Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.runs {
		if m.runs[i].summary.ID == id {
			s := m.runs[i].summary
			return &s, nil
		}
	}
	return nil, ErrNotFound
}

// History retrieves the records of a run.
func (m *MemoryStore) History(ctx context.Context, id string) ([]backtest.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.runs {
		if m.runs[i].summary.ID == id {
			return slices.Clone(m.runs[i].records), nil
		}
	}
	return nil, ErrNotFound
}

// List returns runs matching the filter, newest first.
func (m *MemoryStore) List(ctx context.Context, filter ListFilter) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Summary
	for i := len(m.runs) - 1; i >= 0; i-- {
		if filter.Matches(m.runs[i].summary) {
			result = append(result, m.runs[i].summary)
		}
	}

	// Apply offset and limit
	if filter.Offset >= len(result) {
		return []Summary{}, nil
	}
	result = result[filter.Offset:]

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}
