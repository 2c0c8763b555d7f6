// internal/storage/runstore/interface.go
package runstore

import (
	"context"
	"errors"
	"time"

	"github.com/newthinker/tradesim/internal/backtest"
)

var (
	// ErrNotFound is returned when no run has the requested ID.
	ErrNotFound = errors.New("runstore: run not found")
	// ErrDuplicate is returned when a run ID is saved twice.
	ErrDuplicate = errors.New("runstore: run already saved")
)

// Summary is the stored header of one backtest run
type Summary struct {
	ID        string
	Job       backtest.Job
	CreatedAt time.Time
	Metrics   backtest.Metrics
	Counters  backtest.Counters
}

// Store defines the interface for backtest run persistence. Every Store is
// also a backtest.ResultSink.
type Store interface {
	// Save persists the run header, its history and its events.
	Save(ctx context.Context, result *backtest.Result) error

	// Get retrieves a run header by ID.
	Get(ctx context.Context, id string) (*Summary, error)

	// History retrieves the per-bar records of a run in time order.
	History(ctx context.Context, id string) ([]backtest.Record, error)

	// List retrieves run headers matching the filter, newest first.
	List(ctx context.Context, filter ListFilter) ([]Summary, error)
}

// ListFilter defines criteria for listing runs.
type ListFilter struct {
	Symbol   string
	Strategy string
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}

// Matches reports whether a summary passes the filter's field criteria.
// Limit and Offset are applied by the caller.
func (f ListFilter) Matches(s Summary) bool {
	if f.Symbol != "" && s.Job.Symbol != f.Symbol {
		return false
	}
	if f.Strategy != "" && s.Job.Strategy != f.Strategy {
		return false
	}
	if !f.From.IsZero() && s.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && s.CreatedAt.After(f.To) {
		return false
	}
	return true
}

// SummaryOf builds the stored header of a result
func SummaryOf(result *backtest.Result, createdAt time.Time) Summary {
	s := Summary{
		Job:       result.Job,
		CreatedAt: createdAt,
		Metrics:   result.Analysis.Metrics,
	}
	if result.Run != nil {
		s.ID = result.Run.ID
		s.Counters = result.Run.Counters
	}
	return s
}
