package backtest

import (
	"time"

	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/execution"
)

// Record is one row of portfolio history, written once per bar
type Record struct {
	Time        time.Time
	Price       float64   // Close used to mark holdings
	Signal      core.Side // Empty when no signal matched the bar
	Applied     bool      // True if the signal produced a fill
	Holdings    float64
	Cash        float64
	Total       float64
	RealizedPnL float64 // Realized P&L booked on this bar
}

// EventKind classifies a recoverable condition met during a run
type EventKind string

const (
	EventRejected    EventKind = "trade_rejected"
	EventHalt        EventKind = "circuit_halt"
	EventSuppressed  EventKind = "signal_suppressed"
	EventComputation EventKind = "computation_error"
	EventUnmatched   EventKind = "signal_unmatched"
)

// Event records a rejected, suppressed or skipped action
type Event struct {
	Time   time.Time
	Kind   EventKind
	Symbol string
	Reason string
}

// Counters tallies what happened during a run
type Counters struct {
	Bars              int
	Signals           int
	Buys              int
	Sells             int
	Rejected          int
	Halts             int
	Suppressed        int
	ComputationErrors int
	UnmatchedSignals  int
}

// Run is the output of a single simulation
type Run struct {
	ID       string
	Symbol   string
	Records  []Record
	Fills    []execution.Fill
	Events   []Event
	Counters Counters
}

// Job names one independent backtest
type Job struct {
	Strategy string
	Symbol   string
	Interval string
	Start    time.Time
	End      time.Time
}

// Result holds the complete backtest output
type Result struct {
	Job      Job
	Signals  []core.Signal
	Run      *Run
	Analysis Analysis
}
