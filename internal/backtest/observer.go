package backtest

import "github.com/newthinker/tradesim/internal/core"

// Observer receives counts of notable simulation outcomes. Implementations
// must be safe for concurrent use when runs execute in parallel.
type Observer interface {
	ObserveFill(symbol string, side core.Side)
	ObserveRejection(symbol, reason string)
	ObserveHalt(symbol, scope string)
	ObserveComputationError(symbol string)
	ObserveRun(status string, seconds float64)
}

type nopObserver struct{}

func (nopObserver) ObserveFill(string, core.Side)   {}
func (nopObserver) ObserveRejection(string, string) {}
func (nopObserver) ObserveHalt(string, string)      {}
func (nopObserver) ObserveComputationError(string)  {}
func (nopObserver) ObserveRun(string, float64)      {}
