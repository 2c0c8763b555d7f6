package strategy

import (
	"context"
	"fmt"

	"github.com/newthinker/tradesim/internal/core"
)

// Config holds strategy configuration
type Config struct {
	Enabled bool
	Params  map[string]any
}

// Strategy turns a bar series into trading signals. Strategies are consumed
// only through the signals they emit.
type Strategy interface {
	Name() string
	Description() string
	Init(cfg Config) error
	// GenerateSignals returns at most one signal per bar, in bar order.
	GenerateSignals(ctx context.Context, bars []core.Bar) ([]core.Signal, error)
}

// IntParam reads an integer parameter, accepting the numeric types produced
// by YAML and JSON decoding.
func IntParam(params map[string]any, key string, def int) (int, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("parameter %q must be an integer, got %v", key, n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("parameter %q must be an integer, got %T", key, v)
	}
}

// FloatParam reads a numeric parameter.
func FloatParam(params map[string]any, key string, def float64) (float64, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("parameter %q must be a number, got %T", key, v)
	}
}

// Closes extracts closing prices.
func Closes(bars []core.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// NewSignal builds a signal priced at the bar close.
func NewSignal(s Strategy, bar core.Bar, side core.Side, reason string) core.Signal {
	return core.Signal{
		Time:     bar.Time,
		Symbol:   bar.Symbol,
		Side:     side,
		Price:    bar.Close,
		Strategy: s.Name(),
		Reason:   reason,
	}
}
