// Package paper executes a stream of signals against a virtual portfolio at
// each signal's reference price.
package paper

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/execution"
	"github.com/newthinker/tradesim/internal/portfolio"
	"github.com/newthinker/tradesim/internal/risk"
)

// Config holds the paper trading parameters.
type Config struct {
	InitialCapital float64
	Costs          execution.Costs
	// RiskPerTrade is the fraction of cash spent on each buy.
	RiskPerTrade float64
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if !(c.InitialCapital > 0) || math.IsInf(c.InitialCapital, 0) {
		return core.WrapError(core.ErrInvalidInput,
			fmt.Errorf("initial capital must be positive, got %v", c.InitialCapital))
	}
	if c.Costs.Commission < 0 {
		return core.WrapError(core.ErrInvalidInput,
			fmt.Errorf("commission cannot be negative, got %v", c.Costs.Commission))
	}
	if c.Costs.Slippage < 0 || c.Costs.Slippage >= 1 {
		return core.WrapError(core.ErrInvalidInput,
			fmt.Errorf("slippage must be in [0,1), got %v", c.Costs.Slippage))
	}
	if c.RiskPerTrade <= 0 || c.RiskPerTrade > 1 {
		return core.WrapError(core.ErrInvalidInput,
			fmt.Errorf("risk per trade must be in (0,1], got %v", c.RiskPerTrade))
	}
	return nil
}

// Trade is one executed paper fill.
type Trade struct {
	Time        time.Time
	Fill        execution.Fill
	CashAfter   float64
	RealizedPnL float64
}

// Status is a snapshot of the paper portfolio. Positions are valued at their
// average entry price.
type Status struct {
	Cash      float64
	Positions []portfolio.Position
	Equity    float64
}

// Trader is a multi-symbol paper portfolio. Buys that would overdraw cash
// are rejected. A Trader is not safe for concurrent use.
type Trader struct {
	executor *execution.Executor
	state    *portfolio.State
	trades   []Trade
	skipped  int
	logger   *zap.Logger
}

// New creates a Trader with a fresh portfolio.
func New(config Config, logger ...*zap.Logger) (*Trader, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Trader{
		executor: execution.New(execution.Config{
			Costs:      config.Costs,
			Sizer:      risk.FixedFractionSizer{Fraction: config.RiskPerTrade},
			CashPolicy: execution.CashPolicyReject,
		}),
		state:  portfolio.New(config.InitialCapital),
		logger: l,
	}, nil
}

// Process executes one signal at its reference price. HOLD signals and
// rejected trades return ok false and leave the portfolio untouched.
func (t *Trader) Process(sig core.Signal) (trade Trade, ok bool, err error) {
	if err := sig.Validate(); err != nil {
		return Trade{}, false, err
	}

	var fill execution.Fill
	switch sig.Side {
	case core.SideHold:
		return Trade{}, false, nil
	case core.SideBuy:
		fill, err = t.executor.Buy(t.state, sig, sig.Price, t.state.Cash)
	case core.SideSell:
		fill, err = t.executor.Sell(t.state, sig, sig.Price)
	}
	if err != nil {
		reason, _ := execution.ReasonOf(err)
		t.skipped++
		t.logger.Warn("paper trade skipped",
			zap.String("symbol", sig.Symbol),
			zap.String("side", string(sig.Side)),
			zap.String("reason", string(reason)),
		)
		return Trade{}, false, nil
	}

	trade = Trade{
		Time:        sig.Time,
		Fill:        fill,
		CashAfter:   t.state.Cash,
		RealizedPnL: fill.RealizedPnL,
	}
	t.trades = append(t.trades, trade)
	t.logger.Info("paper trade executed",
		zap.Time("timestamp", sig.Time),
		zap.String("symbol", fill.Symbol),
		zap.String("action", string(fill.Side)),
		zap.Float64("quantity", fill.Quantity),
		zap.Float64("price", fill.Price),
		zap.Float64("cash_change", fill.CashDelta),
		zap.Float64("current_cash", t.state.Cash),
	)
	return trade, true, nil
}

// Run processes signals in order. It stops at the first malformed signal or
// when ctx is done.
func (t *Trader) Run(ctx context.Context, signals []core.Signal) error {
	for i, sig := range signals {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if _, _, err := t.Process(sig); err != nil {
			return fmt.Errorf("signal %d: %w", i, err)
		}
	}
	return nil
}

// Trades returns the executed trades in order.
func (t *Trader) Trades() []Trade {
	return append([]Trade(nil), t.trades...)
}

// Skipped returns the number of rejected signals.
func (t *Trader) Skipped() int {
	return t.skipped
}

// Status returns the current cash, positions sorted by symbol and equity.
func (t *Trader) Status() Status {
	s := Status{Cash: t.state.Cash, Equity: t.state.Cash}
	for _, p := range t.state.Positions {
		s.Positions = append(s.Positions, *p)
		s.Equity += p.Size * p.AverageEntryPrice
	}
	sort.Slice(s.Positions, func(i, j int) bool {
		return s.Positions[i].Symbol < s.Positions[j].Symbol
	})
	return s
}
