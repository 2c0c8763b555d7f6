package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/execution"
	"github.com/newthinker/tradesim/internal/portfolio"
	"github.com/newthinker/tradesim/internal/risk"
)

// SimulatorConfig holds the parameters of one simulation
type SimulatorConfig struct {
	InitialCapital float64
	Execution      execution.Config
	// Limits enables the drawdown circuit breaker when non-nil.
	Limits *risk.Limits
}

// Validate checks the configuration before any state is created.
func (c SimulatorConfig) Validate() error {
	if !(c.InitialCapital > 0) || math.IsInf(c.InitialCapital, 0) {
		return core.WrapError(core.ErrInvalidInput,
			fmt.Errorf("initial capital must be positive, got %v", c.InitialCapital))
	}
	if c.Execution.Costs.Commission < 0 {
		return core.WrapError(core.ErrInvalidInput,
			fmt.Errorf("commission cannot be negative, got %v", c.Execution.Costs.Commission))
	}
	if s := c.Execution.Costs.Slippage; s < 0 || s >= 1 {
		return core.WrapError(core.ErrInvalidInput,
			fmt.Errorf("slippage must be in [0,1), got %v", s))
	}
	if p := c.Execution.CashPolicy; p != "" && !p.Valid() {
		return core.WrapError(core.ErrInvalidInput, fmt.Errorf("unknown cash policy %q", p))
	}
	if f, ok := c.Execution.Sizer.(risk.FixedFractionSizer); ok && (f.Fraction <= 0 || f.Fraction > 1) {
		return core.WrapError(core.ErrInvalidInput,
			fmt.Errorf("risk per trade must be in (0,1], got %v", f.Fraction))
	}
	return nil
}

// Simulator replays bars and signals through a virtual portfolio. A
// Simulator holds no run state and may be reused; each Run owns a fresh
// portfolio.
type Simulator struct {
	config   SimulatorConfig
	logger   *zap.Logger
	observer Observer
}

// NewSimulator creates a new Simulator
func NewSimulator(config SimulatorConfig, logger ...*zap.Logger) *Simulator {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Simulator{
		config:   config,
		logger:   l,
		observer: nopObserver{},
	}
}

// SetObserver installs an observer for fills, rejections and halts.
func (s *Simulator) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	s.observer = o
}

// Run folds the bar series in order. Input errors abort before any record
// is produced; per-bar problems are recorded as events and the run goes on.
func (s *Simulator) Run(ctx context.Context, bars []core.Bar, signals []core.Signal) (*Run, error) {
	if err := s.config.Validate(); err != nil {
		return nil, err
	}
	if err := core.ValidateBars(bars); err != nil {
		return nil, err
	}
	symbol := bars[0].Symbol
	index, err := core.IndexSignals(signals, symbol)
	if err != nil {
		return nil, err
	}

	r := &runner{
		sim:      s,
		symbol:   symbol,
		state:    portfolio.New(s.config.InitialCapital),
		executor: execution.New(s.config.Execution),
		log:      s.logger.With(zap.String("symbol", symbol)),
		run: &Run{
			ID:      uuid.NewString(),
			Symbol:  symbol,
			Records: make([]Record, 0, len(bars)),
		},
	}
	if s.config.Limits != nil {
		r.breaker = risk.NewCircuitBreaker(*s.config.Limits, r.log)
	}

	matched := 0
	for _, bar := range bars {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		sig, ok := index[bar.Time.UnixNano()]
		if ok {
			matched++
		}
		r.step(bar, sig, ok)
	}

	r.run.Counters.Bars = len(bars)
	r.run.Counters.Signals = len(signals)
	if unmatched := len(index) - matched; unmatched > 0 {
		r.run.Counters.UnmatchedSignals = unmatched
		for _, sig := range signals {
			if !hasBarAt(bars, sig.Time) {
				r.event(sig.Time, EventUnmatched, "no bar at signal timestamp")
			}
		}
		r.log.Warn("signals without a matching bar were ignored", zap.Int("count", unmatched))
	}

	return r.run, nil
}

// runner holds the mutable state of one Run.
type runner struct {
	sim      *Simulator
	symbol   string
	state    *portfolio.State
	executor *execution.Executor
	breaker  *risk.CircuitBreaker
	log      *zap.Logger
	run      *Run

	mark   float64 // last valid close
	day    string
	halted bool
}

func (r *runner) step(bar core.Bar, sig core.Signal, hasSignal bool) {
	rec := Record{Time: bar.Time}
	if hasSignal {
		rec.Signal = sig.Side
	}

	day := bar.Time.UTC().Format(time.DateOnly)
	if r.day != "" && day != r.day && r.breaker != nil {
		r.breaker.ResetDaily()
		if r.halted {
			r.log.Info("trading resumed on new day", zap.String("day", day))
		}
		r.halted = false
	}
	r.day = day

	if err := bar.Validate(); err != nil {
		r.run.Counters.ComputationErrors++
		r.sim.observer.ObserveComputationError(r.symbol)
		r.event(bar.Time, EventComputation, err.Error())
		r.log.Warn("skipping trade on bad bar",
			zap.Time("time", bar.Time),
			zap.Error(core.WrapError(core.ErrComputation, err)),
		)
	} else {
		r.mark = bar.Close
		r.checkBreaker(bar.Time)
		if hasSignal {
			rec.Applied, rec.RealizedPnL = r.apply(bar, sig)
		}
	}

	holdings := r.state.Position(r.symbol).Size * r.mark
	rec.Price = r.mark
	rec.Holdings = holdings
	rec.Cash = r.state.Cash
	rec.Total = r.state.Cash + holdings
	r.run.Records = append(r.run.Records, rec)
}

func (r *runner) equity() float64 {
	return r.state.Cash + r.state.Position(r.symbol).Size*r.mark
}

func (r *runner) checkBreaker(ts time.Time) {
	if r.breaker == nil {
		return
	}
	// marks keep moving while halted; only the latch is sticky
	verdict := r.breaker.Check(r.equity())
	r.state.DailyHighWaterMark, r.state.AllTimeHighWaterMark = r.breaker.HighWaterMarks()
	if r.halted || !verdict.Halt {
		return
	}
	r.halted = true
	r.run.Counters.Halts++
	r.sim.observer.ObserveHalt(r.symbol, string(verdict.Scope))
	r.event(ts, EventHalt, fmt.Sprintf("%s drawdown %.4f from %.2f", verdict.Scope, verdict.Drawdown, verdict.HighWaterMark))
}

// apply executes a BUY or SELL. It returns whether a fill happened and the
// realized P&L it booked.
func (r *runner) apply(bar core.Bar, sig core.Signal) (bool, float64) {
	if sig.Side == core.SideHold {
		return false, 0
	}
	if r.halted {
		r.run.Counters.Suppressed++
		r.event(bar.Time, EventSuppressed, fmt.Sprintf("%s suppressed while halted", sig.Side))
		return false, 0
	}

	var (
		fill execution.Fill
		err  error
	)
	switch sig.Side {
	case core.SideBuy:
		fill, err = r.executor.Buy(r.state, sig, bar.Close, r.equity())
	case core.SideSell:
		fill, err = r.executor.Sell(r.state, sig, bar.Close)
	}
	if err != nil {
		reason, _ := execution.ReasonOf(err)
		r.run.Counters.Rejected++
		r.sim.observer.ObserveRejection(r.symbol, string(reason))
		r.event(bar.Time, EventRejected, err.Error())
		r.log.Warn("signal rejected",
			zap.Time("time", bar.Time),
			zap.String("side", string(sig.Side)),
			zap.String("reason", string(reason)),
			zap.Float64("cash", r.state.Cash),
		)
		return false, 0
	}

	if fill.Side == core.SideBuy {
		r.run.Counters.Buys++
	} else {
		r.run.Counters.Sells++
	}
	r.run.Fills = append(r.run.Fills, fill)
	r.sim.observer.ObserveFill(r.symbol, fill.Side)
	r.log.Debug("fill",
		zap.Time("time", bar.Time),
		zap.String("side", string(fill.Side)),
		zap.Float64("quantity", fill.Quantity),
		zap.Float64("price", fill.Price),
		zap.Float64("cash", r.state.Cash),
	)
	return true, fill.RealizedPnL
}

func (r *runner) event(ts time.Time, kind EventKind, reason string) {
	r.run.Events = append(r.run.Events, Event{
		Time:   ts,
		Kind:   kind,
		Symbol: r.symbol,
		Reason: reason,
	})
}

func hasBarAt(bars []core.Bar, ts time.Time) bool {
	for _, b := range bars {
		if b.Time.Equal(ts) {
			return true
		}
	}
	return false
}
