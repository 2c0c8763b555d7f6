package backtest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/strategy"
)

// BarProvider loads an ordered bar series for a symbol and inclusive range
type BarProvider interface {
	FetchHistory(ctx context.Context, symbol, interval string, start, end time.Time) ([]core.Bar, error)
}

// ResultSink persists a finished backtest
type ResultSink interface {
	Save(ctx context.Context, result *Result) error
}

// Backtester runs strategy backtests against historical data
type Backtester struct {
	provider   BarProvider
	strategies *strategy.Registry
	config     SimulatorConfig
	logger     *zap.Logger
	observer   Observer
	sinks      []ResultSink
}

// New creates a new Backtester. Strategies are resolved by name from the
// given registry.
func New(provider BarProvider, strategies *strategy.Registry, config SimulatorConfig, logger ...*zap.Logger) *Backtester {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Backtester{
		provider:   provider,
		strategies: strategies,
		config:     config,
		logger:     l,
		observer:   nopObserver{},
	}
}

// SetObserver installs an observer shared by every run. It must be safe
// for concurrent use when RunBatch is used.
func (b *Backtester) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	b.observer = o
}

// AddSink registers a destination that receives every successful result
func (b *Backtester) AddSink(s ResultSink) {
	b.sinks = append(b.sinks, s)
}

// Run executes one backtest job: load bars, generate signals, simulate,
// analyze and save.
func (b *Backtester) Run(ctx context.Context, job Job) (*Result, error) {
	start := time.Now()
	result, err := b.run(ctx, job)

	status := "ok"
	if err != nil {
		status = "error"
	}
	b.observer.ObserveRun(status, time.Since(start).Seconds())
	return result, err
}

func (b *Backtester) run(ctx context.Context, job Job) (*Result, error) {
	log := b.logger.With(
		zap.String("strategy", job.Strategy),
		zap.String("symbol", job.Symbol),
		zap.String("interval", job.Interval),
	)

	strat, err := b.strategies.Get(job.Strategy)
	if err != nil {
		return nil, err
	}

	bars, err := b.provider.FetchHistory(ctx, job.Symbol, job.Interval, job.Start, job.End)
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s: %w", job.Symbol, job.Interval, err)
	}
	if len(bars) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no %s bars for %s between %s and %s",
			job.Interval, job.Symbol, job.Start.Format(time.DateOnly), job.End.Format(time.DateOnly)))
	}
	log.Info("loaded bars", zap.Int("count", len(bars)))

	signals, err := strat.GenerateSignals(ctx, bars)
	if err != nil {
		return nil, core.WrapError(core.ErrStrategyFailed, fmt.Errorf("%s on %s: %w", job.Strategy, job.Symbol, err))
	}
	for i := range signals {
		signals[i].Strategy = strat.Name()
	}
	if len(signals) == 0 {
		log.Info("strategy produced no signals, portfolio stays flat")
	}

	sim := NewSimulator(b.config, log)
	sim.SetObserver(b.observer)
	run, err := sim.Run(ctx, bars, signals)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Job:      job,
		Signals:  signals,
		Run:      run,
		Analysis: Analyze(run.Records),
	}
	log.Info("backtest complete",
		zap.String("run_id", run.ID),
		zap.Int("signals", len(signals)),
		zap.Int("trades", result.Analysis.Metrics.NumTrades),
		zap.Int("rejected", run.Counters.Rejected),
		zap.Int("halts", run.Counters.Halts),
		zap.Float64("total_return", result.Analysis.Metrics.TotalReturn),
	)

	for _, s := range b.sinks {
		if err := s.Save(ctx, result); err != nil {
			return result, fmt.Errorf("save result for %s %s: %w", job.Strategy, job.Symbol, err)
		}
	}
	return result, nil
}
