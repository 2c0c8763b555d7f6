// Package app assembles data sources, strategies, storage and metrics from
// configuration and runs backtests with them.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/tradesim/internal/alert"
	"github.com/newthinker/tradesim/internal/backtest"
	"github.com/newthinker/tradesim/internal/collector"
	"github.com/newthinker/tradesim/internal/collector/binance"
	"github.com/newthinker/tradesim/internal/collector/csvfile"
	"github.com/newthinker/tradesim/internal/collector/yahoo"
	"github.com/newthinker/tradesim/internal/config"
	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/metrics"
	"github.com/newthinker/tradesim/internal/notifier"
	"github.com/newthinker/tradesim/internal/report"
	"github.com/newthinker/tradesim/internal/storage/archive"
	"github.com/newthinker/tradesim/internal/storage/postgres"
	"github.com/newthinker/tradesim/internal/storage/runstore"
	"github.com/newthinker/tradesim/internal/strategy"
	"github.com/newthinker/tradesim/internal/strategy/bands"
	"github.com/newthinker/tradesim/internal/strategy/ma_crossover"
	"github.com/newthinker/tradesim/internal/strategy/rsi"
)

// memoryRuns bounds the in-process run store used without Postgres.
const memoryRuns = 256

// Builtin returns fresh instances of every bundled strategy with default
// parameters.
func Builtin() []strategy.Strategy {
	return []strategy.Strategy{
		ma_crossover.NewEMA(20, 50),
		ma_crossover.New(20, 50),
		rsi.New(14, 30, 70),
		bands.NewBollinger(20, 2),
		bands.NewMeanReversion(20, 2),
	}
}

// App is the main application orchestrator
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	sources    *collector.Registry
	strategies *strategy.Registry
	bars       *csvfile.Store
	output     archive.Storage
	metrics    *metrics.Registry
	runs       runstore.Store
	pool       *postgres.Pool
	notifiers  *notifier.Registry
	rules      *alert.Evaluator
}

// New validates cfg and builds every component it names. The Postgres run
// store is connected and migrated when output.postgres.dsn is set.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dataStorage, err := OpenStorage(cfg.Data.Storage)
	if err != nil {
		return nil, fmt.Errorf("opening data storage: %w", err)
	}
	output, err := OpenStorage(cfg.Output.Storage)
	if err != nil {
		return nil, fmt.Errorf("opening output storage: %w", err)
	}

	strategies, err := strategy.NewRegistry(Builtin()...)
	if err != nil {
		return nil, err
	}
	params := make(map[string]strategy.Config, len(cfg.Strategies))
	for name, sc := range cfg.Strategies {
		params[name] = strategy.Config{Enabled: sc.Enabled, Params: sc.Params}
	}
	if err := strategies.Configure(params); err != nil {
		return nil, err
	}

	bars := csvfile.New(dataStorage, logger)
	a := &App{
		cfg:        cfg,
		logger:     logger,
		sources:    collector.NewRegistry(bars, yahoo.New(), binance.New()),
		strategies: strategies,
		bars:       bars,
		output:     output,
	}

	if cfg.Metrics.Enabled {
		a.metrics = metrics.NewRegistry(false)
	}

	if a.notifiers, err = NewNotifiers(cfg.Alerts); err != nil {
		return nil, err
	}
	if a.rules, err = alert.NewEvaluator(cfg.AlertRules); err != nil {
		return nil, err
	}

	if dsn := cfg.Output.Postgres.DSN; dsn != "" {
		pool, err := postgres.NewPool(ctx, dsn, cfg.Output.Postgres.MaxConns)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		a.pool = pool
		a.runs = postgres.NewRunStore(pool, logger)
		logger.Info("postgres run store enabled")
	} else {
		a.runs = runstore.NewMemoryStore(memoryRuns)
	}

	return a, nil
}

// OpenStorage builds the archive backend a storage section names.
func OpenStorage(sc config.StorageConfig) (archive.Storage, error) {
	switch sc.Type {
	case "localfs":
		return archive.NewLocalFS(sc.Path)
	case "s3":
		return archive.NewS3(archive.S3Config{
			Bucket:    sc.S3.Bucket,
			Endpoint:  sc.S3.Endpoint,
			Region:    sc.S3.Region,
			AccessKey: sc.S3.AccessKey,
			SecretKey: sc.S3.SecretKey,
			Prefix:    sc.S3.Prefix,
		})
	default:
		return nil, fmt.Errorf("unknown storage type %q", sc.Type)
	}
}

// Close releases the database pool, if any.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

func (a *App) Config() *config.Config         { return a.cfg }
func (a *App) Sources() *collector.Registry   { return a.sources }
func (a *App) Strategies() *strategy.Registry { return a.strategies }
func (a *App) Bars() *csvfile.Store           { return a.bars }
func (a *App) Runs() runstore.Store           { return a.runs }
func (a *App) Metrics() *metrics.Registry     { return a.metrics }
func (a *App) Notifiers() *notifier.Registry  { return a.notifiers }

// Backtester wires a backtester reading bars from the named source. Results
// go to the output archive and the run store.
func (a *App) Backtester(source string) (*backtest.Backtester, error) {
	src, err := a.sources.Get(source)
	if err != nil {
		return nil, err
	}

	bt := backtest.New(src, a.strategies, a.cfg.Backtest(a.logger), a.logger)
	bt.AddSink(report.NewArchiveSink(a.output, a.cfg.Output.Prefix, a.logger))
	bt.AddSink(a.runs)
	if a.metrics != nil {
		bt.SetObserver(a.metrics)
	}
	return bt, nil
}

// RunBacktests runs jobs in parallel against the named source, sends alerts
// for results that trip a rule and exports metrics once all jobs are done. Job failures are reported per job; the
// error is returned only when the batch could not start.
func (a *App) RunBacktests(ctx context.Context, source string, jobs []backtest.Job) ([]backtest.BatchResult, error) {
	bt, err := a.Backtester(source)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	results := bt.RunBatch(ctx, jobs, a.cfg.Runner.Parallelism)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
		if a.metrics != nil && r.Result != nil {
			a.metrics.RecordSignals(r.Job.Strategy, r.Result.Signals)
		}
	}
	a.logger.Info("batch complete",
		zap.Int("jobs", len(jobs)),
		zap.Int("failed", failed),
		zap.Duration("elapsed", time.Since(start)),
	)

	if alerts := a.rules.CheckAll(results); len(alerts) > 0 {
		a.logger.Warn("alert rules triggered", zap.Int("alerts", len(alerts)))
		Notify(ctx, a.notifiers, alerts, a.logger)
	}

	if err := a.ExportMetrics(ctx); err != nil {
		a.logger.Warn("metrics export failed", zap.Error(err))
	}
	return results, nil
}

// ExportMetrics writes the textfile and pushes to the gateway when
// configured.
func (a *App) ExportMetrics(ctx context.Context) error {
	if a.metrics == nil {
		return nil
	}
	if path := a.cfg.Metrics.Textfile; path != "" {
		if err := a.metrics.WriteTextfile(path); err != nil {
			return err
		}
	}
	if url := a.cfg.Metrics.PushURL; url != "" {
		if err := a.metrics.Push(ctx, url, a.cfg.Metrics.Job); err != nil {
			return err
		}
	}
	return nil
}

// Fetch downloads bars from a remote source, cleans them and stores them
// where the csv source reads them.
func (a *App) Fetch(ctx context.Context, source, symbol, interval string, start, end time.Time) (collector.Quality, error) {
	src, err := a.sources.Get(source)
	if err != nil {
		return collector.Quality{}, err
	}

	raw, err := src.FetchHistory(ctx, symbol, interval, start, end)
	if err != nil {
		return collector.Quality{}, fmt.Errorf("fetching %s from %s: %w", symbol, source, err)
	}

	bars, quality := collector.Clean(raw, collector.DefaultCleanOptions())
	a.logger.Info("cleaned bars",
		zap.String("source", source),
		zap.String("symbol", symbol),
		zap.Int("initial", quality.InitialRows),
		zap.Int("duplicates", quality.Duplicates),
		zap.Int("filled", quality.Filled),
		zap.Int("invalid", quality.InvalidRows),
		zap.Int("outliers", quality.OutliersCorrected),
		zap.Int("final", quality.FinalRows),
	)

	if len(bars) == 0 {
		return quality, core.WrapError(core.ErrNoData,
			fmt.Errorf("no usable %s bars for %s from %s", interval, symbol, source))
	}
	for i := range bars {
		bars[i].Symbol = symbol
		bars[i].Interval = interval
	}
	if err := a.bars.SaveHistory(ctx, bars); err != nil {
		return quality, err
	}
	return quality, nil
}
