package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/newthinker/tradesim/internal/backtest"
	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/storage/runstore"
)

// RunStore implements runstore.Store using PostgreSQL.
type RunStore struct {
	pool   *Pool
	logger *zap.Logger
	now    func() time.Time
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool, logger ...*zap.Logger) *RunStore {
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	return &RunStore{pool: pool, logger: l, now: time.Now}
}

// Compile-time interface check.
var _ runstore.Store = (*RunStore)(nil)

const runColumns = `
	run_id, strategy, symbol, interval, start_time, end_time, created_at,
	total_return, annualized_return, max_drawdown, annualized_volatility,
	sharpe_ratio, sortino_ratio, calmar_ratio, num_trades, counters`

// Save writes the run header, history and events in one transaction.
// Returns runstore.ErrDuplicate if the run ID exists.
func (s *RunStore) Save(ctx context.Context, result *backtest.Result) error {
	if result.Run == nil || result.Run.ID == "" {
		return fmt.Errorf("result has no run id")
	}
	sum := runstore.SummaryOf(result, s.now().UTC())
	m := sum.Metrics

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO backtest_runs (`+runColumns+`
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11,
			$12, $13, $14, $15, $16
		)`,
		sum.ID, sum.Job.Strategy, sum.Job.Symbol, sum.Job.Interval,
		nullTime(sum.Job.Start), nullTime(sum.Job.End), sum.CreatedAt,
		m.TotalReturn, m.AnnualizedReturn, m.MaxDrawdown, m.AnnualizedVolatility,
		m.Sharpe, m.Sortino, m.Calmar, m.NumTrades, sum.Counters,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return runstore.ErrDuplicate
		}
		return fmt.Errorf("insert run: %w", err)
	}

	records := result.Run.Records
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"backtest_history"},
		[]string{"run_id", "seq", "ts", "price", "signal", "applied", "holdings", "cash", "total", "realized_pnl"},
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			r := records[i]
			return []any{sum.ID, i, r.Time, r.Price, string(r.Signal), r.Applied, r.Holdings, r.Cash, r.Total, r.RealizedPnL}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy history: %w", err)
	}

	events := result.Run.Events
	if len(events) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"backtest_events"},
			[]string{"run_id", "seq", "ts", "kind", "symbol", "reason"},
			pgx.CopyFromSlice(len(events), func(i int) ([]any, error) {
				e := events[i]
				return []any{sum.ID, i, e.Time, string(e.Kind), e.Symbol, e.Reason}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copy events: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	s.logger.Debug("run saved",
		zap.String("run_id", sum.ID),
		zap.Int("records", len(records)),
		zap.Int("events", len(events)),
	)
	return nil
}

// Get retrieves a run header by ID.
func (s *RunStore) Get(ctx context.Context, id string) (*runstore.Summary, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM backtest_runs WHERE run_id = $1`, id)
	sum, err := scanSummary(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, runstore.ErrNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &sum, nil
}

// History retrieves the records of a run in bar order.
func (s *RunStore) History(ctx context.Context, id string) ([]backtest.Record, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM backtest_runs WHERE run_id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check run: %w", err)
	}
	if !exists {
		return nil, runstore.ErrNotFound
	}

	rows, err := s.pool.Query(ctx, `
		SELECT ts, price, signal, applied, holdings, cash, total, realized_pnl
		FROM backtest_history
		WHERE run_id = $1
		ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []backtest.Record
	for rows.Next() {
		var (
			r      backtest.Record
			signal string
		)
		if err := rows.Scan(&r.Time, &r.Price, &signal, &r.Applied, &r.Holdings, &r.Cash, &r.Total, &r.RealizedPnL); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		r.Time = r.Time.UTC()
		r.Signal = core.Side(signal)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return records, nil
}

// List retrieves run headers matching the filter, newest first.
func (s *RunStore) List(ctx context.Context, filter runstore.ListFilter) ([]runstore.Summary, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.Strategy != "" {
		add("strategy = $%d", filter.Strategy)
	}
	if filter.Symbol != "" {
		add("symbol = $%d", filter.Symbol)
	}
	if !filter.From.IsZero() {
		add("created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("created_at <= $%d", filter.To)
	}

	query := `SELECT ` + runColumns + ` FROM backtest_runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, run_id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	result := []runstore.Summary{}
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		result = append(result, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return result, nil
}

func scanSummary(row pgx.Row) (runstore.Summary, error) {
	var (
		sum        runstore.Summary
		start, end *time.Time
	)
	m := &sum.Metrics
	err := row.Scan(
		&sum.ID, &sum.Job.Strategy, &sum.Job.Symbol, &sum.Job.Interval,
		&start, &end, &sum.CreatedAt,
		&m.TotalReturn, &m.AnnualizedReturn, &m.MaxDrawdown, &m.AnnualizedVolatility,
		&m.Sharpe, &m.Sortino, &m.Calmar, &m.NumTrades, &sum.Counters,
	)
	if err != nil {
		return sum, err
	}
	if start != nil {
		sum.Job.Start = start.UTC()
	}
	if end != nil {
		sum.Job.End = end.UTC()
	}
	sum.CreatedAt = sum.CreatedAt.UTC()
	return sum, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
