package report

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/newthinker/tradesim/internal/backtest"
	"github.com/newthinker/tradesim/internal/collector/csvfile"
	"github.com/newthinker/tradesim/internal/storage/archive"
)

// ArchiveSink saves backtest results to archive storage
type ArchiveSink struct {
	storage archive.Storage
	prefix  string
	logger  *zap.Logger
}

// NewArchiveSink creates a sink writing below prefix
func NewArchiveSink(storage archive.Storage, prefix string, logger ...*zap.Logger) *ArchiveSink {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &ArchiveSink{
		storage: storage,
		prefix:  strings.Trim(prefix, "/"),
		logger:  l,
	}
}

// BaseName returns {strategy}_{symbol}_{interval} with path separators in
// the symbol replaced.
func BaseName(job backtest.Job) string {
	symbol := strings.NewReplacer("/", "_", `\`, "_").Replace(job.Symbol)
	return fmt.Sprintf("%s_%s_%s", job.Strategy, symbol, job.Interval)
}

// Paths returns the history, metrics and signals paths for a job
func (s *ArchiveSink) Paths(job backtest.Job) (history, metrics, signals string) {
	base := path.Join(s.prefix, BaseName(job))
	return base + ".csv", base + "_metrics.json", base + "_signals.csv"
}

// Save writes the history CSV, the metrics JSON and the signals CSV. Each
// object is replaced atomically.
func (s *ArchiveSink) Save(ctx context.Context, res *backtest.Result) error {
	historyPath, metricsPath, signalsPath := s.Paths(res.Job)

	var buf bytes.Buffer
	if res.Run != nil {
		if err := WriteHistory(&buf, res.Run.Records); err != nil {
			return fmt.Errorf("encoding history: %w", err)
		}
	}
	if err := s.storage.Write(ctx, historyPath, buf.Bytes()); err != nil {
		return fmt.Errorf("writing %s: %w", historyPath, err)
	}

	buf.Reset()
	if err := WriteMetrics(&buf, res.Analysis.Metrics); err != nil {
		return fmt.Errorf("encoding metrics: %w", err)
	}
	if err := s.storage.Write(ctx, metricsPath, buf.Bytes()); err != nil {
		return fmt.Errorf("writing %s: %w", metricsPath, err)
	}

	buf.Reset()
	if err := csvfile.WriteSignals(&buf, res.Signals); err != nil {
		return fmt.Errorf("encoding signals: %w", err)
	}
	if err := s.storage.Write(ctx, signalsPath, buf.Bytes()); err != nil {
		return fmt.Errorf("writing %s: %w", signalsPath, err)
	}

	s.logger.Info("results saved",
		zap.String("history", historyPath),
		zap.String("metrics", metricsPath),
	)
	return nil
}
