package csvfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/storage/archive"
)

// Store keeps one bar file per symbol and interval in archive storage
type Store struct {
	storage archive.Storage
	logger  *zap.Logger
}

// New creates a Store over the given storage
func New(storage archive.Storage, logger ...*zap.Logger) *Store {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Store{storage: storage, logger: l}
}

func (s *Store) Name() string {
	return "csv"
}

var unsafeSymbol = strings.NewReplacer("/", "_", `\`, "_")

// Path returns the storage path of a bar file: {interval}/{symbol}.csv with
// path separators in the symbol replaced by underscores.
func Path(symbol, interval string) string {
	return interval + "/" + unsafeSymbol.Replace(symbol) + ".csv"
}

// FetchHistory loads stored bars within [start, end]. A zero start or end
// leaves that side open. A missing file is ErrNoData.
func (s *Store) FetchHistory(ctx context.Context, symbol, interval string, start, end time.Time) ([]core.Bar, error) {
	path := Path(symbol, interval)
	data, err := s.storage.Read(ctx, path)
	if errors.Is(err, archive.ErrNotFound) {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no bar file at %s", path))
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	bars, err := ParseBars(bytes.NewReader(data), symbol, interval)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	out := bars[:0]
	for _, b := range bars {
		if !start.IsZero() && b.Time.Before(start) {
			continue
		}
		if !end.IsZero() && b.Time.After(end) {
			continue
		}
		out = append(out, b)
	}
	s.logger.Debug("loaded bars",
		zap.String("path", path),
		zap.Int("rows", len(out)),
		zap.Int("file_rows", len(bars)),
	)
	return out, nil
}

// SaveHistory writes bars to the file for their symbol and interval,
// replacing what was stored. Empty input is a no-op.
func (s *Store) SaveHistory(ctx context.Context, bars []core.Bar) error {
	if len(bars) == 0 {
		s.logger.Warn("skipping save of empty bar series")
		return nil
	}
	path := Path(bars[0].Symbol, bars[0].Interval)

	var buf bytes.Buffer
	if err := WriteBars(&buf, bars); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := s.storage.Write(ctx, path, buf.Bytes()); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	s.logger.Info("saved bars", zap.String("path", path), zap.Int("rows", len(bars)))
	return nil
}

// LoadSignals reads a signal file from storage
func (s *Store) LoadSignals(ctx context.Context, path, symbol string) ([]core.Signal, error) {
	data, err := s.storage.Read(ctx, path)
	if errors.Is(err, archive.ErrNotFound) {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no signal file at %s", path))
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	signals, err := ParseSignals(bytes.NewReader(data), symbol)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return signals, nil
}

// SaveSignals writes a signal file to storage
func (s *Store) SaveSignals(ctx context.Context, path string, signals []core.Signal) error {
	var buf bytes.Buffer
	if err := WriteSignals(&buf, signals); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return s.storage.Write(ctx, path, buf.Bytes())
}
