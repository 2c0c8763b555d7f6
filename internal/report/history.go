// Package report encodes backtest output: the per-bar history CSV, the
// metrics JSON object and a human-readable summary.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/newthinker/tradesim/internal/backtest"
	"github.com/newthinker/tradesim/internal/collector/csvfile"
	"github.com/newthinker/tradesim/internal/core"
)

// HistoryHeader is the column order of a history file
var HistoryHeader = []string{"timestamp", "price", "signal", "applied", "holdings", "cash", "total", "realized_pnl"}

// money renders v as the shortest decimal that reads back to the same
// float64, never in exponent form.
func money(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return decimal.NewFromFloat(v).String()
}

// WriteHistory encodes one row per record
func WriteHistory(w io.Writer, records []backtest.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(HistoryHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			csvfile.FormatTime(r.Time),
			money(r.Price),
			string(r.Signal),
			strconv.FormatBool(r.Applied),
			money(r.Holdings),
			money(r.Cash),
			money(r.Total),
			money(r.RealizedPnL),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadHistory decodes a history file written by WriteHistory. The
// realized_pnl column is optional.
func ReadHistory(r io.Reader) ([]backtest.Record, error) {
	cr := csv.NewReader(r)
	cols, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, core.WrapError(core.ErrInvalidInput, fmt.Errorf("missing header row"))
	}
	if err != nil {
		return nil, core.WrapError(core.ErrInvalidInput, err)
	}
	idx := make(map[string]int, len(cols))
	for i, c := range cols {
		idx[strings.ToLower(strings.TrimSpace(c))] = i
	}
	for _, name := range HistoryHeader[:7] {
		if _, ok := idx[name]; !ok {
			return nil, core.WrapError(core.ErrInvalidInput, fmt.Errorf("missing column %s", name))
		}
	}

	var records []backtest.Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, core.WrapError(core.ErrInvalidInput, err)
		}
		rec, err := parseRecord(idx, row)
		if err != nil {
			return nil, core.WrapError(core.ErrInvalidInput, fmt.Errorf("line %d: %w", line, err))
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseRecord(idx map[string]int, row []string) (backtest.Record, error) {
	cell := func(name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	ts, err := csvfile.ParseTime(cell("timestamp"))
	if err != nil {
		return backtest.Record{}, err
	}
	rec := backtest.Record{
		Time:   ts,
		Signal: core.Side(strings.ToUpper(cell("signal"))),
	}
	if rec.Signal != "" && !rec.Signal.Valid() {
		return backtest.Record{}, fmt.Errorf("unknown signal %q", rec.Signal)
	}
	if s := cell("applied"); s != "" {
		if rec.Applied, err = strconv.ParseBool(s); err != nil {
			return backtest.Record{}, fmt.Errorf("column applied: %w", err)
		}
	}

	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"price", &rec.Price},
		{"holdings", &rec.Holdings},
		{"cash", &rec.Cash},
		{"total", &rec.Total},
		{"realized_pnl", &rec.RealizedPnL},
	} {
		s := cell(f.name)
		if s == "" {
			continue
		}
		if *f.dst, err = strconv.ParseFloat(s, 64); err != nil {
			return backtest.Record{}, fmt.Errorf("column %s: %w", f.name, err)
		}
	}
	return rec, nil
}

// WriteSeries encodes the derived equity, drawdown and buy-and-hold series
// side by side.
func WriteSeries(w io.Writer, a backtest.Analysis) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "equity", "drawdown", "buy_and_hold", "return"}); err != nil {
		return err
	}
	for i, p := range a.Equity {
		row := []string{
			csvfile.FormatTime(p.Time),
			money(p.Value),
			strconv.FormatFloat(a.Drawdown[i].Value, 'f', -1, 64),
			money(a.BuyAndHold[i].Value),
			strconv.FormatFloat(a.Returns[i], 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
