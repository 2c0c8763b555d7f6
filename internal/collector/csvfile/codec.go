// Package csvfile reads and writes bar and signal series as CSV, and serves
// stored bar files as a collector.Source.
package csvfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/tradesim/internal/core"
)

// BarHeader is the column order written by WriteBars
var BarHeader = []string{"timestamp", "open", "high", "low", "close", "volume"}

// SignalHeader is the column order written by WriteSignals
var SignalHeader = []string{"timestamp", "symbol", "side", "price", "confidence", "stop_loss", "strategy", "reason"}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	time.DateTime,
	time.DateOnly,
}

// ParseTime accepts RFC3339, "2006-01-02 15:04:05" with or without an
// offset, and plain dates. Values without an offset are taken as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// FormatTime renders a timestamp the way WriteBars stores it
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// header maps lower-cased column names to their index. date and datetime
// are accepted for timestamp.
type header map[string]int

func readHeader(r *csv.Reader) (header, error) {
	cols, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("missing header row")
	}
	if err != nil {
		return nil, err
	}
	h := make(header, len(cols))
	for i, c := range cols {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(c, "\ufeff")))
		switch name {
		case "date", "datetime", "time":
			name = "timestamp"
		}
		h[name] = i
	}
	return h, nil
}

func (h header) require(names ...string) error {
	var missing []string
	for _, n := range names {
		if _, ok := h[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (h header) get(row []string, name string) string {
	i, ok := h[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// float parses a numeric cell; an empty cell is NaN.
func (h header) float(row []string, name string) (float64, error) {
	s := h.get(row, name)
	if s == "" {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", name, err)
	}
	return v, nil
}

// ParseBars decodes a bar file. Columns are matched by header name in any
// order; volume is optional. Empty price cells decode as NaN so the
// simulator can record them as computation errors.
func ParseBars(r io.Reader, symbol, interval string) ([]core.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	h, err := readHeader(cr)
	if err != nil {
		return nil, core.WrapError(core.ErrInvalidInput, err)
	}
	if err := h.require("timestamp", "open", "high", "low", "close"); err != nil {
		return nil, core.WrapError(core.ErrInvalidInput, err)
	}

	var bars []core.Bar
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, core.WrapError(core.ErrInvalidInput, err)
		}

		bar, err := parseBarRow(h, row)
		if err != nil {
			return nil, core.WrapError(core.ErrInvalidInput, fmt.Errorf("line %d: %w", line, err))
		}
		bar.Symbol = symbol
		bar.Interval = interval
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseBarRow(h header, row []string) (core.Bar, error) {
	ts, err := ParseTime(h.get(row, "timestamp"))
	if err != nil {
		return core.Bar{}, err
	}
	bar := core.Bar{Time: ts}
	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"open", &bar.Open},
		{"high", &bar.High},
		{"low", &bar.Low},
		{"close", &bar.Close},
	} {
		if *f.dst, err = h.float(row, f.name); err != nil {
			return core.Bar{}, err
		}
	}
	if _, ok := h["volume"]; ok {
		if bar.Volume, err = h.float(row, "volume"); err != nil {
			return core.Bar{}, err
		}
	}
	return bar, nil
}

// WriteBars encodes bars with BarHeader
func WriteBars(w io.Writer, bars []core.Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(BarHeader); err != nil {
		return err
	}
	for _, b := range bars {
		row := []string{
			FormatTime(b.Time),
			formatFloat(b.Open),
			formatFloat(b.High),
			formatFloat(b.Low),
			formatFloat(b.Close),
			formatFloat(b.Volume),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ParseSignals decodes a signal file. Only timestamp and side are required;
// a missing symbol column takes the given default.
func ParseSignals(r io.Reader, symbol string) ([]core.Signal, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	h, err := readHeader(cr)
	if err != nil {
		return nil, core.WrapError(core.ErrInvalidInput, err)
	}
	if err := h.require("timestamp", "side"); err != nil {
		return nil, core.WrapError(core.ErrInvalidInput, err)
	}

	var signals []core.Signal
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, core.WrapError(core.ErrInvalidInput, err)
		}

		sig, err := parseSignalRow(h, row, symbol)
		if err != nil {
			return nil, core.WrapError(core.ErrInvalidInput, fmt.Errorf("line %d: %w", line, err))
		}
		signals = append(signals, sig)
	}
	return signals, nil
}

func parseSignalRow(h header, row []string, symbol string) (core.Signal, error) {
	ts, err := ParseTime(h.get(row, "timestamp"))
	if err != nil {
		return core.Signal{}, err
	}
	sig := core.Signal{
		Time:     ts,
		Symbol:   h.get(row, "symbol"),
		Side:     core.Side(strings.ToUpper(h.get(row, "side"))),
		Strategy: h.get(row, "strategy"),
		Reason:   h.get(row, "reason"),
	}
	if sig.Symbol == "" {
		sig.Symbol = symbol
	}
	if !sig.Side.Valid() {
		return core.Signal{}, fmt.Errorf("unknown side %q", sig.Side)
	}
	if s := h.get(row, "price"); s != "" {
		if sig.Price, err = strconv.ParseFloat(s, 64); err != nil {
			return core.Signal{}, fmt.Errorf("column price: %w", err)
		}
	}
	if s := h.get(row, "confidence"); s != "" {
		c, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return core.Signal{}, fmt.Errorf("column confidence: %w", err)
		}
		sig.Confidence = core.Confidence(c)
	}
	if s := h.get(row, "stop_loss"); s != "" {
		if sig.StopLoss, err = strconv.ParseFloat(s, 64); err != nil {
			return core.Signal{}, fmt.Errorf("column stop_loss: %w", err)
		}
	}
	return sig, nil
}

// WriteSignals encodes signals with SignalHeader. Unset confidence and stop
// loss are written as empty cells.
func WriteSignals(w io.Writer, signals []core.Signal) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SignalHeader); err != nil {
		return err
	}
	for _, s := range signals {
		var confidence, stop string
		if s.Confidence != nil {
			confidence = formatFloat(*s.Confidence)
		}
		if s.HasStopLoss() {
			stop = formatFloat(s.StopLoss)
		}
		row := []string{
			FormatTime(s.Time),
			s.Symbol,
			string(s.Side),
			formatFloat(s.Price),
			confidence,
			stop,
			s.Strategy,
			s.Reason,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
