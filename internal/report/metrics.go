package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/newthinker/tradesim/internal/backtest"
	"github.com/newthinker/tradesim/internal/core"
)

// WriteMetrics encodes the metrics as a flat JSON object of name to number.
// Non-finite values are written as null.
func WriteMetrics(w io.Writer, m backtest.Metrics) error {
	out := make(map[string]*float64, 8)
	for k, v := range m.AsMap() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out[k] = nil
			continue
		}
		v := v
		out[k] = &v
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// ReadMetrics decodes a metrics object written by WriteMetrics
func ReadMetrics(r io.Reader) (backtest.Metrics, error) {
	var m backtest.Metrics
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return m, core.WrapError(core.ErrInvalidInput, fmt.Errorf("decoding metrics: %w", err))
	}
	return m, nil
}
