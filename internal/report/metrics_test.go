package report

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"

	"github.com/newthinker/tradesim/internal/backtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RoundTrip(t *testing.T) {
	m := backtest.Metrics{
		TotalReturn:          0.2,
		AnnualizedReturn:     0.31,
		MaxDrawdown:          -0.1,
		AnnualizedVolatility: 0.25,
		Sharpe:               1.24,
		Sortino:              2.1,
		Calmar:               3.1,
		NumTrades:            4,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteMetrics(&buf, m))

	var raw map[string]float64
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	assert.Len(t, raw, 8)
	assert.Equal(t, 4.0, raw["num_trades"])
	assert.Equal(t, -0.1, raw["max_drawdown"])

	got, err := ReadMetrics(&buf)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestWriteMetrics_NonFinite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMetrics(&buf, backtest.Metrics{Sharpe: math.Inf(1)}))
	assert.Contains(t, buf.String(), `"sharpe_ratio": null`)
}

func TestReadMetrics_Invalid(t *testing.T) {
	_, err := ReadMetrics(bytes.NewBufferString("not json"))
	assert.Error(t, err)
}
