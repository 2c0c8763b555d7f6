package paper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/execution"
)

var t0 = time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)

func sig(day int, symbol string, side core.Side, price float64) core.Signal {
	return core.Signal{Time: t0.AddDate(0, 0, day), Symbol: symbol, Side: side, Price: price, Strategy: "test_strategy"}
}

func newTrader(t *testing.T) *Trader {
	t.Helper()
	tr, err := New(Config{
		InitialCapital: 100000,
		Costs:          execution.Costs{Commission: 1, Slippage: 0.001},
		RiskPerTrade:   0.05,
	})
	require.NoError(t, err)
	return tr
}

func TestTrader_MultiSymbolRun(t *testing.T) {
	tr := newTrader(t)

	signals := []core.Signal{
		sig(0, "AAPL", core.SideBuy, 150),
		sig(1, "MSFT", core.SideBuy, 300),
		sig(2, "AAPL", core.SideSell, 155),
		sig(3, "GOOG", core.SideBuy, 2800),
		sig(4, "MSFT", core.SideSell, 295),
	}
	require.NoError(t, tr.Run(context.Background(), signals))

	trades := tr.Trades()
	require.Len(t, trades, 5)
	assert.Equal(t, 0, tr.Skipped())

	// AAPL: 5% of 100000 at 150.15
	aapl := trades[0].Fill
	assert.InDelta(t, 5000/150.15, aapl.Quantity, 1e-9)
	assert.InDelta(t, 150.15, aapl.Price, 1e-9)
	assert.InDelta(t, 94999.0, trades[0].CashAfter, 1e-9)

	sellPrice := 155 * (1 - 0.001)
	assert.InDelta(t, aapl.Quantity*sellPrice-5000-1, trades[2].RealizedPnL, 1e-9)

	status := tr.Status()
	require.Len(t, status.Positions, 1)
	assert.Equal(t, "GOOG", status.Positions[0].Symbol)
	assert.InDelta(t, 2800*1.001, status.Positions[0].AverageEntryPrice, 1e-9)
	assert.InDelta(t, status.Cash+status.Positions[0].Size*status.Positions[0].AverageEntryPrice, status.Equity, 1e-9)
}

func TestTrader_SkipsUnfundedAndUnheld(t *testing.T) {
	tr, err := New(Config{InitialCapital: 100, Costs: execution.Costs{Commission: 1}, RiskPerTrade: 1})
	require.NoError(t, err)

	// all cash leaves nothing for the commission
	_, ok, err := tr.Process(sig(0, "AAPL", core.SideBuy, 10))
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = tr.Process(sig(1, "AAPL", core.SideSell, 10))
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = tr.Process(sig(2, "AAPL", core.SideHold, 10))
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 2, tr.Skipped())
	assert.Equal(t, 100.0, tr.Status().Cash)
	assert.Empty(t, tr.Status().Positions)
}

func TestTrader_RunStopsOnInvalidSignal(t *testing.T) {
	tr := newTrader(t)
	err := tr.Run(context.Background(), []core.Signal{
		sig(0, "AAPL", core.SideBuy, 150),
		sig(1, "AAPL", "SHORT", 150),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidInput))
	assert.Contains(t, err.Error(), "signal 1")
	assert.Len(t, tr.Trades(), 1)
}

func TestTrader_RunCancelled(t *testing.T) {
	tr := newTrader(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, tr.Run(ctx, []core.Signal{sig(0, "AAPL", core.SideBuy, 150)}), context.Canceled)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero capital", Config{RiskPerTrade: 0.1}},
		{"negative commission", Config{InitialCapital: 1, RiskPerTrade: 0.1, Costs: execution.Costs{Commission: -1}}},
		{"slippage one", Config{InitialCapital: 1, RiskPerTrade: 0.1, Costs: execution.Costs{Slippage: 1}}},
		{"risk above one", Config{InitialCapital: 1, RiskPerTrade: 1.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.True(t, errors.Is(err, core.ErrInvalidInput))
		})
	}
}
