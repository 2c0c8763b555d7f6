package rsi

import (
	"context"
	"testing"
	"time"

	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bars(prices ...float64) []core.Bar {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]core.Bar, len(prices))
	for i, p := range prices {
		out[i] = core.Bar{Symbol: "BTC/USDT", Time: base.AddDate(0, 0, i), Close: p}
	}
	return out
}

func TestRSI_ImplementsStrategy(t *testing.T) {
	var _ strategy.Strategy = (*RSI)(nil)
}

func TestRSI_Crossings(t *testing.T) {
	// RSI(2): 0, 50, 75, 87.5, 21.875 from index 2
	s := New(2, 30, 70)
	in := bars(10, 9, 8, 9, 10, 11, 8)

	signals, err := s.GenerateSignals(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, signals, 2)

	assert.Equal(t, core.SideBuy, signals[0].Side)
	assert.Equal(t, in[3].Time, signals[0].Time)
	assert.Equal(t, core.SideSell, signals[1].Side)
	assert.Equal(t, in[6].Time, signals[1].Time)
	assert.Equal(t, "BTC/USDT", signals[1].Symbol)
	assert.Equal(t, "rsi_strategy", signals[1].Strategy)
}

func TestRSI_Init(t *testing.T) {
	s := New(14, 30, 70)
	require.NoError(t, s.Init(strategy.Config{Params: map[string]any{"rsi_period": 7}}))
	assert.Equal(t, 7, s.period)

	assert.Error(t, s.Init(strategy.Config{Params: map[string]any{"oversold_threshold": 80}}))
	assert.Error(t, s.Init(strategy.Config{Params: map[string]any{"rsi_period": 0}}))
}
