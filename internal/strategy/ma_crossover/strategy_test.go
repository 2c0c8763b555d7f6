package ma_crossover

import (
	"context"
	"testing"
	"time"

	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMACrossover_ImplementsStrategy(t *testing.T) {
	var _ strategy.Strategy = (*MACrossover)(nil)
}

func TestMACrossover_Name(t *testing.T) {
	if s := New(5, 10); s.Name() != "ma_crossover" {
		t.Errorf("expected 'ma_crossover', got '%s'", s.Name())
	}
	if s := NewEMA(20, 50); s.Name() != "ema_crossover" {
		t.Errorf("expected 'ema_crossover', got '%s'", s.Name())
	}
}

func makeBars(prices []float64) []core.Bar {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]core.Bar, len(prices))
	for i, p := range prices {
		bars[i] = core.Bar{
			Symbol: "TEST",
			Time:   base.AddDate(0, 0, i),
			Open:   p,
			High:   p,
			Low:    p,
			Close:  p,
		}
	}
	return bars
}

func TestMACrossover_GoldenAndDeathCross(t *testing.T) {
	s := New(2, 4)

	// i=4: fast (85+80)/2 = 82.5 < slow (95+90+85+80)/4 = 87.5
	// i=5: fast (80+120)/2 = 100 > slow (90+85+80+120)/4 = 93.75 -> BUY
	// i=7: fast (60+50)/2 = 55 < slow (80+120+60+50)/4 = 77.5 -> SELL
	bars := makeBars([]float64{100, 95, 90, 85, 80, 120, 60, 50})

	signals, err := s.GenerateSignals(context.Background(), bars)
	require.NoError(t, err)
	require.Len(t, signals, 2)

	assert.Equal(t, core.SideBuy, signals[0].Side)
	assert.Equal(t, bars[5].Time, signals[0].Time)
	assert.Equal(t, 120.0, signals[0].Price)
	assert.Equal(t, "ma_crossover", signals[0].Strategy)
	assert.Contains(t, signals[0].Reason, "Golden Cross")
	require.NotNil(t, signals[0].Confidence)
	assert.InDelta(t, 0.9, *signals[0].Confidence, 1e-9)

	assert.Equal(t, core.SideSell, signals[1].Side)
	assert.Equal(t, bars[7].Time, signals[1].Time)
}

func TestMACrossover_WarmupCountsAsBelow(t *testing.T) {
	// The slow EMA only exists from i=2; a rising series is "above" from
	// then on and produces one BUY, never a SELL.
	s := NewEMA(2, 3)
	bars := makeBars([]float64{10, 11, 12, 13, 14})

	signals, err := s.GenerateSignals(context.Background(), bars)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, core.SideBuy, signals[0].Side)
	assert.Equal(t, bars[2].Time, signals[0].Time)
}

func TestMACrossover_NotEnoughData(t *testing.T) {
	s := New(50, 200)

	prices := make([]float64, 100)
	for i := range prices {
		prices[i] = 100
	}

	signals, err := s.GenerateSignals(context.Background(), makeBars(prices))
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestMACrossover_Init(t *testing.T) {
	s := NewEMA(20, 50)

	err := s.Init(strategy.Config{Params: map[string]any{"short_window": 5, "long_window": 15.0}})
	require.NoError(t, err)
	assert.Equal(t, 5, s.fastPeriod)
	assert.Equal(t, 15, s.slowPeriod)

	err = s.Init(strategy.Config{Params: map[string]any{"fast_period": 30, "slow_period": 10}})
	assert.Error(t, err)

	err = s.Init(strategy.Config{Params: map[string]any{"fast_period": "fast"}})
	assert.Error(t, err)
}
