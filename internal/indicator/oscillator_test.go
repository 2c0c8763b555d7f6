package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRSI_Bounds(t *testing.T) {
	prices := []float64{44, 44.3, 44.1, 44.5, 43.9, 44.6, 45.1, 45.4, 45.2, 45.8, 46.1, 45.9, 46.3, 46.5, 46.2, 46.6}
	rsi := RSI(prices, 14)

	assert.Len(t, rsi, len(prices))
	for i := 0; i < 14; i++ {
		assert.True(t, math.IsNaN(rsi[i]), "rsi[%d] should be NaN", i)
	}
	for i := 14; i < len(prices); i++ {
		assert.GreaterOrEqual(t, rsi[i], 0.0)
		assert.LessOrEqual(t, rsi[i], 100.0)
	}
}

func TestRSI_OnlyGains(t *testing.T) {
	rsi := RSI([]float64{1, 2, 3, 4, 5}, 3)
	assert.Equal(t, 100.0, rsi[3])
	assert.Equal(t, 100.0, rsi[4])
}

func TestRSI_Flat(t *testing.T) {
	rsi := RSI([]float64{5, 5, 5, 5}, 2)
	assert.Equal(t, 50.0, rsi[2])
}

func TestRSI_KnownValue(t *testing.T) {
	// gains 1, losses 1 over the seed window
	rsi := RSI([]float64{10, 11, 10}, 2)
	assert.InDelta(t, 50.0, rsi[2], 1e-12)
}

func TestStdDev_Estimators(t *testing.T) {
	prices := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	pop := StdDev(prices, 8, 0)
	assert.InDelta(t, 2.0, pop[7], 1e-12)

	sample := StdDev(prices, 8, 1)
	assert.InDelta(t, math.Sqrt(32.0/7.0), sample[7], 1e-12)
}

func TestBollinger(t *testing.T) {
	prices := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	b := Bollinger(prices, 8, 2)

	assert.InDelta(t, 5.0, b.Middle[7], 1e-12)
	assert.InDelta(t, 1.0, b.Lower[7], 1e-12)
	assert.InDelta(t, 9.0, b.Upper[7], 1e-12)
	assert.True(t, math.IsNaN(b.Lower[6]))
}

func TestZScore(t *testing.T) {
	z := ZScore([]float64{1, 2, 3}, 3)
	// mean 2, sample sd 1
	assert.InDelta(t, 1.0, z[2], 1e-12)

	flat := ZScore([]float64{3, 3, 3}, 3)
	assert.True(t, math.IsNaN(flat[2]))
}
