package risk_test

import (
	"testing"

	"github.com/newthinker/tradesim/internal/risk"
	"github.com/stretchr/testify/assert"
)

func TestDefaultLimits(t *testing.T) {
	limits := risk.DefaultLimits()

	assert.Equal(t, 0.02, limits.MaxPortfolioRiskPerTrade)
	assert.Equal(t, 0.10, limits.MaxPositionExposure)
	assert.Equal(t, 0.05, limits.DailyDrawdownLimit)
	assert.Equal(t, 0.15, limits.OverallDrawdownLimit)
}

func TestRiskBasedSize_Standard(t *testing.T) {
	// Risk $2000 (2% of 100k) at $5 per share = 400 shares
	limits := risk.Limits{MaxPortfolioRiskPerTrade: 0.02, MaxPositionExposure: 1.0}

	qty := risk.RiskBasedSize("AAPL", 150, 145, 100000, 100000, limits)

	assert.InDelta(t, 400.0, qty, 1e-9)
}

func TestRiskBasedSize_CashConstrained(t *testing.T) {
	limits := risk.Limits{MaxPortfolioRiskPerTrade: 0.02, MaxPositionExposure: 1.0}

	qty := risk.RiskBasedSize("AAPL", 150, 145, 100000, 5000, limits)

	assert.LessOrEqual(t, qty*150, 5000.0, "trade value must fit in cash")
	assert.InDelta(t, 0.99*5000/150, qty, 1e-9, "clamped with 1% buffer")
}

func TestRiskBasedSize_ExposureConstrained(t *testing.T) {
	// 10% of 100k = $10,000 max position value
	limits := risk.Limits{MaxPortfolioRiskPerTrade: 0.02, MaxPositionExposure: 0.10}

	qty := risk.RiskBasedSize("GOOG", 2000, 1900, 100000, 100000, limits)

	assert.LessOrEqual(t, qty*2000, 10000.0+1e-9)
	assert.InDelta(t, 5.0, qty, 1e-9)
}

func TestRiskBasedSize_StopEqualsEntry(t *testing.T) {
	limits := risk.DefaultLimits()

	assert.Zero(t, risk.RiskBasedSize("AAPL", 150, 150, 100000, 100000, limits))
	assert.Zero(t, risk.RiskBasedSize("AAPL", 150, 150+5e-7, 100000, 100000, limits))
}

func TestRiskBasedSize_NegligibleQuantity(t *testing.T) {
	limits := risk.Limits{MaxPortfolioRiskPerTrade: 0.02, MaxPositionExposure: 1.0}

	assert.Zero(t, risk.RiskBasedSize("AAPL", 150, 145, 100000, 0, limits), "no cash")
	assert.Zero(t, risk.RiskBasedSize("AAPL", 150, 145, 100000, -10, limits), "negative cash")
	assert.Zero(t, risk.RiskBasedSize("AAPL", 0, 145, 100000, 100000, limits), "zero price")
}

func TestRiskBasedSize_MonotonicInRiskPerUnit(t *testing.T) {
	limits := risk.Limits{MaxPortfolioRiskPerTrade: 0.02, MaxPositionExposure: 0.5}
	price := 100.0

	prev := risk.RiskBasedSize("X", price, price-0.01, 100000, 60000, limits)
	for _, dist := range []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 25, 50, 99} {
		qty := risk.RiskBasedSize("X", price, price-dist, 100000, 60000, limits)
		assert.GreaterOrEqual(t, qty, 0.0)
		assert.LessOrEqual(t, qty, prev, "risk per unit %v", dist)
		prev = qty
	}
}

func TestRiskBasedSizer_ImplementsSizer(t *testing.T) {
	var s risk.Sizer = risk.RiskBasedSizer{Limits: risk.Limits{MaxPortfolioRiskPerTrade: 0.02, MaxPositionExposure: 1.0}}

	assert.Equal(t, "risk_based", s.Name())
	qty := s.Size(risk.SizeRequest{Symbol: "AAPL", Price: 150, StopLoss: 145, PortfolioValue: 100000, Cash: 100000})
	assert.InDelta(t, 400.0, qty, 1e-9)
}

func TestFixedFractionSizer(t *testing.T) {
	var s risk.Sizer = risk.FixedFractionSizer{Fraction: 0.5}
	assert.Equal(t, "fixed_fraction", s.Name())

	tests := []struct {
		name string
		req  risk.SizeRequest
		want float64
	}{
		{"half of cash", risk.SizeRequest{Price: 100, Cash: 10000}, 50},
		{"ignores stop and value", risk.SizeRequest{Price: 100, Cash: 10000, StopLoss: 100, PortfolioValue: 1}, 50},
		{"no cash", risk.SizeRequest{Price: 100, Cash: 0}, 0},
		{"negative cash", risk.SizeRequest{Price: 100, Cash: -5}, 0},
		{"zero price", risk.SizeRequest{Price: 0, Cash: 10000}, 0},
		{"negligible", risk.SizeRequest{Price: 1e9, Cash: 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Size(tt.req))
		})
	}
}
