// Package risk provides position sizing and drawdown circuit breaking.
package risk

import (
	"math"

	"go.uber.org/zap"
)

// Epsilon is the smallest risk per unit and the smallest quantity treated as
// non-zero.
const Epsilon = 1e-6

// cashBuffer keeps 1% of cash back when a trade is clamped to available cash.
const cashBuffer = 0.99

// Limits defines risk management parameters. All values are fractions, e.g.
// 0.02 for 2%. Limits are immutable for the duration of a run.
type Limits struct {
	// MaxPortfolioRiskPerTrade is the fraction of portfolio value risked between entry and stop.
	MaxPortfolioRiskPerTrade float64
	// MaxPositionExposure caps a single position's value as a fraction of portfolio value.
	MaxPositionExposure float64
	// DailyDrawdownLimit halts trading when drawdown from the daily high exceeds it.
	DailyDrawdownLimit float64
	// OverallDrawdownLimit halts trading when drawdown from the all-time high exceeds it.
	OverallDrawdownLimit float64
}

// DefaultLimits returns Limits with sensible default values.
func DefaultLimits() Limits {
	return Limits{
		MaxPortfolioRiskPerTrade: 0.02,
		MaxPositionExposure:      0.10,
		DailyDrawdownLimit:       0.05,
		OverallDrawdownLimit:     0.15,
	}
}

// SizeRequest carries the inputs for a single sizing decision. It must be
// built fresh for every signal because cash and value change after each fill.
type SizeRequest struct {
	Symbol         string
	Price          float64
	StopLoss       float64
	PortfolioValue float64
	Cash           float64
}

// Sizer computes a non-negative trade quantity.
type Sizer interface {
	Name() string
	Size(req SizeRequest) float64
}

// FixedFractionSizer spends a fixed fraction of available cash on every buy.
// It ignores stop loss and portfolio value.
type FixedFractionSizer struct {
	Fraction float64
}

// Name returns the policy identifier.
func (f FixedFractionSizer) Name() string {
	return "fixed_fraction"
}

// Size returns cash*fraction/price, or 0 when the inputs cannot size a trade.
func (f FixedFractionSizer) Size(req SizeRequest) float64 {
	if req.Price <= 0 || req.Cash <= 0 || f.Fraction <= 0 {
		return 0
	}
	qty := req.Cash * f.Fraction / req.Price
	if qty < Epsilon || math.IsNaN(qty) {
		return 0
	}
	return qty
}

// RiskBasedSizer sizes a trade so that a stop-out loses at most a fixed
// fraction of portfolio value, subject to cash and exposure caps.
type RiskBasedSizer struct {
	Limits Limits
	Logger *zap.Logger
}

// Name returns the policy identifier.
func (r RiskBasedSizer) Name() string {
	return "risk_based"
}

// Size delegates to RiskBasedSize and logs each downsizing.
func (r RiskBasedSizer) Size(req SizeRequest) float64 {
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return riskBasedSize(req, r.Limits, log)
}

// RiskBasedSize computes the quantity to trade given entry and stop prices.
// It returns 0 when the stop coincides with the entry price or the resulting
// quantity is negligible.
func RiskBasedSize(symbol string, price, stopLoss, portfolioValue, cash float64, limits Limits) float64 {
	return riskBasedSize(SizeRequest{
		Symbol:         symbol,
		Price:          price,
		StopLoss:       stopLoss,
		PortfolioValue: portfolioValue,
		Cash:           cash,
	}, limits, zap.NewNop())
}

func riskBasedSize(req SizeRequest, limits Limits, log *zap.Logger) float64 {
	if req.Price <= 0 || math.IsNaN(req.Price) {
		return 0
	}

	dollarRisk := req.PortfolioValue * limits.MaxPortfolioRiskPerTrade

	riskPerUnit := math.Abs(req.Price - req.StopLoss)
	if riskPerUnit <= Epsilon || math.IsNaN(riskPerUnit) {
		log.Warn("risk per unit too small to size trade",
			zap.String("symbol", req.Symbol),
			zap.Float64("risk_per_unit", riskPerUnit),
		)
		return 0
	}

	qty := dollarRisk / riskPerUnit

	if qty*req.Price > req.Cash {
		log.Warn("downsizing trade to cash limit",
			zap.String("symbol", req.Symbol),
			zap.Float64("trade_value", qty*req.Price),
			zap.Float64("cash", req.Cash),
		)
		qty = cashBuffer * req.Cash / req.Price
	}

	maxValue := req.PortfolioValue * limits.MaxPositionExposure
	if qty*req.Price > maxValue {
		log.Warn("downsizing trade to exposure limit",
			zap.String("symbol", req.Symbol),
			zap.Float64("trade_value", qty*req.Price),
			zap.Float64("max_value", maxValue),
		)
		qty = maxValue / req.Price
	}

	if qty < Epsilon {
		return 0
	}
	return qty
}
