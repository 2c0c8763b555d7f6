// Package execution applies simulated fills to a portfolio.
package execution

import (
	"errors"
	"fmt"
	"math"

	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/portfolio"
	"github.com/newthinker/tradesim/internal/risk"
)

// CashPolicy decides what happens when a buy plus commission exceeds cash.
type CashPolicy string

const (
	// CashPolicyAllowNegative applies the buy regardless; cash may dip below
	// zero by the commission on a full-cash buy.
	CashPolicyAllowNegative CashPolicy = "allow_negative"
	// CashPolicyReject skips any buy whose cost plus commission exceeds cash.
	CashPolicyReject CashPolicy = "reject"
)

// Valid returns true for known policies.
func (p CashPolicy) Valid() bool {
	return p == CashPolicyAllowNegative || p == CashPolicyReject
}

// RejectReason classifies a rejected trade.
type RejectReason string

const (
	RejectNoPosition       RejectReason = "no_position"
	RejectNoCash           RejectReason = "no_cash"
	RejectZeroQuantity     RejectReason = "zero_quantity"
	RejectInsufficientCash RejectReason = "insufficient_cash"
	RejectInvalidPrice     RejectReason = "invalid_price"
)

// Rejection describes why a signal did not produce a fill.
type Rejection struct {
	Reason RejectReason
	Detail string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Reason, r.Detail)
}

func reject(reason RejectReason, format string, args ...any) error {
	return core.WrapError(core.ErrTradeRejected, &Rejection{
		Reason: reason,
		Detail: fmt.Sprintf(format, args...),
	})
}

// ReasonOf extracts the RejectReason from an error returned by Buy or Sell.
func ReasonOf(err error) (RejectReason, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r.Reason, true
	}
	return "", false
}

// Costs are the transaction costs applied to every fill.
type Costs struct {
	// Commission is a fixed amount charged per fill.
	Commission float64
	// Slippage is the fractional adverse price move applied to each fill.
	Slippage float64
}

// Fill is the outcome of an executed trade.
type Fill struct {
	Symbol      string
	Side        core.Side
	Quantity    float64
	Price       float64 // Execution price after slippage
	Commission  float64
	CashDelta   float64
	RealizedPnL float64 // Non-zero on sells only
}

// Config holds the execution parameters.
type Config struct {
	Costs      Costs
	Sizer      risk.Sizer
	CashPolicy CashPolicy
	// StopLossPct derives a stop below the reference price for signals that
	// carry none. Only risk-based sizing reads it.
	StopLossPct float64
}

// Executor mutates a portfolio.State according to its Config.
type Executor struct {
	config Config
}

// New creates an Executor. A nil sizer defaults to spending all cash.
func New(config Config) *Executor {
	if config.Sizer == nil {
		config.Sizer = risk.FixedFractionSizer{Fraction: 1}
	}
	if config.CashPolicy == "" {
		config.CashPolicy = CashPolicyAllowNegative
	}
	return &Executor{config: config}
}

// Config returns the executor configuration.
func (e *Executor) Config() Config {
	return e.config
}

// Buy opens or adds to a long position at price adjusted for slippage.
// portfolioValue is the current equity used by risk-based sizing.
func (e *Executor) Buy(state *portfolio.State, sig core.Signal, price, portfolioValue float64) (Fill, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return Fill{}, reject(RejectInvalidPrice, "price %v for %s", price, sig.Symbol)
	}
	if state.Cash <= 0 {
		return Fill{}, reject(RejectNoCash, "cash %.2f for %s", state.Cash, sig.Symbol)
	}

	buyPrice := price * (1 + e.config.Costs.Slippage)

	stop := sig.StopLoss
	if !sig.HasStopLoss() {
		stop = price * (1 - e.config.StopLossPct)
	}

	qty := e.config.Sizer.Size(risk.SizeRequest{
		Symbol:         sig.Symbol,
		Price:          buyPrice,
		StopLoss:       stop,
		PortfolioValue: portfolioValue,
		Cash:           state.Cash,
	})
	if qty < risk.Epsilon {
		return Fill{}, reject(RejectZeroQuantity, "%s sized %s to %v", e.config.Sizer.Name(), sig.Symbol, qty)
	}

	cost := qty * buyPrice
	if e.config.CashPolicy == CashPolicyReject && state.Cash < cost+e.config.Costs.Commission {
		return Fill{}, reject(RejectInsufficientCash, "need %.2f, have %.2f for %s",
			cost+e.config.Costs.Commission, state.Cash, sig.Symbol)
	}

	before := state.Cash
	state.Cash -= cost
	state.Cash -= e.config.Costs.Commission

	pos, ok := state.Positions[sig.Symbol]
	if !ok {
		pos = &portfolio.Position{Symbol: sig.Symbol}
		state.Positions[sig.Symbol] = pos
	}
	// new avg = (old_avg * old_qty + fill_price * fill_qty) / (old_qty + fill_qty)
	newSize := pos.Size + qty
	pos.AverageEntryPrice = (pos.Size*pos.AverageEntryPrice + qty*buyPrice) / newSize
	pos.Size = newSize

	return Fill{
		Symbol:     sig.Symbol,
		Side:       core.SideBuy,
		Quantity:   qty,
		Price:      buyPrice,
		Commission: e.config.Costs.Commission,
		CashDelta:  state.Cash - before,
	}, nil
}

// Sell liquidates the entire position in the signal's symbol.
func (e *Executor) Sell(state *portfolio.State, sig core.Signal, price float64) (Fill, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return Fill{}, reject(RejectInvalidPrice, "price %v for %s", price, sig.Symbol)
	}
	pos, ok := state.Positions[sig.Symbol]
	if !ok || !pos.IsOpen() {
		return Fill{}, reject(RejectNoPosition, "no open position in %s", sig.Symbol)
	}

	sellPrice := price * (1 - e.config.Costs.Slippage)
	qty := pos.Size
	proceeds := qty * sellPrice

	before := state.Cash
	state.Cash += proceeds
	state.Cash -= e.config.Costs.Commission
	delete(state.Positions, sig.Symbol)

	return Fill{
		Symbol:      sig.Symbol,
		Side:        core.SideSell,
		Quantity:    qty,
		Price:       sellPrice,
		Commission:  e.config.Costs.Commission,
		CashDelta:   state.Cash - before,
		RealizedPnL: proceeds - qty*pos.AverageEntryPrice - e.config.Costs.Commission,
	}, nil
}
