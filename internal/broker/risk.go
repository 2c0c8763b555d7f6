package broker

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/notifier"
	"github.com/newthinker/tradesim/internal/risk"
)

// DefaultStopLossPct is the stop distance below the signal price used for
// sizing when a buy signal carries no stop.
const DefaultStopLossPct = 0.02

// Decision represents the outcome of a risk gate evaluation.
type Decision struct {
	// Allowed indicates whether an order should be placed.
	Allowed bool
	// Reason provides explanation when the signal is skipped.
	Reason string
	// Order is set when Allowed is true.
	Order *OrderRequest
	// Verdict is the circuit breaker outcome for the account equity.
	Verdict risk.Verdict
}

// Alert converts the decision for sig into a notification. Only placed
// orders and circuit breaker halts are worth an alert.
func (d Decision) Alert(sig core.Signal) (notifier.Alert, bool) {
	switch {
	case d.Allowed && d.Order != nil:
		side := core.SideBuy
		if d.Order.Side == OrderSideSell {
			side = core.SideSell
		}
		return notifier.Alert{
			Time:     sig.Time,
			Kind:     notifier.KindOrder,
			Symbol:   d.Order.Symbol,
			Side:     side,
			Quantity: d.Order.Quantity,
			Price:    d.Order.ReferencePrice,
			StopLoss: d.Order.StopLoss,
		}, true
	case d.Verdict.Halt:
		return notifier.Alert{
			Time:    sig.Time,
			Kind:    notifier.KindHalt,
			Symbol:  sig.Symbol,
			Side:    sig.Side,
			Price:   sig.Price,
			Message: d.Reason,
		}, true
	}
	return notifier.Alert{}, false
}

// RiskGate validates live signals against the circuit breaker and sizes
// buys with the risk-based sizer. It is safe for concurrent use.
type RiskGate struct {
	limits      risk.Limits
	stopLossPct float64
	broker      Broker
	logger      *zap.Logger

	mu      sync.Mutex
	breaker *risk.CircuitBreaker
	day     string
}

// NewRiskGate creates a RiskGate reading account state from b.
func NewRiskGate(limits risk.Limits, b Broker, logger ...*zap.Logger) *RiskGate {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &RiskGate{
		limits:      limits,
		stopLossPct: DefaultStopLossPct,
		broker:      b,
		logger:      l,
		breaker:     risk.NewCircuitBreaker(limits, l),
	}
}

// SetStopLossPct overrides DefaultStopLossPct.
func (g *RiskGate) SetStopLossPct(pct float64) {
	g.stopLossPct = pct
}

// Evaluate decides whether sig should become an order. Errors are returned
// only when the account cannot be read or the signal is malformed; a skipped
// signal is a Decision with Allowed false.
func (g *RiskGate) Evaluate(ctx context.Context, sig core.Signal) (Decision, error) {
	if err := sig.Validate(); err != nil {
		return Decision{}, err
	}
	if sig.Side == core.SideHold {
		return Decision{Reason: "hold signal"}, nil
	}
	if !(sig.Price > 0) || math.IsInf(sig.Price, 0) {
		return Decision{}, core.WrapError(core.ErrInvalidInput,
			fmt.Errorf("signal price must be positive, got %v", sig.Price))
	}

	balance, err := g.broker.GetBalance(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("getting balance: %w", err)
	}

	verdict := g.check(sig.Time, balance.Equity)
	log := g.logger.With(
		zap.String("symbol", sig.Symbol),
		zap.String("side", string(sig.Side)),
	)
	if verdict.Halt {
		log.Warn("trade skipped due to circuit breaker",
			zap.String("scope", string(verdict.Scope)),
			zap.Float64("drawdown", verdict.Drawdown),
		)
		return Decision{
			Reason:  core.WrapError(core.ErrCircuitHalt, fmt.Errorf("%s drawdown %.4f", verdict.Scope, verdict.Drawdown)).Error(),
			Verdict: verdict,
		}, nil
	}

	var order *OrderRequest
	switch sig.Side {
	case core.SideBuy:
		order = g.sizeBuy(sig, balance)
	case core.SideSell:
		order, err = g.sizeSell(ctx, sig)
		if err != nil {
			return Decision{}, err
		}
	}
	if order == nil {
		log.Info("trade skipped: calculated quantity too small")
		return Decision{Reason: "quantity below one unit", Verdict: verdict}, nil
	}

	log.Info("order intent",
		zap.Float64("quantity", order.Quantity),
		zap.Float64("price", order.ReferencePrice),
		zap.Float64("equity", balance.Equity),
	)
	return Decision{Allowed: true, Order: order, Verdict: verdict}, nil
}

// check runs the breaker, resetting the daily mark on a new UTC day.
func (g *RiskGate) check(ts time.Time, equity float64) risk.Verdict {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !ts.IsZero() {
		day := ts.UTC().Format(time.DateOnly)
		if g.day != "" && day != g.day {
			g.breaker.ResetDaily()
		}
		g.day = day
	}
	return g.breaker.Check(equity)
}

func (g *RiskGate) sizeBuy(sig core.Signal, balance *Balance) *OrderRequest {
	stop := sig.StopLoss
	if !sig.HasStopLoss() {
		stop = sig.Price * (1 - g.stopLossPct)
	}
	sizer := risk.RiskBasedSizer{Limits: g.limits, Logger: g.logger}
	qty := math.Floor(sizer.Size(risk.SizeRequest{
		Symbol:         sig.Symbol,
		Price:          sig.Price,
		StopLoss:       stop,
		PortfolioValue: balance.Equity,
		Cash:           balance.Cash,
	}))
	if qty < 1 {
		return nil
	}
	return &OrderRequest{
		Symbol:         sig.Symbol,
		Side:           OrderSideBuy,
		Type:           OrderTypeMarket,
		Quantity:       qty,
		ReferencePrice: sig.Price,
		StopLoss:       stop,
	}
}

// sizeSell closes the whole broker position; a missing position sizes to
// nothing.
func (g *RiskGate) sizeSell(ctx context.Context, sig core.Signal) (*OrderRequest, error) {
	positions, err := g.broker.GetPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting positions: %w", err)
	}
	for _, p := range positions {
		if p.Symbol != sig.Symbol {
			continue
		}
		qty := math.Floor(p.Quantity)
		if qty < 1 {
			return nil, nil
		}
		return &OrderRequest{
			Symbol:         sig.Symbol,
			Side:           OrderSideSell,
			Type:           OrderTypeMarket,
			Quantity:       qty,
			ReferencePrice: sig.Price,
		}, nil
	}
	return nil, nil
}
