package broker

import (
	"context"
	"sync"
	"time"
)

// StaticAccount is a Broker over a fixed account snapshot, for gating
// signals offline. Positions are reported as given.
type StaticAccount struct {
	mu        sync.RWMutex
	balance   Balance
	positions []Position
}

// NewStaticAccount creates an account holding cash and positions. Equity is
// cash plus the market value of the positions.
func NewStaticAccount(cash float64, positions ...Position) *StaticAccount {
	equity := cash
	for _, p := range positions {
		equity += p.MarketValue
	}
	return &StaticAccount{
		balance: Balance{
			Currency:  "USD",
			Cash:      cash,
			Equity:    equity,
			UpdatedAt: time.Now(),
		},
		positions: positions,
	}
}

func (a *StaticAccount) Name() string { return "static" }

func (a *StaticAccount) GetBalance(ctx context.Context) (*Balance, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	b := a.balance
	return &b, nil
}

func (a *StaticAccount) GetPositions(ctx context.Context) ([]Position, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]Position(nil), a.positions...), nil
}

// Apply books an order intent at its reference price so that later
// evaluations see the updated account.
func (a *StaticAccount) Apply(order OrderRequest) {
	a.mu.Lock()
	defer a.mu.Unlock()

	value := order.Quantity * order.ReferencePrice
	idx := -1
	for i, p := range a.positions {
		if p.Symbol == order.Symbol {
			idx = i
			break
		}
	}

	switch order.Side {
	case OrderSideBuy:
		a.balance.Cash -= value
		if idx < 0 {
			a.positions = append(a.positions, Position{Symbol: order.Symbol})
			idx = len(a.positions) - 1
		}
		p := &a.positions[idx]
		p.AverageCost = (p.AverageCost*p.Quantity + value) / (p.Quantity + order.Quantity)
		p.Quantity += order.Quantity
		p.MarketValue = p.Quantity * order.ReferencePrice
	case OrderSideSell:
		if idx < 0 {
			return
		}
		a.balance.Cash += value
		p := &a.positions[idx]
		p.Quantity -= order.Quantity
		if p.Quantity <= 0 {
			a.positions = append(a.positions[:idx], a.positions[idx+1:]...)
		} else {
			p.MarketValue = p.Quantity * order.ReferencePrice
		}
	}

	equity := a.balance.Cash
	for _, p := range a.positions {
		equity += p.MarketValue
	}
	a.balance.Equity = equity
	a.balance.UpdatedAt = time.Now()
}
