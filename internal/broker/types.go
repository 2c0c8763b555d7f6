// Package broker gates live trading signals through the risk core. It reads
// account state from a Broker and produces order intents; it never routes
// orders.
package broker

import (
	"context"
	"errors"
	"math"
	"time"
)

// Broker-specific errors.
var (
	// ErrNotConnected indicates the broker is not connected.
	ErrNotConnected = errors.New("broker: not connected")
	// ErrInvalidSymbol indicates an invalid or empty symbol.
	ErrInvalidSymbol = errors.New("broker: invalid symbol")
	// ErrInvalidQuantity indicates an invalid quantity.
	ErrInvalidQuantity = errors.New("broker: invalid quantity")
	// ErrInvalidOrderType indicates an unsupported order type.
	ErrInvalidOrderType = errors.New("broker: invalid order type")
)

// OrderSide represents the direction of an order.
type OrderSide string

const (
	// OrderSideBuy represents a buy order.
	OrderSideBuy OrderSide = "BUY"
	// OrderSideSell represents a sell order.
	OrderSideSell OrderSide = "SELL"
)

// OrderType represents the type of order execution.
type OrderType string

const (
	// OrderTypeMarket executes at current market price.
	OrderTypeMarket OrderType = "MARKET"
)

// OrderRequest is an order intent produced by the risk gate.
type OrderRequest struct {
	// Symbol is the ticker symbol (e.g., "AAPL", "BTC/USDT").
	Symbol string `json:"symbol"`
	// Side indicates buy or sell.
	Side OrderSide `json:"side"`
	// Type specifies the order execution type.
	Type OrderType `json:"type"`
	// Quantity is the number of whole units to trade.
	Quantity float64 `json:"quantity"`
	// ReferencePrice is the signal price the quantity was sized at.
	ReferencePrice float64 `json:"reference_price"`
	// StopLoss is the protective stop used for sizing, 0 for sells.
	StopLoss float64 `json:"stop_loss,omitempty"`
	// ClientOrderID is an optional client-specified identifier.
	ClientOrderID string `json:"client_order_id,omitempty"`
}

// Validate checks if the order request has valid required fields.
func (r OrderRequest) Validate() error {
	if r.Symbol == "" {
		return ErrInvalidSymbol
	}
	if !(r.Quantity > 0) || math.IsInf(r.Quantity, 0) {
		return ErrInvalidQuantity
	}
	if r.Type != OrderTypeMarket {
		return ErrInvalidOrderType
	}
	return nil
}

// Position represents a holding reported by the broker.
type Position struct {
	// Symbol is the ticker symbol.
	Symbol string `json:"symbol"`
	// Quantity is the number of units held.
	Quantity float64 `json:"quantity"`
	// AverageCost is the average cost basis per unit.
	AverageCost float64 `json:"average_cost"`
	// MarketValue is the current market value of the position.
	MarketValue float64 `json:"market_value"`
}

// Balance represents account balance information.
type Balance struct {
	// Currency is the currency code (e.g., "USD", "CNY").
	Currency string `json:"currency"`
	// Cash is the available cash balance.
	Cash float64 `json:"cash"`
	// Equity is the total account value including positions.
	Equity float64 `json:"equity"`
	// UpdatedAt is when the balance was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// Broker is the read side of a brokerage account.
type Broker interface {
	// Name returns the broker identifier (e.g., "alpaca").
	Name() string

	// GetBalance returns the current account balance.
	GetBalance(ctx context.Context) (*Balance, error)

	// GetPositions returns all open positions.
	GetPositions(ctx context.Context) ([]Position, error)
}
