// Package mocks provides mock implementations of broker interfaces for testing.
package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/newthinker/tradesim/internal/broker"
)

// MockBroker implements the broker.Broker interface for testing.
type MockBroker struct {
	mu sync.RWMutex

	connected   bool
	shouldFail  bool
	failMessage string

	positions map[string]broker.Position
	balance   broker.Balance

	balanceCalls int
}

// New creates a connected MockBroker holding 100000 USD cash.
func New() *MockBroker {
	return &MockBroker{
		connected: true,
		positions: make(map[string]broker.Position),
		balance: broker.Balance{
			Currency:  "USD",
			Cash:      100000.00,
			Equity:    100000.00,
			UpdatedAt: time.Now(),
		},
	}
}

// Name returns the broker identifier.
func (m *MockBroker) Name() string {
	return "mock"
}

// GetBalance returns the configured balance.
func (m *MockBroker) GetBalance(ctx context.Context) (*broker.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balanceCalls++
	if err := m.err(); err != nil {
		return nil, err
	}
	b := m.balance
	return &b, nil
}

// GetPositions returns the configured positions.
func (m *MockBroker) GetPositions(ctx context.Context) ([]broker.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.err(); err != nil {
		return nil, err
	}
	result := make([]broker.Position, 0, len(m.positions))
	for _, p := range m.positions {
		result = append(result, p)
	}
	return result, nil
}

func (m *MockBroker) err() error {
	if !m.connected {
		return broker.ErrNotConnected
	}
	if m.shouldFail {
		return fmt.Errorf("mock failure: %s", m.failMessage)
	}
	return nil
}

// SetBalance sets the balance for testing.
func (m *MockBroker) SetBalance(b broker.Balance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balance = b
}

// SetEquity updates only the equity for testing.
func (m *MockBroker) SetEquity(equity float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balance.Equity = equity
}

// SetPosition adds or replaces a position for testing.
func (m *MockBroker) SetPosition(p broker.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[p.Symbol] = p
}

// SetConnected toggles the connection state for testing.
func (m *MockBroker) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
}

// SetShouldFail makes every call fail with message.
func (m *MockBroker) SetShouldFail(fail bool, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFail = fail
	m.failMessage = message
}

// BalanceCalls returns how many times GetBalance was called.
func (m *MockBroker) BalanceCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balanceCalls
}

var _ broker.Broker = (*MockBroker)(nil)
