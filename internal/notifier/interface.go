// Package notifier delivers trading alerts to external channels.
package notifier

import (
	"context"
	"time"

	"github.com/newthinker/tradesim/internal/core"
)

// Kind classifies an alert
type Kind string

const (
	KindOrder Kind = "order"
	KindHalt  Kind = "halt"
	KindRule  Kind = "rule"
)

// Alert is one noteworthy risk gate outcome
type Alert struct {
	Time     time.Time
	Kind     Kind
	Symbol   string
	Side     core.Side
	Quantity float64
	Price    float64
	StopLoss float64
	Message  string
}

// Config holds notifier configuration
type Config struct {
	Type   string         `mapstructure:"type"`
	Params map[string]any `mapstructure:"params"`
}

// Notifier defines the interface for alert delivery
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Init initializes the notifier with configuration
	Init(cfg Config) error

	// Send delivers a single alert
	Send(ctx context.Context, alert Alert) error

	// SendBatch delivers several alerts in one message
	SendBatch(ctx context.Context, alerts []Alert) error
}
