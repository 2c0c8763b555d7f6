package core

import (
	"fmt"
	"math"
	"time"
)

// Bar represents one OHLCV sample for a fixed period
type Bar struct {
	Symbol   string
	Interval string // "1m", "1h", "1d"
	Time     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// Validate reports whether the bar can be used to price a trade.
func (b Bar) Validate() error {
	for _, p := range []struct {
		name  string
		value float64
	}{
		{"open", b.Open},
		{"high", b.High},
		{"low", b.Low},
		{"close", b.Close},
	} {
		if math.IsNaN(p.value) || math.IsInf(p.value, 0) {
			return fmt.Errorf("%s price is not finite", p.name)
		}
		if p.value <= 0 {
			return fmt.Errorf("%s price must be positive, got %v", p.name, p.value)
		}
	}
	if b.High < b.Low {
		return fmt.Errorf("high %v below low %v", b.High, b.Low)
	}
	if b.Volume < 0 || math.IsNaN(b.Volume) {
		return fmt.Errorf("volume must be non-negative, got %v", b.Volume)
	}
	return nil
}

// Side represents a trading signal direction
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
	SideHold Side = "HOLD"
)

// Valid returns true for the three known sides
func (s Side) Valid() bool {
	switch s {
	case SideBuy, SideSell, SideHold:
		return true
	}
	return false
}

// Signal is a strategy's directive at a point in time
type Signal struct {
	Time       time.Time
	Symbol     string
	Side       Side
	Price      float64  // Reference price at signal generation
	Confidence *float64 // Optional, in [0,1]
	StopLoss   float64  // Optional protective stop, 0 when unset
	Strategy   string
	Reason     string
}

// HasStopLoss returns true if the strategy supplied a stop price
func (s Signal) HasStopLoss() bool {
	return s.StopLoss > 0
}

// Validate checks the side and the optional confidence.
func (s Signal) Validate() error {
	if !s.Side.Valid() {
		return WrapError(ErrInvalidInput, fmt.Errorf("unknown signal side %q", s.Side))
	}
	if s.Confidence != nil && (*s.Confidence < 0 || *s.Confidence > 1) {
		return WrapError(ErrInvalidInput, fmt.Errorf("confidence %v outside [0,1]", *s.Confidence))
	}
	return nil
}

// Confidence returns a pointer suitable for Signal.Confidence
func Confidence(v float64) *float64 {
	return &v
}
