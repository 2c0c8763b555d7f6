package rsi

import (
	"context"
	"fmt"
	"math"

	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/indicator"
	"github.com/newthinker/tradesim/internal/strategy"
)

// RSI buys when the index climbs out of oversold territory and sells when it
// drops out of overbought territory.
type RSI struct {
	period     int
	oversold   float64
	overbought float64
}

// New creates a new RSI strategy
func New(period int, oversold, overbought float64) *RSI {
	return &RSI{period: period, oversold: oversold, overbought: overbought}
}

func (r *RSI) Name() string { return "rsi_strategy" }

func (r *RSI) Description() string {
	return fmt.Sprintf("RSI(%d) oversold %.0f / overbought %.0f", r.period, r.oversold, r.overbought)
}

func (r *RSI) Init(cfg strategy.Config) error {
	period, err := strategy.IntParam(cfg.Params, "rsi_period", r.period)
	if err != nil {
		return err
	}
	oversold, err := strategy.FloatParam(cfg.Params, "oversold_threshold", r.oversold)
	if err != nil {
		return err
	}
	overbought, err := strategy.FloatParam(cfg.Params, "overbought_threshold", r.overbought)
	if err != nil {
		return err
	}
	if period <= 0 {
		return fmt.Errorf("rsi_period must be positive, got %d", period)
	}
	if oversold < 0 || overbought > 100 || oversold >= overbought {
		return fmt.Errorf("need 0 <= oversold < overbought <= 100, got %v/%v", oversold, overbought)
	}
	r.period, r.oversold, r.overbought = period, oversold, overbought
	return nil
}

func (r *RSI) GenerateSignals(ctx context.Context, bars []core.Bar) ([]core.Signal, error) {
	values := indicator.RSI(strategy.Closes(bars), r.period)

	var signals []core.Signal
	for i := 1; i < len(bars); i++ {
		if i%1024 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		prev, curr := values[i-1], values[i]
		if math.IsNaN(prev) || math.IsNaN(curr) {
			continue
		}
		switch {
		case prev <= r.oversold && curr > r.oversold:
			signals = append(signals, strategy.NewSignal(r, bars[i], core.SideBuy,
				fmt.Sprintf("RSI crossed above %.0f (%.1f)", r.oversold, curr)))
		case prev >= r.overbought && curr < r.overbought:
			signals = append(signals, strategy.NewSignal(r, bars[i], core.SideSell,
				fmt.Sprintf("RSI crossed below %.0f (%.1f)", r.overbought, curr)))
		}
	}
	return signals, nil
}
