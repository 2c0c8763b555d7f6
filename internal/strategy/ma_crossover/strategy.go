package ma_crossover

import (
	"context"
	"fmt"
	"math"

	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/indicator"
	"github.com/newthinker/tradesim/internal/strategy"
)

// Average selects the moving average used on both legs
type Average string

const (
	AverageSMA Average = "sma"
	AverageEMA Average = "ema"
)

// MACrossover implements a moving average crossover strategy. A BUY is
// emitted on the bar where the fast average moves above the slow one and a
// SELL where it moves back below. Warm-up bars count as "below".
type MACrossover struct {
	name       string
	average    Average
	fastPeriod int
	slowPeriod int
}

// New creates a simple moving average crossover named ma_crossover
func New(fastPeriod, slowPeriod int) *MACrossover {
	return &MACrossover{
		name:       "ma_crossover",
		average:    AverageSMA,
		fastPeriod: fastPeriod,
		slowPeriod: slowPeriod,
	}
}

// NewEMA creates an exponential moving average crossover named ema_crossover
func NewEMA(shortWindow, longWindow int) *MACrossover {
	return &MACrossover{
		name:       "ema_crossover",
		average:    AverageEMA,
		fastPeriod: shortWindow,
		slowPeriod: longWindow,
	}
}

func (m *MACrossover) Name() string {
	return m.name
}

func (m *MACrossover) Description() string {
	return fmt.Sprintf("%s crossover (%d/%d)", m.average, m.fastPeriod, m.slowPeriod)
}

// Init accepts fast_period/slow_period, or short_window/long_window.
func (m *MACrossover) Init(cfg strategy.Config) error {
	fast, err := strategy.IntParam(cfg.Params, "fast_period", m.fastPeriod)
	if err != nil {
		return err
	}
	if fast, err = strategy.IntParam(cfg.Params, "short_window", fast); err != nil {
		return err
	}
	slow, err := strategy.IntParam(cfg.Params, "slow_period", m.slowPeriod)
	if err != nil {
		return err
	}
	if slow, err = strategy.IntParam(cfg.Params, "long_window", slow); err != nil {
		return err
	}
	if fast <= 0 || slow <= 0 || fast >= slow {
		return fmt.Errorf("need 0 < fast < slow, got %d/%d", fast, slow)
	}
	m.fastPeriod, m.slowPeriod = fast, slow
	return nil
}

func (m *MACrossover) GenerateSignals(ctx context.Context, bars []core.Bar) ([]core.Signal, error) {
	if len(bars) < 2 {
		return nil, nil
	}

	prices := strategy.Closes(bars)
	avg := indicator.SMA
	if m.average == AverageEMA {
		avg = indicator.EMA
	}
	fastMA := avg(prices, m.fastPeriod)
	slowMA := avg(prices, m.slowPeriod)

	var signals []core.Signal
	prev := trend(fastMA[0], slowMA[0])
	for i := 1; i < len(bars); i++ {
		if i%1024 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		curr := trend(fastMA[i], slowMA[i])
		switch curr - prev {
		case 2:
			// Golden cross
			sig := strategy.NewSignal(m, bars[i], core.SideBuy,
				fmt.Sprintf("Golden Cross: %s%d (%.2f) crossed above %s%d (%.2f)",
					m.average, m.fastPeriod, fastMA[i], m.average, m.slowPeriod, slowMA[i]))
			sig.Confidence = core.Confidence(calculateConfidence(fastMA[i], slowMA[i]))
			signals = append(signals, sig)
		case -2:
			// Death cross
			sig := strategy.NewSignal(m, bars[i], core.SideSell,
				fmt.Sprintf("Death Cross: %s%d (%.2f) crossed below %s%d (%.2f)",
					m.average, m.fastPeriod, fastMA[i], m.average, m.slowPeriod, slowMA[i]))
			sig.Confidence = core.Confidence(calculateConfidence(fastMA[i], slowMA[i]))
			signals = append(signals, sig)
		}
		prev = curr
	}

	return signals, nil
}

// trend is +1 while the fast average is strictly above the slow one and -1
// otherwise, including when either is undefined.
func trend(fast, slow float64) int {
	if fast-slow > 0 {
		return 1
	}
	return -1
}

// calculateConfidence returns higher confidence for larger divergence
func calculateConfidence(fast, slow float64) float64 {
	if math.IsNaN(fast) || math.IsNaN(slow) || slow == 0 {
		return 0.5
	}
	diff := math.Abs((fast - slow) / slow)

	// Scale to 0.5-0.9 range based on divergence
	return math.Min(0.5+diff*10, 0.9)
}
