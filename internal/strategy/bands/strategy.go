// Package bands holds mean-reversion strategies that trade a price crossing
// a volatility band around its moving average.
package bands

import (
	"context"
	"fmt"

	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/indicator"
	"github.com/newthinker/tradesim/internal/strategy"
)

// Kind selects how the band is measured
type Kind int

const (
	// Bollinger uses population standard deviation bands.
	Bollinger Kind = iota
	// ZScore uses the sample standard deviation z-score.
	ZScore
)

// Reversion buys when price falls through the lower band and sells when it
// rises through the upper band.
type Reversion struct {
	kind   Kind
	period int
	width  float64
}

// NewBollinger creates the bollinger_bands strategy
func NewBollinger(period int, stdDev float64) *Reversion {
	return &Reversion{kind: Bollinger, period: period, width: stdDev}
}

// NewMeanReversion creates the z-score based mean_reversion strategy
func NewMeanReversion(window int, threshold float64) *Reversion {
	return &Reversion{kind: ZScore, period: window, width: threshold}
}

func (r *Reversion) Name() string {
	if r.kind == ZScore {
		return "mean_reversion"
	}
	return "bollinger_bands"
}

func (r *Reversion) Description() string {
	if r.kind == ZScore {
		return fmt.Sprintf("Z-score mean reversion (%d, %.1f)", r.period, r.width)
	}
	return fmt.Sprintf("Bollinger bands (%d, %.1f)", r.period, r.width)
}

func (r *Reversion) Init(cfg strategy.Config) error {
	periodKey, widthKey := "bb_period", "bb_std_dev"
	if r.kind == ZScore {
		periodKey, widthKey = "window", "z_score_threshold"
	}
	period, err := strategy.IntParam(cfg.Params, periodKey, r.period)
	if err != nil {
		return err
	}
	width, err := strategy.FloatParam(cfg.Params, widthKey, r.width)
	if err != nil {
		return err
	}
	if period < 2 || width <= 0 {
		return fmt.Errorf("%s must be >= 2 and %s positive, got %d/%v", periodKey, widthKey, period, width)
	}
	r.period, r.width = period, width
	return nil
}

func (r *Reversion) GenerateSignals(ctx context.Context, bars []core.Bar) ([]core.Signal, error) {
	x, lower, upper := r.series(strategy.Closes(bars))

	var signals []core.Signal
	for i := 1; i < len(bars); i++ {
		if i%1024 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// comparisons against NaN are false, so warm-up bars never fire
		switch {
		case x[i-1] > lower[i-1] && x[i] <= lower[i]:
			signals = append(signals, strategy.NewSignal(r, bars[i], core.SideBuy,
				fmt.Sprintf("%s %.2f at or below lower band %.2f", r.measure(), x[i], lower[i])))
		case x[i-1] < upper[i-1] && x[i] >= upper[i]:
			signals = append(signals, strategy.NewSignal(r, bars[i], core.SideSell,
				fmt.Sprintf("%s %.2f at or above upper band %.2f", r.measure(), x[i], upper[i])))
		}
	}
	return signals, nil
}

func (r *Reversion) measure() string {
	if r.kind == ZScore {
		return "z-score"
	}
	return "close"
}

// series returns the tracked value and its lower and upper bands.
func (r *Reversion) series(closes []float64) (x, lower, upper []float64) {
	if r.kind == Bollinger {
		b := indicator.Bollinger(closes, r.period, r.width)
		return closes, b.Lower, b.Upper
	}
	x = indicator.ZScore(closes, r.period)
	lower = make([]float64, len(closes))
	upper = make([]float64, len(closes))
	for i := range closes {
		lower[i], upper[i] = -r.width, r.width
	}
	return x, lower, upper
}
