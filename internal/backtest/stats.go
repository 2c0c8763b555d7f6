package backtest

import (
	"math"
	"time"

	"github.com/newthinker/tradesim/internal/core"
)

// TradingDaysPerYear annualizes volatility regardless of bar interval.
const TradingDaysPerYear = 252

const daysPerYear = 365.25

// MaxAnnualizedReturn caps compounding over very short spans so the ratios
// derived from it stay finite.
const MaxAnnualizedReturn = 1e9

// Metrics summarizes a completed run
type Metrics struct {
	TotalReturn          float64 `json:"total_return"`
	AnnualizedReturn     float64 `json:"annualized_return"`
	MaxDrawdown          float64 `json:"max_drawdown"`
	AnnualizedVolatility float64 `json:"annualized_volatility"`
	Sharpe               float64 `json:"sharpe_ratio"`
	Sortino              float64 `json:"sortino_ratio"`
	Calmar               float64 `json:"calmar_ratio"`
	NumTrades            int     `json:"num_trades"`
}

// AsMap returns the metrics as key to numeric value pairs.
func (m Metrics) AsMap() map[string]float64 {
	return map[string]float64{
		"total_return":          m.TotalReturn,
		"annualized_return":     m.AnnualizedReturn,
		"max_drawdown":          m.MaxDrawdown,
		"annualized_volatility": m.AnnualizedVolatility,
		"sharpe_ratio":          m.Sharpe,
		"sortino_ratio":         m.Sortino,
		"calmar_ratio":          m.Calmar,
		"num_trades":            float64(m.NumTrades),
	}
}

// Point is one sample of a derived series
type Point struct {
	Time  time.Time
	Value float64
}

// Analysis is the full output of Analyze
type Analysis struct {
	Metrics Metrics
	Equity  []Point
	// Drawdown holds values <= 0 relative to the running peak.
	Drawdown []Point
	// BuyAndHold scales price to the starting equity.
	BuyAndHold []Point
	Returns    []float64
}

// Analyze derives metrics and series from a completed history. It does not
// modify records and returns identical output for identical input.
func Analyze(records []Record) Analysis {
	var a Analysis
	if len(records) == 0 {
		return a
	}

	first, last := records[0], records[len(records)-1]
	for _, r := range records {
		if r.Applied && r.Signal == core.SideBuy {
			a.Metrics.NumTrades++
		}
	}

	a.Equity = make([]Point, len(records))
	a.Drawdown = make([]Point, len(records))
	a.Returns = make([]float64, len(records))
	a.BuyAndHold = make([]Point, len(records))

	peak := records[0].Total
	for i, r := range records {
		a.Equity[i] = Point{Time: r.Time, Value: r.Total}
		peak = math.Max(peak, r.Total)
		dd := 0.0
		if peak > 0 {
			dd = (r.Total - peak) / peak
		}
		a.Drawdown[i] = Point{Time: r.Time, Value: dd}
		if dd < a.Metrics.MaxDrawdown {
			a.Metrics.MaxDrawdown = dd
		}
		if i > 0 && records[i-1].Total != 0 {
			a.Returns[i] = r.Total/records[i-1].Total - 1
		}
		bh := 0.0
		if first.Price > 0 {
			bh = r.Price / first.Price * first.Total
		}
		a.BuyAndHold[i] = Point{Time: r.Time, Value: bh}
	}

	if first.Total == 0 {
		return a
	}

	m := &a.Metrics
	m.TotalReturn = last.Total/first.Total - 1
	m.AnnualizedReturn = annualize(m.TotalReturn, elapsedDays(first.Time, last.Time))

	m.AnnualizedVolatility = stdev(a.Returns) * math.Sqrt(TradingDaysPerYear)
	if m.AnnualizedVolatility > 0 {
		m.Sharpe = m.AnnualizedReturn / m.AnnualizedVolatility
	}

	var downside []float64
	for _, r := range a.Returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if dv := stdev(downside) * math.Sqrt(TradingDaysPerYear); dv > 0 {
		m.Sortino = m.AnnualizedReturn / dv
	}

	if m.MaxDrawdown != 0 {
		m.Calmar = m.AnnualizedReturn / math.Abs(m.MaxDrawdown)
	}
	return a
}

// elapsedDays counts whole calendar days between two instants.
func elapsedDays(from, to time.Time) int {
	return int(to.Sub(from) / (24 * time.Hour))
}

func annualize(totalReturn float64, days int) float64 {
	if days <= 0 {
		return 0
	}
	// a total loss has no real root
	if 1+totalReturn <= 0 {
		return -1
	}
	ann := math.Pow(1+totalReturn, daysPerYear/float64(days)) - 1
	if math.IsInf(ann, 0) || math.IsNaN(ann) || ann > MaxAnnualizedReturn {
		return MaxAnnualizedReturn
	}
	return ann
}

// stdev is the sample standard deviation; it is 0 below two samples.
func stdev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))

	var variance float64
	for _, x := range xs {
		variance += (x - mean) * (x - mean)
	}
	return math.Sqrt(variance / float64(len(xs)-1))
}
