package report

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/newthinker/tradesim/internal/backtest"
)

// WriteSummary prints a short report of one backtest
func WriteSummary(w io.Writer, res *backtest.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	job := res.Job
	m := res.Analysis.Metrics

	fmt.Fprintf(tw, "Strategy:\t%s\n", job.Strategy)
	fmt.Fprintf(tw, "Symbol:\t%s (%s)\n", job.Symbol, job.Interval)
	fmt.Fprintf(tw, "Period:\t%s to %s\n", job.Start.Format(time.DateOnly), job.End.Format(time.DateOnly))
	if res.Run != nil {
		c := res.Run.Counters
		fmt.Fprintf(tw, "Run:\t%s\n", res.Run.ID)
		fmt.Fprintf(tw, "Bars:\t%d\n", c.Bars)
		fmt.Fprintf(tw, "Signals:\t%d (%d unmatched)\n", c.Signals, c.UnmatchedSignals)
		fmt.Fprintf(tw, "Fills:\t%d buys, %d sells\n", c.Buys, c.Sells)
		fmt.Fprintf(tw, "Rejected:\t%d\n", c.Rejected)
		fmt.Fprintf(tw, "Halts:\t%d (%d suppressed)\n", c.Halts, c.Suppressed)
		if c.ComputationErrors > 0 {
			fmt.Fprintf(tw, "Bad bars:\t%d\n", c.ComputationErrors)
		}
	}
	if n := len(res.Analysis.Equity); n > 0 {
		fmt.Fprintf(tw, "Final equity:\t%.2f\n", res.Analysis.Equity[n-1].Value)
	}
	writeMetrics(tw, m)
	return tw.Flush()
}

// WriteMetricsTable prints the metrics alone
func WriteMetricsTable(w io.Writer, m backtest.Metrics) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	writeMetrics(tw, m)
	return tw.Flush()
}

func writeMetrics(w io.Writer, m backtest.Metrics) {
	fmt.Fprintf(w, "Total return:\t%.2f%%\n", m.TotalReturn*100)
	fmt.Fprintf(w, "Annualized return:\t%.2f%%\n", m.AnnualizedReturn*100)
	fmt.Fprintf(w, "Max drawdown:\t%.2f%%\n", m.MaxDrawdown*100)
	fmt.Fprintf(w, "Annualized volatility:\t%.2f%%\n", m.AnnualizedVolatility*100)
	fmt.Fprintf(w, "Sharpe ratio:\t%.2f\n", m.Sharpe)
	fmt.Fprintf(w, "Sortino ratio:\t%.2f\n", m.Sortino)
	fmt.Fprintf(w, "Calmar ratio:\t%.2f\n", m.Calmar)
	fmt.Fprintf(w, "Trades:\t%d\n", m.NumTrades)
}
