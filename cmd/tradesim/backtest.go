package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/tradesim/internal/app"
	"github.com/newthinker/tradesim/internal/backtest"
	"github.com/newthinker/tradesim/internal/report"
)

var (
	backtestStrategies string
	backtestSymbols    string
	backtestFrom       string
	backtestTo         string
	backtestInterval   string
	backtestSource     string
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run backtests on one or more strategies and symbols",
	Long: `Run every strategy against every symbol over historical data. Jobs run in
parallel; results are written to the output storage and the run store, and a
summary of each run is printed.`,
	RunE: runBacktest,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestStrategies, "strategy", "", "Comma-separated strategy names (required)")
	backtestCmd.Flags().StringVar(&backtestSymbols, "symbol", "", "Comma-separated symbols (required)")
	backtestCmd.Flags().StringVar(&backtestFrom, "from", "", "Start date YYYY-MM-DD")
	backtestCmd.Flags().StringVar(&backtestTo, "to", "", "End date YYYY-MM-DD")
	backtestCmd.Flags().StringVar(&backtestInterval, "interval", "", "Bar interval (default from config)")
	backtestCmd.Flags().StringVar(&backtestSource, "source", "", "Data source: csv, yahoo or binance (default from config)")

	backtestCmd.MarkFlagRequired("strategy")
	backtestCmd.MarkFlagRequired("symbol")

	rootCmd.AddCommand(backtestCmd)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func runBacktest(cmd *cobra.Command, args []string) error {
	from, err := parseDate("from", backtestFrom)
	if err != nil {
		return err
	}
	to, err := parseDate("to", backtestTo)
	if err != nil {
		return err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return fmt.Errorf("end date must be after start date")
	}

	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	interval := backtestInterval
	if interval == "" {
		interval = cfg.Data.Interval
	}
	source := backtestSource
	if source == "" {
		source = cfg.Data.Source
	}

	a, err := app.New(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	var jobs []backtest.Job
	for _, strategy := range splitList(backtestStrategies) {
		for _, symbol := range splitList(backtestSymbols) {
			jobs = append(jobs, backtest.Job{
				Strategy: strategy,
				Symbol:   symbol,
				Interval: interval,
				Start:    from,
				End:      to,
			})
		}
	}

	results, err := a.RunBacktests(cmd.Context(), source, jobs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	failed := 0
	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(out)
		}
		if r.Err != nil {
			failed++
			fmt.Fprintf(out, "%s %s: FAILED: %v\n", r.Job.Strategy, r.Job.Symbol, r.Err)
			continue
		}
		if err := report.WriteSummary(out, r.Result); err != nil {
			return err
		}
	}
	if failed > 0 {
		log.Warn("some backtests failed", zap.Int("failed", failed), zap.Int("total", len(results)))
		return fmt.Errorf("%d of %d backtests failed", failed, len(results))
	}
	return nil
}
