package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/newthinker/tradesim/internal/app"
	"github.com/newthinker/tradesim/internal/report"
	"github.com/newthinker/tradesim/internal/storage/runstore"
)

var (
	runsStrategy string
	runsSymbol   string
	runsLimit    int
	runsHistory  string
)

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List stored backtest runs or export one run's history",
	Long: `List runs kept in the Postgres run store (output.postgres.dsn), newest
first. With a run ID, print its metrics and optionally export its history CSV.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().StringVar(&runsStrategy, "strategy", "", "Filter by strategy")
	runsCmd.Flags().StringVar(&runsSymbol, "symbol", "", "Filter by symbol")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum runs to list")
	runsCmd.Flags().StringVar(&runsHistory, "history", "", "Write the run's history CSV to this file")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()
	if cfg.Output.Postgres.DSN == "" {
		return fmt.Errorf("runs requires output.postgres.dsn")
	}

	a, err := app.New(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	store := a.Runs()

	if len(args) == 1 {
		return showRun(cmd, store, args[0])
	}

	runs, err := store.List(cmd.Context(), runstore.ListFilter{
		Strategy: runsStrategy,
		Symbol:   runsSymbol,
		Limit:    runsLimit,
	})
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tCREATED\tSTRATEGY\tSYMBOL\tINTERVAL\tRETURN\tMAX DD\tTRADES")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.2f%%\t%.2f%%\t%d\n",
			r.ID, r.CreatedAt.Format(time.DateTime), r.Job.Strategy, r.Job.Symbol, r.Job.Interval,
			r.Metrics.TotalReturn*100, r.Metrics.MaxDrawdown*100, r.Metrics.NumTrades)
	}
	return w.Flush()
}

func showRun(cmd *cobra.Command, store runstore.Store, id string) error {
	sum, err := store.Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s: %s on %s (%s), saved %s\n",
		sum.ID, sum.Job.Strategy, sum.Job.Symbol, sum.Job.Interval, sum.CreatedAt.Format(time.DateTime))
	if err := report.WriteMetricsTable(out, sum.Metrics); err != nil {
		return err
	}

	if runsHistory == "" {
		return nil
	}
	records, err := store.History(cmd.Context(), id)
	if err != nil {
		return err
	}
	f, err := os.Create(runsHistory)
	if err != nil {
		return fmt.Errorf("creating history file: %w", err)
	}
	if err := report.WriteHistory(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
