package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/newthinker/tradesim/internal/backtest"
	"github.com/newthinker/tradesim/internal/report"
)

var (
	analyzeSeries string
	analyzeJSON   bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <history.csv>",
	Short: "Recompute performance metrics from a saved history",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeSeries, "series", "", "Write equity, drawdown and benchmark series to this CSV file")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print metrics as JSON")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer f.Close()

	records, err := report.ReadHistory(f)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	analysis := backtest.Analyze(records)

	if analyzeSeries != "" {
		sf, err := os.Create(analyzeSeries)
		if err != nil {
			return fmt.Errorf("creating series file: %w", err)
		}
		if err := report.WriteSeries(sf, analysis); err != nil {
			sf.Close()
			return fmt.Errorf("writing series: %w", err)
		}
		if err := sf.Close(); err != nil {
			return err
		}
	}

	if analyzeJSON {
		return report.WriteMetrics(cmd.OutOrStdout(), analysis.Metrics)
	}
	return report.WriteMetricsTable(cmd.OutOrStdout(), analysis.Metrics)
}
