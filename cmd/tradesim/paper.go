package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/tradesim/internal/collector/csvfile"
	"github.com/newthinker/tradesim/internal/execution"
	"github.com/newthinker/tradesim/internal/paper"
)

var paperCmd = &cobra.Command{
	Use:   "paper <signals.csv>",
	Short: "Paper trade a signal file at each signal's price",
	Long: `Execute a signal file against a virtual multi-symbol portfolio. Buys spend
risk_per_trade of current cash; a buy that cannot cover its commission is
skipped, as is a sell without a position.`,
	Args: cobra.ExactArgs(1),
	RunE: runPaper,
}

func init() {
	rootCmd.AddCommand(paperCmd)
}

func runPaper(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening signals: %w", err)
	}
	defer f.Close()
	signals, err := csvfile.ParseSignals(f, "")
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	trader, err := paper.New(paper.Config{
		InitialCapital: cfg.Simulator.InitialCapital,
		Costs: execution.Costs{
			Commission: cfg.Simulator.Commission,
			Slippage:   cfg.Simulator.Slippage,
		},
		RiskPerTrade: cfg.Simulator.RiskPerTrade,
	}, log)
	if err != nil {
		return err
	}
	if err := trader.Run(cmd.Context(), signals); err != nil {
		return err
	}
	log.Info("paper trading complete",
		zap.Int("signals", len(signals)),
		zap.Int("trades", len(trader.Trades())),
		zap.Int("skipped", trader.Skipped()),
	)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSYMBOL\tSIDE\tQUANTITY\tPRICE\tCASH")
	for _, t := range trader.Trades() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.4f\t%.2f\t%.2f\n",
			csvfile.FormatTime(t.Time), t.Fill.Symbol, t.Fill.Side, t.Fill.Quantity, t.Fill.Price, t.CashAfter)
	}
	fmt.Fprintln(w)

	status := trader.Status()
	fmt.Fprintf(w, "Cash:\t%.2f\n", status.Cash)
	if len(status.Positions) == 0 {
		fmt.Fprintln(w, "Positions:\tNone")
	}
	for _, p := range status.Positions {
		fmt.Fprintf(w, "  %s\tSize=%.4f\tEntry=%.2f\tValue=%.2f\n", p.Symbol, p.Size, p.AverageEntryPrice, p.Size*p.AverageEntryPrice)
	}
	fmt.Fprintf(w, "Total equity:\t%.2f\n", status.Equity)
	fmt.Fprintf(w, "Skipped signals:\t%d\n", trader.Skipped())
	return w.Flush()
}
