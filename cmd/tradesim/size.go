package main

import (
	"fmt"
	"math"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/newthinker/tradesim/internal/risk"
)

var (
	sizeSymbol string
	sizePrice  float64
	sizeStop   float64
	sizeValue  float64
	sizeCash   float64
)

var sizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Compute a risk-based position size",
	Long: `Compute how many units to buy so that a stop-out loses at most the
configured fraction of portfolio value, capped by cash and position exposure.`,
	RunE: runSize,
}

func init() {
	sizeCmd.Flags().StringVar(&sizeSymbol, "symbol", "", "Symbol, for logging only")
	sizeCmd.Flags().Float64Var(&sizePrice, "price", 0, "Entry price (required)")
	sizeCmd.Flags().Float64Var(&sizeStop, "stop", 0, "Stop-loss price (required)")
	sizeCmd.Flags().Float64Var(&sizeValue, "value", 0, "Portfolio value (required)")
	sizeCmd.Flags().Float64Var(&sizeCash, "cash", 0, "Available cash (defaults to --value)")

	sizeCmd.MarkFlagRequired("price")
	sizeCmd.MarkFlagRequired("stop")
	sizeCmd.MarkFlagRequired("value")

	rootCmd.AddCommand(sizeCmd)
}

func runSize(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	cash := sizeCash
	if !cmd.Flags().Changed("cash") {
		cash = sizeValue
	}

	sizer := risk.RiskBasedSizer{Limits: cfg.Limits(), Logger: log}
	qty := sizer.Size(risk.SizeRequest{
		Symbol:         sizeSymbol,
		Price:          sizePrice,
		StopLoss:       sizeStop,
		PortfolioValue: sizeValue,
		Cash:           cash,
	})

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Quantity:\t%.6f\n", qty)
	fmt.Fprintf(w, "Position value:\t%.2f\n", qty*sizePrice)
	fmt.Fprintf(w, "Risk at stop:\t%.2f\n", qty*math.Abs(sizePrice-sizeStop))
	return w.Flush()
}
