package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/newthinker/tradesim/internal/app"
	"github.com/newthinker/tradesim/internal/broker"
	"github.com/newthinker/tradesim/internal/collector/csvfile"
	"github.com/newthinker/tradesim/internal/notifier"
)

var (
	gateCash     float64
	gateStopLoss float64
)

var gateCmd = &cobra.Command{
	Use:   "gate <signals.csv>",
	Short: "Run signals through the live risk gate against an offline account",
	Long: `Evaluate each signal the way live trading would: check the drawdown circuit
breaker on account equity, then size buys by risk with a stop below the signal
price. Approved orders are booked on the offline account so later signals see
their effect. No orders are sent anywhere; placed orders and halts are
reported to the configured alert channels.`,
	Args: cobra.ExactArgs(1),
	RunE: runGate,
}

func init() {
	gateCmd.Flags().Float64Var(&gateCash, "cash", 0, "Starting cash (defaults to simulator.initial_capital)")
	gateCmd.Flags().Float64Var(&gateStopLoss, "stop-loss-pct", broker.DefaultStopLossPct, "Stop distance for signals without a stop")
	rootCmd.AddCommand(gateCmd)
}

func runGate(cmd *cobra.Command, args []string) error {
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

	notifiers, err := app.NewNotifiers(cfg.Alerts)
	if err != nil {
		return err
	}

	cash := gateCash
	if !cmd.Flags().Changed("cash") {
		cash = cfg.Simulator.InitialCapital
	}
	account := broker.NewStaticAccount(cash)
	gate := broker.NewRiskGate(cfg.Limits(), account, log)
	gate.SetStopLossPct(gateStopLoss)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSYMBOL\tSIGNAL\tDECISION\tQUANTITY\tDETAIL")
	var alerts []notifier.Alert
	for _, sig := range signals {
		d, err := gate.Evaluate(cmd.Context(), sig)
		if err != nil {
			return err
		}
		if alert, ok := d.Alert(sig); ok {
			alerts = append(alerts, alert)
		}
		if !d.Allowed {
			fmt.Fprintf(w, "%s\t%s\t%s\tSKIP\t-\t%s\n", csvfile.FormatTime(sig.Time), sig.Symbol, sig.Side, d.Reason)
			continue
		}
		account.Apply(*d.Order)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.0f\tstop %.2f\n",
			csvfile.FormatTime(sig.Time), sig.Symbol, sig.Side, d.Order.Side, d.Order.Quantity, d.Order.StopLoss)
	}

	balance, err := account.GetBalance(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Cash:\t%.2f\n", balance.Cash)
	fmt.Fprintf(w, "Equity:\t%.2f\n", balance.Equity)
	if err := w.Flush(); err != nil {
		return err
	}

	app.Notify(cmd.Context(), notifiers, alerts, log)
	return nil
}
