package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/newthinker/tradesim/internal/app"
)

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List available strategies and data sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		a, err := app.New(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "STRATEGY\tDESCRIPTION")
		for _, name := range a.Strategies().Names() {
			s, _ := a.Strategies().Get(name)
			fmt.Fprintf(w, "%s\t%s\n", name, s.Description())
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Sources:\t%v\n", a.Sources().Names())
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
}
