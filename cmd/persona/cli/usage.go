package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var usageSession string

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Print token usage totals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		sum, err := a.db.UsageSummary(cmd.Context(), usageSession)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Turns: %d\n", sum.Turns)
		fmt.Fprintf(out, "Input Tokens: %d, Retrieved Tokens: %d, Full Output Tokens: %d, Total Tokens: %d\n",
			sum.InputTokens, sum.RetrievedTokens, sum.OutputTokens, sum.Total())
		fmt.Fprintf(out, "Log: %s\n", a.cfg.UsageLogPath())
		return nil
	},
}

func init() {
	usageCmd.Flags().StringVar(&usageSession, "session", "", "Limit totals to one session id")
	RootCmd.AddCommand(usageCmd)
}
