package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var estimateCmd = &cobra.Command{
	Use:     "estimate",
	Short:   "Size a deposit for a number of trades at a priority tier",
	GroupID: "funds",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		trades, _ := cmd.Flags().GetUint64("trades")
		priority, _ := cmd.Flags().GetString("priority")

		est, err := vaultClient.EstimateFees(context.Background(), trades, priority)
		if err != nil {
			return fmt.Errorf("estimating fees: %w", err)
		}

		if jsonOutput {
			printJSON(est)
			return nil
		}
		fmt.Printf("Priority:      %s\n", est.Priority)
		fmt.Printf("Trades:        %d\n", est.Trades)
		fmt.Printf("Fee per trade: %d\n", est.FeePerTrade)
		fmt.Printf("Deposit:       %d\n", est.Deposit)
		return nil
	},
}

func init() {
	estimateCmd.Flags().Uint64("trades", 1, "number of trades to cover")
	estimateCmd.Flags().String("priority", "medium", "fee tier (low, medium, high)")
}
