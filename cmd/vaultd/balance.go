package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var balanceCmd = &cobra.Command{
	Use:     "balance <wallet>",
	Short:   "Show a wallet balance",
	GroupID: "funds",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		account, err := vaultClient.GetAccount(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("getting account: %w", err)
		}

		if jsonOutput {
			printJSON(account)
		} else {
			printAccountTable(account)
		}
		return nil
	},
}
