package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var faucetCmd = &cobra.Command{
	Use:     "faucet <wallet> <amount>",
	Short:   "Credit a wallet from the dev faucet (server must enable it)",
	GroupID: "funds",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q", args[1])
		}

		account, err := vaultClient.Faucet(context.Background(), args[0], amount)
		if err != nil {
			return fmt.Errorf("faucet: %w", err)
		}

		if jsonOutput {
			printJSON(account)
		} else {
			printAccountTable(account)
		}
		return nil
	},
}
