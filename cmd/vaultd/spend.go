package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var spendCmd = &cobra.Command{
	Use:     "spend <session-id> <amount>",
	Short:   "Draw delegated funds from a session pool",
	GroupID: "funds",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q", args[1])
		}

		session, err := vaultClient.Spend(context.Background(), args[0], callerFlag, amount)
		if err != nil {
			return fmt.Errorf("spending: %w", err)
		}

		if jsonOutput {
			printJSON(session)
		} else {
			printSessionTable(session)
		}
		return nil
	},
}
