package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var depositCmd = &cobra.Command{
	Use:     "deposit <session-id> <amount>",
	Short:   "Deposit funds into a session pool",
	GroupID: "funds",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q", args[1])
		}

		session, err := vaultClient.Deposit(context.Background(), args[0], callerFlag, amount)
		if err != nil {
			return fmt.Errorf("depositing: %w", err)
		}

		if jsonOutput {
			printJSON(session)
		} else {
			printSessionTable(session)
		}
		return nil
	},
}
