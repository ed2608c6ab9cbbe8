package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var delegateCmd = &cobra.Command{
	Use:     "delegate <session-id> <delegate>",
	Short:   "Approve the session's agent as spending delegate",
	GroupID: "sessions",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		grant, err := vaultClient.ApproveDelegate(context.Background(), args[0], callerFlag, args[1])
		if err != nil {
			return fmt.Errorf("approving delegate: %w", err)
		}

		if jsonOutput {
			printJSON(grant)
		} else {
			printGrantTable(grant)
		}
		return nil
	},
}
