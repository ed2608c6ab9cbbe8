package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var revokeCmd = &cobra.Command{
	Use:     "revoke <session-id>",
	Short:   "Revoke a session and refund the pool above the reserve",
	GroupID: "sessions",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := vaultClient.Revoke(context.Background(), args[0], callerFlag)
		if err != nil {
			return fmt.Errorf("revoking: %w", err)
		}

		if jsonOutput {
			printJSON(resp)
			return nil
		}
		printSessionTable(resp.Session)
		fmt.Printf("Refund:          %d\n", resp.Refund)
		return nil
	},
}
