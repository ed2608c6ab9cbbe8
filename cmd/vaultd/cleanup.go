package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:     "cleanup <session-id>",
	Short:   "Reclaim an expired session and earn the cleanup reward",
	GroupID: "sessions",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := vaultClient.Cleanup(context.Background(), args[0], callerFlag)
		if err != nil {
			return fmt.Errorf("cleaning up: %w", err)
		}

		if jsonOutput {
			printJSON(resp)
			return nil
		}
		fmt.Printf("Reward: %d\n", resp.Reward)
		fmt.Printf("Refund: %d\n", resp.Refund)
		return nil
	},
}
