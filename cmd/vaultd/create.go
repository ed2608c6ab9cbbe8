package main

import (
	"context"
	"fmt"

	"github.com/oakmere/vaultd/internal/client"
	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:     "create <agent>",
	Short:   "Open a custody session delegating to an agent",
	GroupID: "sessions",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agent := args[0]
		durationStr, _ := cmd.Flags().GetString("duration")
		maxDeposit, _ := cmd.Flags().GetUint64("max-deposit")

		duration, err := parseDurationArg(durationStr)
		if err != nil {
			return err
		}

		session, err := vaultClient.CreateSession(context.Background(), &client.CreateSessionRequest{
			Owner:           callerFlag,
			Agent:           agent,
			DurationSeconds: int64(duration.Seconds()),
			MaxDeposit:      maxDeposit,
		})
		if err != nil {
			return fmt.Errorf("creating session: %w", err)
		}

		if jsonOutput {
			printJSON(session)
		} else {
			printSessionTable(session)
		}
		return nil
	},
}

func init() {
	createCmd.Flags().StringP("duration", "d", "24h", "session window (e.g. 30m, 24h)")
	createCmd.Flags().Uint64P("max-deposit", "m", 0, "deposit ceiling in base units")
	_ = createCmd.MarkFlagRequired("max-deposit")
}
