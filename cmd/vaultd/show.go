package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:     "show <session-id>",
	Short:   "Show a session, its grant, and its mirror",
	GroupID: "sessions",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		mirrorOnly, _ := cmd.Flags().GetBool("mirror")
		grantOnly, _ := cmd.Flags().GetBool("grant")

		ctx := context.Background()

		if mirrorOnly {
			m, err := vaultClient.GetMirror(ctx, id)
			if err != nil {
				return fmt.Errorf("getting mirror: %w", err)
			}
			if jsonOutput {
				printJSON(m)
			} else {
				printMirrorTable(m)
			}
			return nil
		}

		if grantOnly {
			g, err := vaultClient.GetGrant(ctx, id)
			if err != nil {
				return fmt.Errorf("getting grant: %w", err)
			}
			if jsonOutput {
				printJSON(g)
			} else {
				printGrantTable(g)
			}
			return nil
		}

		session, err := vaultClient.GetSession(ctx, id)
		if err != nil {
			return fmt.Errorf("getting session: %w", err)
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
	showCmd.Flags().Bool("mirror", false, "show the projection mirror instead")
	showCmd.Flags().Bool("grant", false, "show the delegation grant instead")
}
