package main

import (
	"context"
	"fmt"

	"github.com/oakmere/vaultd/internal/client"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List sessions",
	GroupID: "sessions",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		agent, _ := cmd.Flags().GetString("agent")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		all, _ := cmd.Flags().GetBool("all")

		req := &client.ListSessionsRequest{
			Owner:  owner,
			Agent:  agent,
			Limit:  limit,
			Offset: offset,
		}
		if !all {
			active := true
			req.Active = &active
		}

		resp, err := vaultClient.ListSessions(context.Background(), req)
		if err != nil {
			return fmt.Errorf("listing sessions: %w", err)
		}

		if jsonOutput {
			printJSON(resp)
		} else {
			printSessionListTable(resp.Sessions, resp.Total)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().String("owner", "", "filter by owner wallet")
	listCmd.Flags().String("agent", "", "filter by agent wallet")
	listCmd.Flags().Int("limit", 50, "maximum sessions to return")
	listCmd.Flags().Int("offset", 0, "offset for paging")
	listCmd.Flags().Bool("all", false, "include inactive sessions")
}
