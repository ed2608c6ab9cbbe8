package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var entriesCmd = &cobra.Command{
	Use:     "entries <session-id>",
	Short:   "Show the ledger entries for a session",
	GroupID: "funds",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := vaultClient.ListEntries(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("listing entries: %w", err)
		}

		if jsonOutput {
			printJSON(entries)
		} else {
			printEntriesTable(entries)
		}
		return nil
	},
}
