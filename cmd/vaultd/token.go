package main

import (
	"fmt"
	"os"
	"time"

	"github.com/oakmere/vaultd/internal/server"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:     "token <wallet>",
	Short:   "Mint a bearer token for a wallet",
	GroupID: "system",
	Args:    cobra.ExactArgs(1),
	// Token minting is local; no client connection needed.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, _ := cmd.Flags().GetString("secret")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		if secret == "" {
			secret = os.Getenv("VAULTD_JWT_SECRET")
		}
		if secret == "" {
			return fmt.Errorf("signing secret is required (--secret or VAULTD_JWT_SECRET)")
		}
		if ttl <= 0 {
			return fmt.Errorf("ttl must be positive")
		}

		token, err := server.MintToken(secret, args[0], ttl)
		if err != nil {
			return fmt.Errorf("minting token: %w", err)
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("secret", "", "HS256 signing secret (defaults to VAULTD_JWT_SECRET)")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
}
