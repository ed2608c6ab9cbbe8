package main

import (
	"os"

	"github.com/oakmere/vaultd/internal/client"
	"github.com/oakmere/vaultd/internal/ui"
	"github.com/spf13/cobra"
)

var (
	httpURL    string
	authToken  string
	jsonOutput bool
	callerFlag string

	vaultClient client.VaultClient
)

func defaultHTTPURL() string {
	if s := os.Getenv("VAULTD_HTTP_URL"); s != "" {
		return s
	}
	if u := activeRemoteURL(); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func defaultToken() string {
	if t := os.Getenv("VAULTD_TOKEN"); t != "" {
		return t
	}
	return activeRemoteToken()
}

var rootCmd = &cobra.Command{
	Use:   "vaultd <command>",
	Short: "Delegated-custody session vault",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		vaultClient = client.NewHTTPClient(httpURL, authToken)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if vaultClient != nil {
			vaultClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "server URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", defaultToken(), "bearer token for authentication")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringVar(&callerFlag, "caller", os.Getenv("VAULTD_WALLET"), "acting wallet (ignored when the token carries one)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "sessions", Title: "Sessions:"},
		&cobra.Group{ID: "funds", Title: "Funds:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false

	if !ui.ShouldUseColor() {
		ui.ForceNoColor()
	}

	// Sessions
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(delegateCmd)
	rootCmd.AddCommand(revokeCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(watchCmd)

	// Funds
	rootCmd.AddCommand(depositCmd)
	rootCmd.AddCommand(spendCmd)
	rootCmd.AddCommand(entriesCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(faucetCmd)
	rootCmd.AddCommand(estimateCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
