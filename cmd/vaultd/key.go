package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/oakmere/vaultd/internal/keycustody"
	"github.com/oakmere/vaultd/internal/ui"
	"github.com/spf13/cobra"
)

var keyCmd = &cobra.Command{
	Use:     "key",
	Short:   "Manage sealed agent signing keys",
	GroupID: "system",
}

var keyIssueCmd = &cobra.Command{
	Use:   "issue [file]",
	Short: "Request a server-custodied agent keypair",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := vaultClient.GenerateAgentKey(context.Background())
		if err != nil {
			return fmt.Errorf("issuing agent key: %w", err)
		}
		if len(args) == 1 {
			if err := writeSealedKey(args[0], resp.SealedKey); err != nil {
				return err
			}
			fmt.Printf("agent: %s\n", resp.Agent)
			fmt.Printf("sealed key written to %s\n", args[0])
			return nil
		}
		printJSON(resp)
		return nil
	},
}

var keyGenerateCmd = &cobra.Command{
	Use:   "generate <file>",
	Short: "Generate an agent keypair and seal it under a passphrase",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := ui.ReadPassphrase("Passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := ui.ReadPassphrase("Confirm passphrase: ")
		if err != nil {
			return err
		}
		if passphrase != confirm {
			return fmt.Errorf("passphrases do not match")
		}

		_, priv, err := keycustody.GenerateAgentKey()
		if err != nil {
			return err
		}
		sealed, err := keycustody.Seal(priv, passphrase)
		if err != nil {
			return err
		}
		if err := writeSealedKey(args[0], sealed); err != nil {
			return err
		}
		fmt.Printf("public key: %s\n", sealed.PublicKey)
		fmt.Printf("sealed key written to %s\n", args[0])
		return nil
	},
}

var keyShowCmd = &cobra.Command{
	Use:   "show <file>",
	Short: "Show the public half of a sealed key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sealed, err := readSealedKey(args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(sealed)
			return nil
		}
		fmt.Printf("public key: %s\n", sealed.PublicKey)
		return nil
	},
}

var keySignCmd = &cobra.Command{
	Use:   "sign <file> <message>",
	Short: "Unseal a key and sign a message",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sealed, err := readSealedKey(args[0])
		if err != nil {
			return err
		}
		passphrase, err := ui.ReadPassphrase("Passphrase: ")
		if err != nil {
			return err
		}
		priv, err := keycustody.Unseal(sealed, passphrase)
		if err != nil {
			return err
		}
		sig := ed25519.Sign(priv, []byte(args[1]))
		fmt.Println(hex.EncodeToString(sig))
		return nil
	},
}

var keyVerifyCmd = &cobra.Command{
	Use:   "verify <file> <message> <signature>",
	Short: "Verify a signature against a sealed key's public half",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		sealed, err := readSealedKey(args[0])
		if err != nil {
			return err
		}
		sig, err := hex.DecodeString(args[2])
		if err != nil {
			return fmt.Errorf("decode signature: %w", err)
		}
		ok, err := keycustody.Verify(sealed.PublicKey, []byte(args[1]), sig)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("signature is invalid")
		}
		fmt.Println("signature is valid")
		return nil
	},
}

func readSealedKey(path string) (*keycustody.SealedKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sealed keycustody.SealedKey
	if err := json.Unmarshal(data, &sealed); err != nil {
		return nil, fmt.Errorf("parsing sealed key: %w", err)
	}
	return &sealed, nil
}

func writeSealedKey(path string, sealed *keycustody.SealedKey) error {
	data, err := json.MarshalIndent(sealed, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

func init() {
	keyCmd.AddCommand(keyIssueCmd)
	keyCmd.AddCommand(keyGenerateCmd)
	keyCmd.AddCommand(keyShowCmd)
	keyCmd.AddCommand(keySignCmd)
	keyCmd.AddCommand(keyVerifyCmd)
}
