package main

import (
	"fmt"
	"os"

	"github.com/sealad886/ollamautil/internal/registry"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	loginKey   string
	loginClear bool
)

var loginCmd = &cobra.Command{
	Use:   "login [registry-host]",
	Short: "Store an API key for the model registry",
	Long: `Store an API key for the registry host (the configured one by
default). The key goes into the OS keyring when available, otherwise
into an encrypted file under the config directory. It is only needed
for repairing models that live under a private namespace.

Examples:
  ollamautil login
  ollamautil login registry.ollama.ai --key <api-key>
  ollamautil login --clear`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&loginKey, "key", "", "API key (skip the interactive prompt)")
	loginCmd.Flags().BoolVar(&loginClear, "clear", false, "Remove the stored API key instead")
}

func runLogin(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	host := a.cfg.Registry.Host
	if len(args) == 1 {
		host = args[0]
	}

	if loginClear {
		if err := registry.DeleteAPIKey(host); err != nil {
			return err
		}
		fmt.Printf("Removed stored API key for %s.\n", host)
		return nil
	}

	key := loginKey
	if key == "" {
		fmt.Printf("API key for %s: ", host)
		keyBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("reading API key: %w", err)
		}
		key = string(keyBytes)
	}
	if key == "" {
		return fmt.Errorf("no API key given")
	}

	if err := registry.StoreAPIKey(host, key); err != nil {
		return err
	}
	fmt.Printf("Stored API key for %s.\n", host)
	return nil
}
