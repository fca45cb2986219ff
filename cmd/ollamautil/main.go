package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is set via ldflags at build time
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "ollamautil",
	Short: "Manage an Ollama model cache split across two drives",
	Long: `ollamautil manages an Ollama model cache kept in two locations, typically
an internal drive and an external one, and the ~/.ollama/models symlink
that selects which of the two the Ollama daemon sees.

Run without arguments for the interactive menu.`,
	Example: `  # See every cached model and where it lives
  ollamautil list

  # Copy models from the active cache to the other one, then switch
  ollamautil migrate --all
  ollamautil toggle

  # Re-download anything missing or corrupt from the registry
  ollamautil repair`,
	Args: cobra.NoArgs,
	RunE: runMenu,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "cache", Title: "Cache Commands:"},
		&cobra.Group{ID: "daemon", Title: "Daemon Commands:"},
		&cobra.Group{ID: "registry", Title: "Registry Commands:"},
	)

	listCmd.GroupID = "cache"
	statusCmd.GroupID = "cache"
	migrateCmd.GroupID = "cache"
	toggleCmd.GroupID = "cache"

	pullCmd.GroupID = "daemon"
	pushCmd.GroupID = "daemon"
	removeCmd.GroupID = "daemon"

	repairCmd.GroupID = "registry"
	loginCmd.GroupID = "registry"

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(toggleCmd)
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
