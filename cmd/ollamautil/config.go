package main

import (
	"fmt"
	"os"

	"github.com/sealad886/ollamautil/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change ollamautil settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active configuration",
	Long: `Print the merged configuration: defaults, then the config file, then
OLLAMAUTIL_* environment variables.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one configuration value and save the config file",
	Long: `Set a configuration value. Known keys:

  primary.root     root directory of the primary cache
  secondary.root   root directory of the secondary cache
  pointer.link     path of the cache pointer symlink
  registry.host    model registry host
  daemon.url       Ollama daemon address
  log.format       text or json
  log.level        debug, info, warn, or error

Examples:
  ollamautil config set primary.root ~/.ollama/internal
  ollamautil config set secondary.root /Volumes/External/ollama`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	path, err := config.Path()
	if err == nil {
		fmt.Printf("# %s\n", path)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	os.Stdout.Write(data)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	switch key {
	case "primary.root":
		cfg.Primary.Root = config.ExpandHome(value)
	case "secondary.root":
		cfg.Secondary.Root = config.ExpandHome(value)
	case "pointer.link":
		cfg.Pointer.Link = config.ExpandHome(value)
	case "registry.host":
		cfg.Registry.Host = value
	case "daemon.url":
		cfg.Daemon.URL = value
	case "log.format":
		cfg.Log.Format = value
	case "log.level":
		cfg.Log.Level = value
	default:
		return fmt.Errorf("unknown config key %q, see 'ollamautil config set --help'", key)
	}

	if err := config.Save(cfg); err != nil {
		return err
	}

	path, _ := config.Path()
	fmt.Printf("Saved %s.\n", path)
	return nil
}
