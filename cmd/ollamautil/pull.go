package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/sealad886/ollamautil/internal/cache"
	"github.com/spf13/cobra"
)

var pullCmd = &cobra.Command{
	Use:   "pull <model>...",
	Short: "Download models through the Ollama daemon",
	Long: `Ask the Ollama daemon to download one or more models. They land in
whichever cache location the pointer currently targets.

Examples:
  ollamautil pull gemma2:latest
  ollamautil pull llama3.2 qwen2.5-coder:7b`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPull,
}

func runPull(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	return pullFlow(a, args)
}

func pullFlow(a *app, names []string) error {
	if loc, err := a.ptr.Current(); err == nil {
		fmt.Printf("Pulling into the %s cache (%s).\n", loc.ID, formatPath(loc.Root))
	}

	client := a.daemon()
	ctx := context.Background()

	var failed []string
	for _, name := range names {
		if _, err := cache.ParseRef(name); err != nil {
			fmt.Printf("✗ %s: %v\n", name, err)
			failed = append(failed, name)
			continue
		}

		fmt.Printf("Pulling %s...\n", name)
		if err := client.Pull(ctx, name, daemonProgress()); err != nil {
			fmt.Println()
			fmt.Printf("✗ %s: %v\n", name, err)
			failed = append(failed, name)
			continue
		}
		fmt.Println()
		fmt.Printf("✓ %s\n", name)
	}

	if len(failed) > 0 {
		return errors.New("some pulls failed")
	}
	return nil
}
