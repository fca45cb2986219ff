package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/sealad886/ollamautil/internal/cache"
	"github.com/spf13/cobra"
)

var pushCmd = &cobra.Command{
	Use:   "push <model>...",
	Short: "Upload models to the registry through the Ollama daemon",
	Long: `Ask the Ollama daemon to upload one or more models to its registry.
Models must live under a personal namespace: push user/mymodel:latest,
not mymodel:latest. Copy a model to your namespace first with
'ollama cp mymodel user/mymodel'.

Examples:
  ollamautil push user/custom:latest`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPush,
}

func runPush(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	return pushFlow(a, args)
}

func pushFlow(a *app, names []string) error {
	client := a.daemon()
	ctx := context.Background()

	var failed []string
	for _, name := range names {
		ref, err := cache.ParseRef(name)
		if err != nil {
			fmt.Printf("✗ %s: %v\n", name, err)
			failed = append(failed, name)
			continue
		}
		if ref.Namespace == cache.DefaultNamespace {
			fmt.Printf("✗ %s: pushing requires a personal namespace, e.g. user/%s\n", name, ref.Name)
			failed = append(failed, name)
			continue
		}

		fmt.Printf("Pushing %s...\n", name)
		if err := client.Push(ctx, name, daemonProgress()); err != nil {
			fmt.Println()
			fmt.Printf("✗ %s: %v\n", name, err)
			failed = append(failed, name)
			continue
		}
		fmt.Println()
		fmt.Printf("✓ %s\n", name)
	}

	if len(failed) > 0 {
		return errors.New("some pushes failed")
	}
	return nil
}
