package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/sealad886/ollamautil/internal/cache"
	"github.com/sealad886/ollamautil/internal/pointer"
	"github.com/sealad886/ollamautil/internal/utils"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show where the cache pointer targets and how full each location is",
	Long: `Show the cache pointer target, per-location disk usage and model
counts, and whether the Ollama daemon is reachable.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	return statusFlow(a)
}

func statusFlow(a *app) error {
	if err := a.requireRoots(); err != nil {
		return err
	}

	current, err := a.ptr.Current()
	switch {
	case err == nil:
		fmt.Printf("Cache pointer: %s -> %s (%s)\n", formatPath(a.cfg.Pointer.Link), formatPath(current.Root), current.ID)
	case errors.Is(err, pointer.ErrUnknownCacheTarget):
		fmt.Printf("Cache pointer: %s -> (not one of the configured caches)\n", formatPath(a.cfg.Pointer.Link))
	default:
		fmt.Printf("Cache pointer: %s (unreadable: %v)\n", formatPath(a.cfg.Pointer.Link), err)
	}
	fmt.Println()

	inv, err := a.cache.BuildInventory()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LOCATION\tROOT\tMODELS\tUSED")
	for _, loc := range a.cache.Locations() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", loc.ID, formatPath(loc.Root), describeCount(inv, loc), describeUsage(loc))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if v, err := a.daemon().Version(ctx); err == nil {
		fmt.Printf("Ollama daemon: running (version %s) at %s\n", v, a.cfg.Daemon.URL)
	} else {
		fmt.Printf("Ollama daemon: not reachable at %s\n", a.cfg.Daemon.URL)
	}
	return nil
}

func describeCount(inv *cache.Inventory, loc cache.Location) string {
	if !loc.Available() {
		return "-"
	}
	return fmt.Sprintf("%d", len(inv.At(loc.ID)))
}

func describeUsage(loc cache.Location) string {
	if !loc.Available() {
		return "unavailable"
	}
	size, err := loc.Size()
	if err != nil {
		return "?"
	}
	return utils.FormatBytes(size)
}
