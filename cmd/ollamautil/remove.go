package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sealad886/ollamautil/internal/cache"
	"github.com/sealad886/ollamautil/internal/ollama"
	"github.com/spf13/cobra"
)

var (
	removeLocation string
	removeYes      bool
)

var removeCmd = &cobra.Command{
	Use:     "remove [model...]",
	Aliases: []string{"rm"},
	Short:   "Delete models from the cache via the Ollama daemon",
	Long: `Delete models through the daemon's delete API so shared blobs are
reference-counted correctly. For each location being cleaned, the cache
pointer is temporarily switched there and restored afterwards, whatever
happens in between.

Without arguments, models are picked interactively.

Examples:
  ollamautil remove gemma2:latest
  ollamautil remove user/custom --location secondary
  ollamautil remove`,
	RunE: runRemove,
}

func init() {
	removeCmd.Flags().StringVar(&removeLocation, "location", "both", "Where to remove from: primary, secondary, or both")
	removeCmd.Flags().BoolVarP(&removeYes, "yes", "y", false, "Skip the confirmation prompt")
}

func runRemove(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	return removeFlow(a, args, removeLocation, removeYes)
}

func removeFlow(a *app, args []string, locFlag string, yes bool) error {
	if err := a.requireRoots(); err != nil {
		return err
	}

	inv, err := a.cache.BuildInventory()
	if err != nil {
		return err
	}
	refs, err := resolveRefs(args, inv.Refs())
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		fmt.Println("Nothing selected.")
		return nil
	}

	var locs []cache.Location
	switch strings.ToLower(locFlag) {
	case "", "both":
		locs = a.cache.Locations()
	default:
		loc, err := a.location(locFlag)
		if err != nil {
			return err
		}
		locs = []cache.Location{loc}
	}

	present := make(map[cache.Ref]cache.Entry, len(inv.Entries))
	for _, e := range inv.Entries {
		present[e.Ref] = e
	}

	fmt.Println("This will permanently delete:")
	for _, ref := range refs {
		fmt.Printf("  %s\n", ref)
	}
	if !yes && !confirm("Continue?") {
		fmt.Println("Aborted.")
		return nil
	}

	client := a.daemon()
	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := client.Version(pingCtx); err != nil {
		return fmt.Errorf("removing models requires the Ollama daemon at %s: %w", a.cfg.Daemon.URL, err)
	}

	ctx := context.Background()
	for _, loc := range locs {
		if !loc.Available() {
			fmt.Fprintf(os.Stderr, "Skipping the %s cache: unavailable\n", loc.ID)
			continue
		}

		var removed int
		err := a.ptr.WithTemporaryTarget(loc, func() error {
			for _, ref := range refs {
				if entry, ok := present[ref]; !ok || !entry.In(loc.ID) {
					continue
				}
				if err := client.Delete(ctx, ref.String()); err != nil {
					if ollama.IsNotFound(err) {
						continue
					}
					fmt.Fprintf(os.Stderr, "Error removing %s: %v\n", ref, err)
					continue
				}
				removed++
			}
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d model(s) from the %s cache.\n", removed, loc.ID)
	}
	return nil
}
