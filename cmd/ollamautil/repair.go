package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/sealad886/ollamautil/internal/cache"
	"github.com/sealad886/ollamautil/internal/registry"
	"github.com/spf13/cobra"
)

var (
	repairLocation     string
	repairOnCorruption string
	repairLimit        int
)

var repairCmd = &cobra.Command{
	Use:   "repair [model...]",
	Short: "Re-download missing or corrupt files from the registry",
	Long: `Verify every file of the given models (all models at the location by
default) against the digests in their manifests, and re-download
whatever is missing or does not hash to its expected digest. A manifest
that is itself missing or unparseable is re-fetched from the registry.

Corrupt files are quarantined with a _corrupted suffix before their
replacements are downloaded; use --on-corruption=discard to delete them
instead.

Examples:
  ollamautil repair
  ollamautil repair gemma2:latest --location secondary
  ollamautil repair --limit 8`,
	RunE: runRepair,
}

func init() {
	repairCmd.Flags().StringVar(&repairLocation, "location", "", "Location to repair, primary or secondary (default: where the cache pointer targets)")
	repairCmd.Flags().StringVar(&repairOnCorruption, "on-corruption", "keep", "What to do with a file that fails verification: ask, keep, or discard")
	repairCmd.Flags().IntVar(&repairLimit, "limit", 0, "Concurrent blob downloads (default 4)")
}

func runRepair(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	return repairFlow(a, args, repairLocation, repairOnCorruption, repairLimit)
}

func repairFlow(a *app, args []string, locFlag, onCorruption string, limit int) error {
	if err := a.requireRoots(); err != nil {
		return err
	}

	var loc cache.Location
	if locFlag == "" {
		cur, err := a.currentLocation()
		if err != nil {
			return fmt.Errorf("cannot infer the location to repair, pass --location: %w", err)
		}
		loc = cur
	} else {
		l, err := a.location(locFlag)
		if err != nil {
			return err
		}
		loc = l
	}
	if !loc.Available() {
		return fmt.Errorf("%s cache: %w: %s", loc.ID, cache.ErrLocationUnavailable, loc.Root)
	}

	inv, err := a.cache.BuildInventory()
	if err != nil {
		return err
	}

	var refs []cache.Ref
	if len(args) == 0 {
		refs = inv.At(loc.ID)
	} else {
		for _, arg := range args {
			ref, err := cache.ParseRef(arg)
			if err != nil {
				return err
			}
			refs = append(refs, ref)
		}
	}
	if len(refs) == 0 {
		fmt.Printf("No models at the %s cache.\n", loc.ID)
		return nil
	}

	handler, err := corruptionHandler(onCorruption)
	if err != nil {
		return err
	}

	key, err := registry.LoadAPIKey(a.cache.Registry)
	if err != nil && !errors.Is(err, registry.ErrNoCredential) {
		fmt.Fprintf(os.Stderr, "Warning: could not load registry credentials: %v\n", err)
	}

	repairer, err := registry.NewRepairer(a.cache, registry.NewRemote(a.cache.Registry, key), handler)
	if err != nil {
		return err
	}
	repairer.FetchLimit = limit

	fmt.Printf("Checking %d model(s) at the %s cache against %s...\n\n", len(refs), loc.ID, a.cache.Registry)

	ctx := context.Background()
	var intact, fetched, failed, refsFailed int
	for _, ref := range refs {
		rep, err := repairer.Repair(ctx, loc, ref)
		intact += rep.Intact
		fetched += rep.Fetched
		failed += rep.Failed

		switch {
		case err != nil:
			refsFailed++
			fmt.Printf("✗ %s: %v\n", ref, err)
		case rep.Failed > 0:
			fmt.Printf("⚠ %s: %d file(s) could not be restored\n", ref, rep.Failed)
		case rep.Fetched > 0 || rep.ManifestFetched:
			detail := fmt.Sprintf("%d blob(s) re-downloaded", rep.Fetched)
			if rep.ManifestFetched {
				detail = "manifest re-downloaded, " + detail
			}
			fmt.Printf("✓ %s: %s\n", ref, detail)
		default:
			fmt.Printf("✓ %s: intact\n", ref)
		}
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Intact\t%d\n", intact)
	fmt.Fprintf(w, "Re-downloaded\t%d\n", fetched)
	if failed > 0 {
		fmt.Fprintf(w, "Unrestored\t%d\n", failed)
	}
	w.Flush()

	if refsFailed > 0 || failed > 0 {
		return errors.New("some repairs failed")
	}
	return nil
}
