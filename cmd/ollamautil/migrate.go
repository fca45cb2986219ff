package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/sealad886/ollamautil/internal/cache"
	"github.com/sealad886/ollamautil/internal/migrate"
	"github.com/sealad886/ollamautil/internal/utils"
	"github.com/spf13/cobra"
)

var (
	migrateFrom         string
	migrateAll          bool
	migrateSelect       string
	migrateOverwrite    bool
	migrateYes          bool
	migrateOnCorruption string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy models from one cache location to the other",
	Long: `Copy selected models from one cache location to the other. Files the
destination already has are skipped, so re-running an interrupted
migration picks up where it left off. Every copied blob is re-hashed and
compared against its manifest digest before it counts as done.

Examples:
  # Copy everything from the active cache to the other one
  ollamautil migrate --all

  # Copy two specific models from the secondary cache
  ollamautil migrate --from secondary --select 1,4

  # Re-copy files even when the destination has them
  ollamautil migrate --all --overwrite`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&migrateFrom, "from", "", "Source location, primary or secondary (default: where the cache pointer targets)")
	migrateCmd.Flags().BoolVar(&migrateAll, "all", false, "Migrate every model at the source")
	migrateCmd.Flags().StringVar(&migrateSelect, "select", "", "Index selection into the source model list, e.g. 1,3,5-7")
	migrateCmd.Flags().BoolVar(&migrateOverwrite, "overwrite", false, "Copy files even when the destination already has them")
	migrateCmd.Flags().BoolVarP(&migrateYes, "yes", "y", false, "Skip the confirmation prompt")
	migrateCmd.Flags().StringVar(&migrateOnCorruption, "on-corruption", "ask", "What to do with a copy that fails verification: ask, keep, or discard")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	opts := migrateOptions{
		from:         migrateFrom,
		selection:    migrateSelect,
		overwrite:    migrateOverwrite,
		yes:          migrateYes,
		onCorruption: migrateOnCorruption,
	}
	if migrateAll {
		opts.selection = "all"
	}
	return migrateFlow(a, opts)
}

type migrateOptions struct {
	from         string // empty selects the pointer's current target
	selection    string // empty prompts interactively
	overwrite    bool
	yes          bool
	onCorruption string
}

func migrateFlow(a *app, opts migrateOptions) error {
	if err := a.requireRoots(); err != nil {
		return err
	}

	var src cache.Location
	if opts.from == "" {
		cur, err := a.currentLocation()
		if err != nil {
			return fmt.Errorf("cannot infer the migration source, pass --from: %w", err)
		}
		src = cur
	} else {
		loc, err := a.location(opts.from)
		if err != nil {
			return err
		}
		src = loc
	}
	dst := a.cache.Other(src.ID)

	inv, err := a.cache.BuildInventory()
	if err != nil {
		return err
	}
	available := inv.At(src.ID)
	if len(available) == 0 {
		fmt.Printf("No models at the %s cache.\n", src.ID)
		return nil
	}

	var refs []cache.Ref
	if opts.selection == "" {
		fmt.Printf("Models at the %s cache:\n", src.ID)
		refs, err = selectRefs(available)
	} else {
		refs, err = pickRefs(opts.selection, available)
	}
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		fmt.Println("Nothing selected.")
		return nil
	}

	handler, err := corruptionHandler(opts.onCorruption)
	if err != nil {
		return err
	}
	engine, err := migrate.NewEngine(a.cache, handler)
	if err != nil {
		return err
	}
	engine.Progress = copyProgress()

	plan, err := migrate.NewPlan(src, dst, refs, opts.overwrite)
	if err != nil {
		return err
	}

	pf, err := engine.Preflight(plan)
	if err != nil {
		return err
	}

	fmt.Printf("\nMigrating %d model(s) from the %s cache to the %s cache.\n", len(refs), src.ID, dst.ID)
	fmt.Printf("Of %d total files, %d already exist at the destination.\n", pf.Files, pf.ExistingFiles)
	fmt.Printf("About %s to copy.\n", utils.FormatBytes(pf.Bytes-pf.ExistingBytes))
	for _, ref := range pf.Unresolved {
		fmt.Printf("⚠ %s: manifest missing or corrupt, will be skipped\n", ref)
	}
	if pf.MissingBlobs > 0 {
		fmt.Printf("⚠ %d blob(s) referenced by manifests are missing at the source\n", pf.MissingBlobs)
	}

	if !opts.yes && !confirm("Continue?") {
		fmt.Println("Aborted.")
		return nil
	}
	fmt.Println()

	result, err := engine.Execute(plan)
	if err != nil {
		return err
	}
	printMigrateSummary(result)
	return nil
}

// corruptionHandler maps an --on-corruption mode to an engine handler.
func corruptionHandler(mode string) (migrate.CorruptionHandler, error) {
	switch mode {
	case "keep":
		return func(string, *migrate.DigestMismatchError) migrate.CorruptionAction {
			return migrate.KeepCorrupted
		}, nil
	case "discard":
		return func(string, *migrate.DigestMismatchError) migrate.CorruptionAction {
			return migrate.DiscardCorrupted
		}, nil
	case "", "ask":
		return func(path string, err *migrate.DigestMismatchError) migrate.CorruptionAction {
			fmt.Printf("\n⚠ %s failed verification after copying.\n", path)
			if confirm("Keep the corrupted file (renamed with " + migrate.CorruptedSuffix + ")?") {
				return migrate.KeepCorrupted
			}
			return migrate.DiscardCorrupted
		}, nil
	default:
		return nil, fmt.Errorf("unknown --on-corruption mode %q (want ask, keep, or discard)", mode)
	}
}

func printMigrateSummary(result *migrate.Result) {
	s := result.Summary()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Copied\t%d\n", s.Copied)
	fmt.Fprintf(w, "Already present\t%d\n", s.Existing)
	if s.Missing > 0 {
		fmt.Fprintf(w, "Missing at source\t%d\n", s.Missing)
	}
	if s.Corrupted > 0 {
		fmt.Fprintf(w, "Failed verification\t%d\n", s.Corrupted)
	}
	if s.Failed > 0 {
		fmt.Fprintf(w, "Errored\t%d\n", s.Failed)
	}
	fmt.Fprintf(w, "Data written\t%s\n", utils.FormatBytes(s.Bytes))
	w.Flush()

	for _, out := range result.Outcomes {
		if out.Skipped {
			fmt.Printf("⚠ skipped %s: %v\n", out.Ref, out.SkipErr)
		}
	}
}
