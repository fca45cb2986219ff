package main

import (
	"fmt"
	"os"

	"github.com/sealad886/ollamautil/internal/cache"
	"github.com/spf13/cobra"
)

var (
	toggleTo      string
	toggleMigrate bool
	toggleYes     bool
)

var toggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Point the Ollama cache at the other location",
	Long: `Switch the cache pointer symlink between the primary and secondary
caches. The switch is atomic: the link never dangles, even if the
process is interrupted.

With --migrate, models are first copied from the location being left to
the target (existing files are skipped), so nothing disappears from the
daemon's view after the switch.

Examples:
  ollamautil toggle
  ollamautil toggle --to secondary
  ollamautil toggle --migrate -y`,
	Args: cobra.NoArgs,
	RunE: runToggle,
}

func init() {
	toggleCmd.Flags().StringVar(&toggleTo, "to", "", "Target location, primary or secondary (default: the one not currently active)")
	toggleCmd.Flags().BoolVar(&toggleMigrate, "migrate", false, "Copy models to the target before switching")
	toggleCmd.Flags().BoolVarP(&toggleYes, "yes", "y", false, "Skip the confirmation prompt")
}

func runToggle(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	return toggleFlow(a, toggleTo, toggleMigrate, toggleYes)
}

func toggleFlow(a *app, to string, migrateFirst, yes bool) error {
	if err := a.requireRoots(); err != nil {
		return err
	}

	cur, curErr := a.ptr.Current()

	var target cache.Location
	if to == "" {
		if curErr != nil {
			return fmt.Errorf("cannot infer the toggle target, pass --to: %w", curErr)
		}
		target = a.cache.Other(cur.ID)
	} else {
		loc, err := a.location(to)
		if err != nil {
			return err
		}
		target = loc
	}

	if curErr == nil && cur.ID == target.ID {
		fmt.Printf("Cache already points to the %s cache (%s).\n", target.ID, formatPath(target.Root))
		return nil
	}

	if migrateFirst {
		if curErr != nil {
			fmt.Fprintln(os.Stderr, "Skipping migration: the current cache pointer target is unknown.")
		} else {
			opts := migrateOptions{from: string(cur.ID), selection: "all", yes: yes, onCorruption: "ask"}
			if err := migrateFlow(a, opts); err != nil {
				return err
			}
			fmt.Println()
		}
	}

	if !yes && !confirm(fmt.Sprintf("Point the Ollama cache at the %s cache (%s)?", target.ID, formatPath(target.Root))) {
		fmt.Println("Aborted.")
		return nil
	}

	if err := a.ptr.SwitchTo(target); err != nil {
		return err
	}
	fmt.Printf("Cache now points to the %s cache (%s).\n", target.ID, formatPath(target.Root))
	fmt.Println("Restart the Ollama daemon if it is running so it picks up the change.")
	return nil
}
