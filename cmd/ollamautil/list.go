package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/sealad886/ollamautil/internal/cache"
	"github.com/sealad886/ollamautil/internal/utils"
	"github.com/spf13/cobra"
)

var listLocation string

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List cached models across both locations",
	Long: `List every model found in the primary and secondary caches, merged
into one view. The PRIMARY and SECONDARY columns mark where each model's
manifest lives; SIZE and WEIGHTS come from the manifest contents.

Examples:
  ollamautil list
  ollamautil list --location secondary`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listLocation, "location", "", "Only show models present at one location (primary or secondary)")
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	return listFlow(a)
}

func listFlow(a *app) error {
	if err := a.requireRoots(); err != nil {
		return err
	}

	inv, err := a.cache.BuildInventory()
	if err != nil {
		return err
	}

	var only cache.LocationID
	if listLocation != "" {
		loc, err := a.location(listLocation)
		if err != nil {
			return err
		}
		only = loc.ID
	}

	entries := inv.Entries
	if only != "" {
		var filtered []cache.Entry
		for _, e := range entries {
			if e.In(only) {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "No models found. Run 'ollamautil pull <model>' to download one.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tMODEL\tPRIMARY\tSECONDARY\tSIZE\tWEIGHTS")
	for i, e := range entries {
		size, weights := a.describeEntry(e)
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			i+1, e.Ref, presence(e.Primary), presence(e.Secondary), size, weights)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d model(s)\n", len(entries))
	if cur, err := a.ptr.Current(); err == nil {
		fmt.Printf("Active cache: %s (%s)\n", cur.ID, formatPath(cur.Root))
	}
	return nil
}

// describeEntry reads the manifest from whichever location has it to report
// content size and whether weight layers are present.
func (a *app) describeEntry(e cache.Entry) (size, weights string) {
	loc := a.cache.Primary
	if !e.Primary {
		loc = a.cache.Secondary
	}

	m, err := a.cache.ResolveManifest(loc, e.Ref)
	if err != nil {
		return "?", "?"
	}
	return utils.FormatBytes(m.Size()), presence(m.HasWeights(a.cfg.WeightMediaMarkers))
}
