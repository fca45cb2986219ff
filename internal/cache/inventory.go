package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Entry records where one tagged model is present.
type Entry struct {
	Ref       Ref
	Primary   bool
	Secondary bool
}

// In reports presence at the given location.
func (e Entry) In(id LocationID) bool {
	if id == Primary {
		return e.Primary
	}
	return e.Secondary
}

// Inventory is the merged view of both locations. It is rebuilt from the
// filesystem on every run and never persisted.
type Inventory struct {
	Entries []Entry
}

func (inv *Inventory) Len() int { return len(inv.Entries) }

// Refs returns every ref in display order.
func (inv *Inventory) Refs() []Ref {
	refs := make([]Ref, len(inv.Entries))
	for i, e := range inv.Entries {
		refs[i] = e.Ref
	}
	return refs
}

// At returns the refs present at the given location, in display order.
func (inv *Inventory) At(id LocationID) []Ref {
	var refs []Ref
	for _, e := range inv.Entries {
		if e.In(id) {
			refs = append(refs, e.Ref)
		}
	}
	return refs
}

// BuildInventory walks the manifest tree of every available location and
// merges the findings. Walked paths are sorted before grouping by their
// final three segments (namespace, name, tag), so identical trees always
// produce identical inventories. Unavailable locations are skipped with a
// warning; if neither location is available the build fails.
func (c *Cache) BuildInventory() (*Inventory, error) {
	merged := make(map[Ref]*Entry)
	available := 0

	for _, loc := range c.Locations() {
		if !loc.Available() {
			slog.Warn("cache location unavailable, skipping", "location", loc.ID, "root", loc.Root)
			continue
		}
		available++

		files, err := c.walkManifests(loc)
		if err != nil {
			return nil, fmt.Errorf("scanning %s cache: %w", loc.ID, err)
		}

		for _, rel := range files {
			segs := strings.Split(rel, string(filepath.Separator))
			if len(segs) < 3 {
				slog.Debug("ignoring stray file under manifests", "location", loc.ID, "path", rel)
				continue
			}
			n := len(segs)
			ref := Ref{Namespace: segs[n-3], Name: segs[n-2], Tag: segs[n-1]}

			e, ok := merged[ref]
			if !ok {
				e = &Entry{Ref: ref}
				merged[ref] = e
			}
			switch loc.ID {
			case Primary:
				e.Primary = true
			case Secondary:
				e.Secondary = true
			}
		}
	}

	if available == 0 {
		return nil, fmt.Errorf("building inventory: %w", ErrLocationUnavailable)
	}

	inv := &Inventory{Entries: make([]Entry, 0, len(merged))}
	for _, e := range merged {
		inv.Entries = append(inv.Entries, *e)
	}
	sort.Slice(inv.Entries, func(i, j int) bool {
		a, b := inv.Entries[i].Ref, inv.Entries[j].Ref
		if a.Namespace != b.Namespace {
			return a.Namespace < b.Namespace
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Tag < b.Tag
	})
	return inv, nil
}

// walkManifests lists manifest files under loc relative to the manifests
// directory, sorted lexicographically. Ignored names, unreadable files and
// permission-denied subtrees are skipped, never fatal.
func (c *Cache) walkManifests(loc Location) ([]string, error) {
	dir := loc.ManifestsDir()
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			if errors.Is(err, fs.ErrPermission) {
				slog.Warn("no permission, skipping", "path", path)
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}

		if c.ignored(d.Name()) {
			return nil
		}

		// An unreadable manifest is reported and left out rather than
		// failing the whole scan.
		f, err := os.Open(path)
		if err != nil {
			slog.Warn("cannot read file, skipping", "path", path, "error", err)
			return nil
		}
		f.Close()

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

func (c *Cache) ignored(name string) bool {
	for _, pattern := range c.Ignore {
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}
