// Package cache models the on-disk layout of an Ollama model cache split
// across two storage locations: a manifest tree keyed by model reference and
// a flat directory of content-addressed blobs shared by all manifests.
package cache

import (
	"fmt"
	"path/filepath"
)

// Cache gives access to the two-location model cache. The zero value is not
// usable; construct with New.
type Cache struct {
	Primary   Location
	Secondary Location

	// Registry is the registry segment of the manifest tree.
	Registry string

	// Ignore holds glob patterns for file names the inventory walk skips.
	Ignore []string
}

// New builds a Cache over the two roots with the default registry and
// ignore list.
func New(primaryRoot, secondaryRoot string) *Cache {
	return &Cache{
		Primary:   Location{ID: Primary, Root: primaryRoot},
		Secondary: Location{ID: Secondary, Root: secondaryRoot},
		Registry:  DefaultRegistry,
		Ignore:    []string{".DS_Store"},
	}
}

// Locations returns both locations, primary first.
func (c *Cache) Locations() []Location {
	return []Location{c.Primary, c.Secondary}
}

// Location returns the location with the given id.
func (c *Cache) Location(id LocationID) (Location, error) {
	switch id {
	case Primary:
		return c.Primary, nil
	case Secondary:
		return c.Secondary, nil
	}
	return Location{}, fmt.Errorf("unknown cache location %q", id)
}

// Other returns the location opposite to id.
func (c *Cache) Other(id LocationID) Location {
	if id == Primary {
		return c.Secondary
	}
	return c.Primary
}

// ManifestPath returns the absolute manifest path for ref at loc.
func (c *Cache) ManifestPath(loc Location, ref Ref) string {
	return filepath.Join(loc.Root, ref.ManifestRelPath(c.Registry))
}
