package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Manifest is the on-disk manifest JSON for one tagged model. Digests inside
// descriptors use the wire form ("sha256:<hex>").
type Manifest struct {
	SchemaVersion int                  `json:"schemaVersion"`
	MediaType     string               `json:"mediaType"`
	Config        ocispec.Descriptor   `json:"config"`
	Layers        []ocispec.Descriptor `json:"layers"`
}

// ResolveManifest loads and validates the manifest for ref at loc. A missing
// file yields ErrManifestNotFound; unparseable JSON or missing digest fields
// yield a ManifestCorruptError. Batch callers are expected to skip the ref
// and continue on either.
func (c *Cache) ResolveManifest(loc Location, ref Ref) (*Manifest, error) {
	path := c.ManifestPath(loc, ref)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s at %s: %w", ref, loc.ID, ErrManifestNotFound)
		}
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &ManifestCorruptError{Path: path, Err: err}
	}

	if m.Config.Digest == "" {
		return nil, &ManifestCorruptError{Path: path, Err: errors.New("missing config digest")}
	}
	if err := m.Config.Digest.Validate(); err != nil {
		return nil, &ManifestCorruptError{Path: path, Err: fmt.Errorf("config digest: %w", err)}
	}
	for i, layer := range m.Layers {
		if layer.Digest == "" {
			return nil, &ManifestCorruptError{Path: path, Err: fmt.Errorf("layer %d has no digest", i)}
		}
		if err := layer.Digest.Validate(); err != nil {
			return nil, &ManifestCorruptError{Path: path, Err: fmt.Errorf("layer %d digest: %w", i, err)}
		}
	}

	return &m, nil
}

// BlobSet returns every blob digest the manifest references, config first,
// deduplicated, in manifest order.
func (m *Manifest) BlobSet() []digest.Digest {
	seen := make(map[digest.Digest]bool, len(m.Layers)+1)
	out := make([]digest.Digest, 0, len(m.Layers)+1)

	add := func(d digest.Digest) {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}

	add(m.Config.Digest)
	for _, layer := range m.Layers {
		add(layer.Digest)
	}
	return out
}

// Size returns the total content size in bytes across config and layers.
func (m *Manifest) Size() int64 {
	size := m.Config.Size
	for _, layer := range m.Layers {
		size += layer.Size
	}
	return size
}

// HasWeights reports whether any layer's media type contains one of the
// given markers. Weight layers are flagged for display only; copies treat
// all blobs identically.
func (m *Manifest) HasWeights(markers []string) bool {
	for _, layer := range m.Layers {
		for _, marker := range markers {
			if marker != "" && strings.Contains(layer.MediaType, marker) {
				return true
			}
		}
	}
	return false
}
