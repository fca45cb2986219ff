package cache

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/opencontainers/go-digest"
)

// Normalize parses a digest in either the wire form ("sha256:<hex>") used
// inside manifests or the filesystem form ("sha256-<hex>") used for blob
// file names, and returns the canonical wire form.
func Normalize(raw string) (digest.Digest, error) {
	s := raw
	if !strings.ContainsRune(s, ':') {
		s = strings.Replace(s, "-", ":", 1)
	}
	d, err := digest.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrMalformedDigest, raw, err)
	}
	return d, nil
}

// DiskName returns the filesystem form of d. Normalize(DiskName(d)) == d.
func DiskName(d digest.Digest) string {
	return strings.Replace(d.String(), ":", "-", 1)
}

// BlobPath returns the path of the blob named by d under loc.
func BlobPath(loc Location, d digest.Digest) string {
	return filepath.Join(loc.BlobsDir(), DiskName(d))
}
