package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedDigest indicates a digest string that fits neither the
	// wire form ("sha256:<hex>") nor the filesystem form ("sha256-<hex>").
	ErrMalformedDigest = errors.New("malformed digest")

	// ErrManifestNotFound indicates a ref with no manifest file at the
	// queried location.
	ErrManifestNotFound = errors.New("manifest not found")

	// ErrManifestCorrupt matches any ManifestCorruptError via errors.Is.
	ErrManifestCorrupt = errors.New("corrupt manifest")

	// ErrLocationUnavailable indicates a cache root that does not exist,
	// typically an unmounted volume.
	ErrLocationUnavailable = errors.New("cache location unavailable")
)

// ManifestCorruptError describes a manifest file that exists but cannot be
// used: unparseable JSON or missing digest fields.
type ManifestCorruptError struct {
	Path string
	Err  error
}

func (e *ManifestCorruptError) Error() string {
	return fmt.Sprintf("corrupt manifest %s: %v", e.Path, e.Err)
}

func (e *ManifestCorruptError) Unwrap() error { return e.Err }

func (e *ManifestCorruptError) Is(target error) bool { return target == ErrManifestCorrupt }
