package cache

import (
	"io/fs"
	"os"
	"path/filepath"
)

// LocationID names one of the two cache locations.
type LocationID string

const (
	Primary   LocationID = "primary"
	Secondary LocationID = "secondary"
)

// Location is one cache root holding a manifests/ and blobs/ tree.
type Location struct {
	ID   LocationID
	Root string
}

// Available reports whether the location's root exists and is a directory.
// A location on an unmounted volume is simply unavailable, not an error.
func (l Location) Available() bool {
	info, err := os.Stat(l.Root)
	return err == nil && info.IsDir()
}

// ManifestsDir returns the root of the manifest tree.
func (l Location) ManifestsDir() string {
	return filepath.Join(l.Root, "manifests")
}

// BlobsDir returns the directory holding content-addressed blobs.
func (l Location) BlobsDir() string {
	return filepath.Join(l.Root, "blobs")
}

// Size totals the file sizes under the location root. Entries that cannot
// be read are skipped.
func (l Location) Size() (int64, error) {
	var size int64
	err := filepath.WalkDir(l.Root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		size += info.Size()
		return nil
	})
	return size, err
}

func (l Location) String() string {
	return string(l.ID)
}
