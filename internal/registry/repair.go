package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/opencontainers/go-digest"
	"github.com/sealad886/ollamautil/internal/cache"
	"github.com/sealad886/ollamautil/internal/migrate"
	"golang.org/x/sync/errgroup"
)

// defaultFetchLimit bounds concurrent blob downloads per repaired ref.
const defaultFetchLimit = 4

// Repairer restores missing or corrupt files of a cached model by
// re-downloading them from the registry.
type Repairer struct {
	Cache  *cache.Cache
	Remote *Remote

	// FetchLimit is the number of concurrent blob downloads. Zero or
	// negative selects defaultFetchLimit.
	FetchLimit int

	corrupt migrate.CorruptionHandler
}

// NewRepairer builds a repairer. As with migration, the corruption handler
// is mandatory: a blob that fails verification is quarantined or deleted
// before its replacement is fetched, and the caller decides which.
func NewRepairer(c *cache.Cache, rem *Remote, handler migrate.CorruptionHandler) (*Repairer, error) {
	if c == nil {
		return nil, errors.New("registry: cache is required")
	}
	if rem == nil {
		return nil, errors.New("registry: remote is required")
	}
	if handler == nil {
		return nil, errors.New("registry: corruption handler is required")
	}
	return &Repairer{Cache: c, Remote: rem, corrupt: handler}, nil
}

// Report is the outcome of repairing one ref.
type Report struct {
	Ref             cache.Ref
	ManifestFetched bool // local manifest was missing or corrupt and was re-downloaded
	Intact          int  // blobs that verified clean
	Fetched         int  // blobs downloaded and verified
	Failed          int  // blobs that could not be restored
}

// Repair checks every file of ref at loc and re-downloads what is missing
// or corrupt. Per-blob failures are counted in the report and do not abort
// the ref; the returned error is reserved for a manifest that cannot be
// obtained at all.
func (r *Repairer) Repair(ctx context.Context, loc cache.Location, ref cache.Ref) (*Report, error) {
	rep := &Report{Ref: ref}

	m, err := r.Cache.ResolveManifest(loc, ref)
	if err != nil {
		slog.Warn("local manifest unusable, fetching from registry", "ref", ref.String(), "error", err)
		fetched, raw, ferr := r.Remote.FetchManifest(ctx, ref)
		if ferr != nil {
			return rep, fmt.Errorf("manifest unavailable locally (%v) and from registry: %w", err, ferr)
		}
		path := r.Cache.ManifestPath(loc, ref)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return rep, fmt.Errorf("creating manifest directory: %w", err)
		}
		if err := os.WriteFile(path, raw, 0644); err != nil {
			return rep, fmt.Errorf("writing manifest: %w", err)
		}
		m = fetched
		rep.ManifestFetched = true
	}

	var need []digest.Digest
	for _, d := range m.BlobSet() {
		path := cache.BlobPath(loc, d)
		if _, err := os.Stat(path); err != nil {
			need = append(need, d)
			continue
		}
		if err := migrate.VerifyBlob(path, d); err != nil {
			var mismatch *migrate.DigestMismatchError
			if errors.As(err, &mismatch) {
				slog.Warn("blob failed verification",
					"path", path, "expected", mismatch.Expected.String(), "actual", mismatch.Actual.String())
				if herr := migrate.HandleCorruption(path, r.corrupt(path, mismatch)); herr != nil {
					slog.Error("handling corrupted blob", "path", path, "error", herr)
				}
				need = append(need, d)
				continue
			}
			// Unreadable or unknown algorithm: not proven corrupt, leave
			// the file alone.
			slog.Error("verifying blob", "path", path, "error", err)
			rep.Failed++
			continue
		}
		rep.Intact++
	}

	if len(need) == 0 {
		return rep, nil
	}

	limit := r.FetchLimit
	if limit <= 0 {
		limit = defaultFetchLimit
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, d := range need {
		g.Go(func() error {
			if err := r.fetchBlob(gctx, loc, ref, d); err != nil {
				slog.Warn("fetching blob", "ref", ref.String(), "digest", d.String(), "error", err)
				mu.Lock()
				rep.Failed++
				mu.Unlock()
				return nil
			}
			mu.Lock()
			rep.Fetched++
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return rep, err
	}
	return rep, nil
}

// fetchBlob downloads one blob to a temporary name, verifies it, and moves
// it into place.
func (r *Repairer) fetchBlob(ctx context.Context, loc cache.Location, ref cache.Ref, d digest.Digest) error {
	final := cache.BlobPath(loc, d)
	if err := os.MkdirAll(filepath.Dir(final), 0755); err != nil {
		return fmt.Errorf("creating blobs directory: %w", err)
	}

	tmp := final + ".partial"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}

	_, err = r.Remote.FetchBlob(ctx, ref, d, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}

	if err := migrate.VerifyBlob(tmp, d); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("downloaded blob failed verification: %w", err)
	}

	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("moving blob into place: %w", err)
	}
	return nil
}
