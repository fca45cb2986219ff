package migrate

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sealad886/ollamautil/internal/cache"
)

// Plan describes one migration run between the two cache locations. Plans
// carry no engine state; re-running the same plan is safe and skips content
// the destination already has unless Overwrite is set.
type Plan struct {
	ID        string
	Source    cache.Location
	Dest      cache.Location
	Refs      []cache.Ref
	Overwrite bool
}

// NewPlan builds a plan to copy refs from source to dest.
func NewPlan(source, dest cache.Location, refs []cache.Ref, overwrite bool) (*Plan, error) {
	if source.ID == dest.ID {
		return nil, fmt.Errorf("source and destination are both the %s cache", source.ID)
	}
	return &Plan{
		ID:        uuid.NewString(),
		Source:    source,
		Dest:      dest,
		Refs:      refs,
		Overwrite: overwrite,
	}, nil
}

// validate re-checks both locations right before resolving or copying, so a
// volume unmounted after planning fails cleanly.
func (p *Plan) validate() error {
	for _, loc := range []cache.Location{p.Source, p.Dest} {
		if !loc.Available() {
			return fmt.Errorf("%s cache: %w: %s", loc.ID, cache.ErrLocationUnavailable, loc.Root)
		}
	}
	return nil
}

// Preflight reports how much of a plan's content already exists at the
// destination, so callers can show what a run would do before confirming.
type Preflight struct {
	Files         int // manifests plus unique source blobs
	ExistingFiles int // of Files, already present at the destination
	Bytes         int64
	ExistingBytes int64
	MissingBlobs  int // referenced by a manifest but absent at the source
	Unresolved    []cache.Ref
}

// Preflight resolves every ref in the plan without copying anything. Refs
// whose manifests are missing or corrupt are reported, not fatal.
func (e *Engine) Preflight(plan *Plan) (*Preflight, error) {
	if err := plan.validate(); err != nil {
		return nil, err
	}

	pf := &Preflight{}
	seen := make(map[string]bool)

	count := func(src, dst string) {
		info, err := os.Stat(src)
		if err != nil {
			return
		}
		pf.Files++
		pf.Bytes += info.Size()
		if _, err := os.Stat(dst); err == nil {
			pf.ExistingFiles++
			pf.ExistingBytes += info.Size()
		}
	}

	for _, ref := range plan.Refs {
		m, err := e.Cache.ResolveManifest(plan.Source, ref)
		if err != nil {
			pf.Unresolved = append(pf.Unresolved, ref)
			continue
		}

		count(e.Cache.ManifestPath(plan.Source, ref), e.Cache.ManifestPath(plan.Dest, ref))

		for _, d := range m.BlobSet() {
			src := cache.BlobPath(plan.Source, d)
			if seen[src] {
				continue
			}
			seen[src] = true
			if _, err := os.Stat(src); err != nil {
				pf.MissingBlobs++
				continue
			}
			count(src, cache.BlobPath(plan.Dest, d))
		}
	}
	return pf, nil
}
