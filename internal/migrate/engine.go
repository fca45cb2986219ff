// Package migrate copies models between the two cache locations with
// skip-if-exists semantics and streaming integrity verification of every
// copied blob.
package migrate

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/opencontainers/go-digest"
	"github.com/sealad886/ollamautil/internal/cache"
)

// ErrBlobMissing indicates a blob referenced by a manifest that does not
// exist at the source location.
var ErrBlobMissing = errors.New("blob missing from source")

// CorruptedSuffix is appended to a blob's file name when a verification
// failure is kept for inspection instead of deleted.
const CorruptedSuffix = "_corrupted"

// CorruptionAction is the decision for a copied file whose content does not
// match its digest.
type CorruptionAction int

const (
	// KeepCorrupted renames the file with CorruptedSuffix so it no longer
	// shadows the canonical blob name.
	KeepCorrupted CorruptionAction = iota
	// DiscardCorrupted deletes the file.
	DiscardCorrupted
)

// CorruptionHandler decides what happens to a file that failed verification.
// The file never stays under its canonical name either way.
type CorruptionHandler func(path string, err *DigestMismatchError) CorruptionAction

// Progress is one copy progress event, emitted between chunks.
type Progress struct {
	PlanID string
	Ref    cache.Ref
	File   string // destination path
	Done   int64
	Total  int64
}

// Engine executes migration plans. Execution is single-threaded and
// synchronous: blobs of one manifest finish before the next ref starts.
type Engine struct {
	Cache *cache.Cache

	// Progress, when set, receives copy progress between chunks.
	Progress func(Progress)

	corrupt CorruptionHandler
}

// NewEngine builds an engine over c. The corruption handler is mandatory:
// there is no safe default for what to do with a corrupt artifact, so the
// caller must decide.
func NewEngine(c *cache.Cache, handler CorruptionHandler) (*Engine, error) {
	if c == nil {
		return nil, errors.New("migrate: cache is required")
	}
	if handler == nil {
		return nil, errors.New("migrate: corruption handler is required")
	}
	return &Engine{Cache: c, corrupt: handler}, nil
}

// RefOutcome reports what happened to a single ref during Execute.
type RefOutcome struct {
	Ref       cache.Ref
	Skipped   bool  // manifest missing or corrupt at the source
	SkipErr   error // why, when Skipped
	Copied    int   // files copied and verified
	Existing  int   // files skipped because the destination already has them
	Missing   int   // source blobs absent
	Corrupted int   // copies that failed verification
	Failed    int   // copies or verifications that errored
	Bytes     int64 // bytes written
	Errors    []error
}

// Result aggregates the outcomes of one plan run.
type Result struct {
	PlanID   string
	Outcomes []RefOutcome
}

// Summary are the counters of a Result added up.
type Summary struct {
	Refs        int
	SkippedRefs int
	Copied      int
	Existing    int
	Missing     int
	Corrupted   int
	Failed      int
	Bytes       int64
}

func (r *Result) Summary() Summary {
	s := Summary{Refs: len(r.Outcomes)}
	for _, out := range r.Outcomes {
		if out.Skipped {
			s.SkippedRefs++
		}
		s.Copied += out.Copied
		s.Existing += out.Existing
		s.Missing += out.Missing
		s.Corrupted += out.Corrupted
		s.Failed += out.Failed
		s.Bytes += out.Bytes
	}
	return s
}

// Execute runs the plan. Per-ref and per-file failures are recorded in the
// outcomes and never abort the rest of the batch; the returned error is
// reserved for plan-level problems such as an unavailable location.
func (e *Engine) Execute(plan *Plan) (*Result, error) {
	if err := plan.validate(); err != nil {
		return nil, err
	}

	res := &Result{PlanID: plan.ID}
	seen := make(map[digest.Digest]bool)

	slog.Info("migration started",
		"plan", plan.ID,
		"source", plan.Source.ID,
		"dest", plan.Dest.ID,
		"refs", len(plan.Refs),
		"overwrite", plan.Overwrite)

	for _, ref := range plan.Refs {
		res.Outcomes = append(res.Outcomes, e.migrateRef(plan, ref, seen))
	}

	s := res.Summary()
	slog.Info("migration finished",
		"plan", plan.ID,
		"copied", s.Copied,
		"existing", s.Existing,
		"missing", s.Missing,
		"corrupted", s.Corrupted,
		"failed", s.Failed,
		"bytes", s.Bytes)
	return res, nil
}

func (e *Engine) migrateRef(plan *Plan, ref cache.Ref, seen map[digest.Digest]bool) RefOutcome {
	out := RefOutcome{Ref: ref}

	m, err := e.Cache.ResolveManifest(plan.Source, ref)
	if err != nil {
		slog.Warn("skipping ref", "ref", ref.String(), "error", err)
		out.Skipped = true
		out.SkipErr = err
		return out
	}

	// Manifest file first; blobs proceed even when it is skipped.
	src := e.Cache.ManifestPath(plan.Source, ref)
	dst := e.Cache.ManifestPath(plan.Dest, ref)
	if fileExists(dst) && !plan.Overwrite {
		out.Existing++
	} else {
		n, err := e.copyFile(src, dst, plan.ID, ref)
		out.Bytes += n
		if err != nil {
			out.Failed++
			out.Errors = append(out.Errors, fmt.Errorf("manifest: %w", err))
			slog.Error("copying manifest", "ref", ref.String(), "error", err)
		} else {
			out.Copied++
			copyMetadata(src, dst)
		}
	}

	for _, d := range m.BlobSet() {
		srcBlob := cache.BlobPath(plan.Source, d)
		dstBlob := cache.BlobPath(plan.Dest, d)

		// A blob already handled for an earlier ref of this plan counts as
		// existing, even with overwrite set.
		if seen[d] || (fileExists(dstBlob) && !plan.Overwrite) {
			seen[d] = true
			out.Existing++
			continue
		}
		seen[d] = true

		if !fileExists(srcBlob) {
			out.Missing++
			out.Errors = append(out.Errors, fmt.Errorf("%s: %w", d, ErrBlobMissing))
			slog.Warn("blob missing from source", "ref", ref.String(), "digest", d.String())
			continue
		}

		n, err := e.copyFile(srcBlob, dstBlob, plan.ID, ref)
		out.Bytes += n
		if err != nil {
			out.Failed++
			out.Errors = append(out.Errors, err)
			slog.Error("copying blob", "digest", d.String(), "error", err)
			continue
		}
		copyMetadata(srcBlob, dstBlob)

		if err := VerifyBlob(dstBlob, d); err != nil {
			var mismatch *DigestMismatchError
			if errors.As(err, &mismatch) {
				out.Corrupted++
				out.Errors = append(out.Errors, mismatch)
				slog.Warn("copied blob failed verification",
					"path", dstBlob, "expected", mismatch.Expected.String(), "actual", mismatch.Actual.String())
				if herr := HandleCorruption(dstBlob, e.corrupt(dstBlob, mismatch)); herr != nil {
					slog.Error("handling corrupted blob", "path", dstBlob, "error", herr)
				}
				continue
			}
			out.Failed++
			out.Errors = append(out.Errors, err)
			slog.Error("verifying blob", "path", dstBlob, "error", err)
			continue
		}
		out.Copied++
	}
	return out
}

// HandleCorruption applies action to a file that failed verification. With
// KeepCorrupted the file is renamed with CorruptedSuffix; with
// DiscardCorrupted it is deleted.
func HandleCorruption(path string, action CorruptionAction) error {
	switch action {
	case KeepCorrupted:
		quarantine := path + CorruptedSuffix
		if err := os.Rename(path, quarantine); err != nil {
			return fmt.Errorf("quarantining corrupted file: %w", err)
		}
		slog.Info("kept corrupted file", "path", quarantine)
	case DiscardCorrupted:
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("removing corrupted file: %w", err)
		}
		slog.Info("removed corrupted file", "path", path)
	default:
		return fmt.Errorf("unknown corruption action %d", action)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
