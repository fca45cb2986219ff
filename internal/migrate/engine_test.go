package migrate

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/sealad886/ollamautil/internal/cache"
)

func testCache(t *testing.T) *cache.Cache {
	t.Helper()
	return cache.New(t.TempDir(), t.TempDir())
}

// noCorruption is a handler for tests that do not expect verification
// failures.
func noCorruption(t *testing.T) CorruptionHandler {
	return func(path string, err *DigestMismatchError) CorruptionAction {
		t.Fatalf("unexpected corruption of %s: %v", path, err)
		return KeepCorrupted
	}
}

func putBlob(t *testing.T, loc cache.Location, content []byte) digest.Digest {
	t.Helper()
	d := digest.FromBytes(content)
	if err := os.MkdirAll(loc.BlobsDir(), 0755); err != nil {
		t.Fatalf("creating blobs dir: %v", err)
	}
	if err := os.WriteFile(cache.BlobPath(loc, d), content, 0644); err != nil {
		t.Fatalf("writing blob: %v", err)
	}
	return d
}

func putRawManifest(t *testing.T, c *cache.Cache, loc cache.Location, ref cache.Ref, data []byte) {
	t.Helper()
	path := c.ManifestPath(loc, ref)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("creating manifest dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}
}

// putModel writes a manifest for ref at loc whose blob set is the config
// blob plus one blob per layer content.
func putModel(t *testing.T, c *cache.Cache, loc cache.Location, ref cache.Ref, layers ...[]byte) *cache.Manifest {
	t.Helper()

	config := []byte("config for " + ref.String())
	m := &cache.Manifest{
		SchemaVersion: 2,
		MediaType:     "application/vnd.docker.distribution.manifest.v2+json",
		Config: ocispec.Descriptor{
			MediaType: "application/vnd.docker.container.image.v1+json",
			Digest:    putBlob(t, loc, config),
			Size:      int64(len(config)),
		},
	}
	for _, content := range layers {
		m.Layers = append(m.Layers, ocispec.Descriptor{
			MediaType: "application/vnd.ollama.image.model",
			Digest:    putBlob(t, loc, content),
			Size:      int64(len(content)),
		})
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshaling manifest: %v", err)
	}
	putRawManifest(t, c, loc, ref, data)
	return m
}

func mustExecute(t *testing.T, e *Engine, plan *Plan) *Result {
	t.Helper()
	res, err := e.Execute(plan)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	return res
}

func TestNewEngineRequiresHandler(t *testing.T) {
	if _, err := NewEngine(testCache(t), nil); err == nil {
		t.Fatal("NewEngine accepted a nil corruption handler")
	}
}

func TestNewPlanRejectsSameLocation(t *testing.T) {
	c := testCache(t)
	if _, err := NewPlan(c.Primary, c.Primary, nil, false); err == nil {
		t.Fatal("NewPlan accepted identical source and destination")
	}
}

func TestExecuteCopiesManifestAndBlobs(t *testing.T) {
	c := testCache(t)
	ref := cache.Ref{Namespace: "library", Name: "llama", Tag: "7b"}
	m := putModel(t, c, c.Primary, ref, []byte("layer weights"))

	e, err := NewEngine(c, noCorruption(t))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	plan, err := NewPlan(c.Primary, c.Secondary, []cache.Ref{ref}, false)
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}

	res := mustExecute(t, e, plan)
	s := res.Summary()
	if s.Copied != 3 || s.Existing != 0 || s.Failed != 0 {
		t.Fatalf("summary = %+v, want 3 copied", s)
	}
	if s.Bytes == 0 {
		t.Error("no bytes recorded")
	}

	if _, err := os.Stat(c.ManifestPath(c.Secondary, ref)); err != nil {
		t.Errorf("manifest not copied: %v", err)
	}
	for _, d := range m.BlobSet() {
		if err := VerifyBlob(cache.BlobPath(c.Secondary, d), d); err != nil {
			t.Errorf("copied blob %s: %v", d, err)
		}
	}
}

func TestExecuteIsIdempotent(t *testing.T) {
	c := testCache(t)
	ref := cache.Ref{Namespace: "library", Name: "llama", Tag: "7b"}
	putModel(t, c, c.Primary, ref, []byte("layer weights"))

	e, _ := NewEngine(c, noCorruption(t))
	plan, _ := NewPlan(c.Primary, c.Secondary, []cache.Ref{ref}, false)
	mustExecute(t, e, plan)

	res := mustExecute(t, e, plan)
	s := res.Summary()
	if s.Copied != 0 || s.Bytes != 0 {
		t.Errorf("re-run copied %d files (%d bytes), want nothing", s.Copied, s.Bytes)
	}
	if s.Existing != 3 {
		t.Errorf("re-run existing = %d, want 3", s.Existing)
	}
}

func TestExecuteOverwriteRecopies(t *testing.T) {
	c := testCache(t)
	ref := cache.Ref{Namespace: "library", Name: "llama", Tag: "7b"}
	putModel(t, c, c.Primary, ref, []byte("layer weights"))

	e, _ := NewEngine(c, noCorruption(t))
	plan, _ := NewPlan(c.Primary, c.Secondary, []cache.Ref{ref}, false)
	mustExecute(t, e, plan)

	overwrite, _ := NewPlan(c.Primary, c.Secondary, []cache.Ref{ref}, true)
	res := mustExecute(t, e, overwrite)
	s := res.Summary()
	if s.Copied != 3 || s.Bytes == 0 {
		t.Errorf("overwrite run summary = %+v, want 3 copied", s)
	}
}

func TestExecuteSharedBlobCopiedOnce(t *testing.T) {
	c := testCache(t)
	shared := []byte("shared weights")
	refA := cache.Ref{Namespace: "library", Name: "llama", Tag: "7b"}
	refB := cache.Ref{Namespace: "library", Name: "llama", Tag: "7b-alias"}
	putModel(t, c, c.Primary, refA, shared)
	putModel(t, c, c.Primary, refB, shared)

	e, _ := NewEngine(c, noCorruption(t))
	plan, _ := NewPlan(c.Primary, c.Secondary, []cache.Ref{refA, refB}, false)

	res := mustExecute(t, e, plan)
	// Five distinct files: two manifests, two config blobs, one shared
	// weight blob. The second ref sees the shared blob as existing.
	s := res.Summary()
	if s.Copied != 5 {
		t.Errorf("copied = %d, want 5", s.Copied)
	}
	if s.Existing != 1 {
		t.Errorf("existing = %d, want 1", s.Existing)
	}
}

func TestExecuteReportsMissingBlob(t *testing.T) {
	c := testCache(t)
	ref := cache.Ref{Namespace: "library", Name: "holey", Tag: "latest"}
	m := putModel(t, c, c.Primary, ref, []byte("vanishing layer"))

	if err := os.Remove(cache.BlobPath(c.Primary, m.Layers[0].Digest)); err != nil {
		t.Fatalf("removing source blob: %v", err)
	}

	e, _ := NewEngine(c, noCorruption(t))
	plan, _ := NewPlan(c.Primary, c.Secondary, []cache.Ref{ref}, false)

	res := mustExecute(t, e, plan)
	out := res.Outcomes[0]
	if out.Missing != 1 {
		t.Fatalf("missing = %d, want 1", out.Missing)
	}
	if out.Copied != 2 {
		t.Errorf("copied = %d, want manifest and config blob", out.Copied)
	}
	found := false
	for _, err := range out.Errors {
		if errors.Is(err, ErrBlobMissing) {
			found = true
		}
	}
	if !found {
		t.Errorf("outcome errors %v do not include ErrBlobMissing", out.Errors)
	}
}

func TestExecuteSkipsCorruptManifestButNotSiblings(t *testing.T) {
	c := testCache(t)
	good := cache.Ref{Namespace: "library", Name: "good", Tag: "latest"}
	bad := cache.Ref{Namespace: "library", Name: "bad", Tag: "latest"}
	putModel(t, c, c.Primary, good, []byte("fine"))
	putRawManifest(t, c, c.Primary, bad, []byte("{definitely not json"))

	e, _ := NewEngine(c, noCorruption(t))
	plan, _ := NewPlan(c.Primary, c.Secondary, []cache.Ref{bad, good}, false)

	res := mustExecute(t, e, plan)
	if len(res.Outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(res.Outcomes))
	}

	badOut, goodOut := res.Outcomes[0], res.Outcomes[1]
	if !badOut.Skipped || !errors.Is(badOut.SkipErr, cache.ErrManifestCorrupt) {
		t.Errorf("bad ref outcome = %+v, want corrupt-manifest skip", badOut)
	}
	if goodOut.Skipped || goodOut.Copied != 3 {
		t.Errorf("good ref outcome = %+v, want full copy", goodOut)
	}
}

func TestExecuteQuarantinesCorruptedCopy(t *testing.T) {
	c := testCache(t)
	ref := cache.Ref{Namespace: "library", Name: "flaky", Tag: "latest"}
	m := putModel(t, c, c.Primary, ref, []byte("original content"))

	// Flip a byte under the digest's name so the copy cannot verify.
	src := cache.BlobPath(c.Primary, m.Layers[0].Digest)
	tampered, err := os.ReadFile(src)
	if err != nil {
		t.Fatalf("reading blob: %v", err)
	}
	tampered[0] ^= 0xff
	if err := os.WriteFile(src, tampered, 0644); err != nil {
		t.Fatalf("tampering blob: %v", err)
	}

	var handled *DigestMismatchError
	handler := func(path string, err *DigestMismatchError) CorruptionAction {
		handled = err
		return KeepCorrupted
	}
	e, _ := NewEngine(c, handler)
	plan, _ := NewPlan(c.Primary, c.Secondary, []cache.Ref{ref}, false)

	res := mustExecute(t, e, plan)
	out := res.Outcomes[0]
	if out.Corrupted != 1 {
		t.Fatalf("corrupted = %d, want 1", out.Corrupted)
	}
	if handled == nil {
		t.Fatal("corruption handler never called")
	}
	if handled.Expected != m.Layers[0].Digest {
		t.Errorf("expected digest in mismatch = %s, want %s", handled.Expected, m.Layers[0].Digest)
	}

	dst := cache.BlobPath(c.Secondary, m.Layers[0].Digest)
	if _, err := os.Stat(dst); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("corrupted copy still at canonical path %s", dst)
	}
	if _, err := os.Stat(dst + CorruptedSuffix); err != nil {
		t.Errorf("quarantined copy missing: %v", err)
	}
}

func TestExecuteDiscardsCorruptedCopy(t *testing.T) {
	c := testCache(t)
	ref := cache.Ref{Namespace: "library", Name: "flaky", Tag: "latest"}
	m := putModel(t, c, c.Primary, ref, []byte("original content"))

	src := cache.BlobPath(c.Primary, m.Layers[0].Digest)
	if err := os.WriteFile(src, []byte("entirely different"), 0644); err != nil {
		t.Fatalf("tampering blob: %v", err)
	}

	handler := func(path string, err *DigestMismatchError) CorruptionAction {
		return DiscardCorrupted
	}
	e, _ := NewEngine(c, handler)
	plan, _ := NewPlan(c.Primary, c.Secondary, []cache.Ref{ref}, false)
	mustExecute(t, e, plan)

	dst := cache.BlobPath(c.Secondary, m.Layers[0].Digest)
	if _, err := os.Stat(dst); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("discarded copy still at canonical path")
	}
	if _, err := os.Stat(dst + CorruptedSuffix); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("discarded copy was quarantined instead")
	}
}

func TestExecuteRejectsUnavailableLocation(t *testing.T) {
	c := testCache(t)
	plan, _ := NewPlan(c.Primary, c.Secondary, nil, false)
	plan.Source.Root = filepath.Join(plan.Source.Root, "gone")

	e, _ := NewEngine(c, noCorruption(t))
	if _, err := e.Execute(plan); !errors.Is(err, cache.ErrLocationUnavailable) {
		t.Fatalf("got %v, want ErrLocationUnavailable", err)
	}
}

func TestExecuteEmitsProgress(t *testing.T) {
	c := testCache(t)
	ref := cache.Ref{Namespace: "library", Name: "llama", Tag: "7b"}
	putModel(t, c, c.Primary, ref, []byte("some layer data"))

	e, _ := NewEngine(c, noCorruption(t))
	var events []Progress
	e.Progress = func(p Progress) { events = append(events, p) }

	plan, _ := NewPlan(c.Primary, c.Secondary, []cache.Ref{ref}, false)
	mustExecute(t, e, plan)

	if len(events) == 0 {
		t.Fatal("no progress emitted")
	}
	last := events[len(events)-1]
	if last.Done != last.Total {
		t.Errorf("final event done=%d total=%d, want equal", last.Done, last.Total)
	}
	if last.PlanID != plan.ID {
		t.Errorf("progress carries plan %q, want %q", last.PlanID, plan.ID)
	}
}
