package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/sealad886/ollamautil/internal/cache"
	"github.com/sealad886/ollamautil/internal/migrate"
)

// noCorruption returns a handler for tests that do not expect verification
// failures.
func noCorruption(t *testing.T) migrate.CorruptionHandler {
	t.Helper()
	return func(path string, err *migrate.DigestMismatchError) migrate.CorruptionAction {
		t.Fatalf("unexpected corruption at %s: %v", path, err)
		return migrate.DiscardCorrupted
	}
}

// buildManifest returns a raw manifest referencing the given blob contents,
// plus a digest-to-content map for the fake registry.
func buildManifest(t *testing.T, configContent string, layerContents ...string) ([]byte, map[string][]byte) {
	t.Helper()

	blobs := make(map[string][]byte)
	desc := func(content, mediaType string) ocispec.Descriptor {
		d := digest.FromString(content)
		blobs[d.String()] = []byte(content)
		return ocispec.Descriptor{MediaType: mediaType, Digest: d, Size: int64(len(content))}
	}

	m := cache.Manifest{
		SchemaVersion: 2,
		MediaType:     "application/vnd.docker.distribution.manifest.v2+json",
		Config:        desc(configContent, "application/vnd.docker.container.image.v1+json"),
		Layers: []ocispec.Descriptor{
			desc(layerContents[0], "application/vnd.ollama.image.model"),
		},
	}
	for _, content := range layerContents[1:] {
		m.Layers = append(m.Layers, desc(content, "application/vnd.ollama.image.template"))
	}

	raw, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshaling manifest: %v", err)
	}
	return raw, blobs
}

// installModel writes the manifest and blobs into the local cache location.
func installModel(t *testing.T, c *cache.Cache, loc cache.Location, ref cache.Ref, raw []byte, blobs map[string][]byte) {
	t.Helper()

	path := c.ManifestPath(loc, ref)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatal(err)
	}

	for ds, content := range blobs {
		d := digest.Digest(ds)
		blobPath := cache.BlobPath(loc, d)
		if err := os.MkdirAll(filepath.Dir(blobPath), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(blobPath, content, 0644); err != nil {
			t.Fatal(err)
		}
	}
}

// fakeRegistry serves the OCI distribution endpoints the repairer uses.
func fakeRegistry(tags map[string][]byte, blobs map[string][]byte) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) < 5 {
			w.WriteHeader(http.StatusOK) // /v2/ ping
			return
		}

		kind, ref := parts[len(parts)-2], parts[len(parts)-1]
		switch kind {
		case "manifests":
			raw, ok := tags[ref]
			if !ok {
				// Fetch after Resolve addresses the manifest by digest.
				for _, candidate := range tags {
					if digest.FromBytes(candidate).String() == ref {
						raw, ok = candidate, true
						break
					}
				}
			}
			if !ok {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "application/vnd.docker.distribution.manifest.v2+json")
			w.Header().Set("Docker-Content-Digest", digest.FromBytes(raw).String())
			w.Header().Set("Content-Length", strconv.Itoa(len(raw)))
			if r.Method != http.MethodHead {
				w.Write(raw)
			}
		case "blobs":
			content, ok := blobs[ref]
			if !ok {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Header().Set("Docker-Content-Digest", ref)
			w.Header().Set("Content-Length", strconv.Itoa(len(content)))
			if r.Method != http.MethodHead {
				w.Write(content)
			}
		default:
			http.NotFound(w, r)
		}
	})
}

func testRemote(srv *httptest.Server) *Remote {
	return &Remote{Host: strings.TrimPrefix(srv.URL, "http://"), PlainHTTP: true}
}

func TestNewRepairerRequiresHandler(t *testing.T) {
	c := cache.New(t.TempDir(), t.TempDir())
	if _, err := NewRepairer(c, NewRemote("", ""), nil); err == nil {
		t.Fatal("expected error for nil corruption handler")
	}
}

func TestRepairAllIntact(t *testing.T) {
	c := cache.New(t.TempDir(), t.TempDir())
	ref := cache.Ref{Namespace: "library", Name: "modela", Tag: "latest"}
	raw, blobs := buildManifest(t, "config-a", "weights-a", "template-a")
	installModel(t, c, c.Primary, ref, raw, blobs)

	srv := httptest.NewServer(fakeRegistry(map[string][]byte{"latest": raw}, blobs))
	defer srv.Close()

	rep, err := mustRepairer(t, c, testRemote(srv), noCorruption(t)).Repair(context.Background(), c.Primary, ref)
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if rep.Intact != 3 || rep.Fetched != 0 || rep.Failed != 0 || rep.ManifestFetched {
		t.Fatalf("unexpected report: %+v", rep)
	}
}

func TestRepairFetchesMissingAndCorrupt(t *testing.T) {
	c := cache.New(t.TempDir(), t.TempDir())
	ref := cache.Ref{Namespace: "library", Name: "modela", Tag: "latest"}
	raw, blobs := buildManifest(t, "config-a", "weights-a", "template-a")
	installModel(t, c, c.Primary, ref, raw, blobs)

	// One blob vanishes, another is tampered with.
	missing := digest.FromString("weights-a")
	corrupt := digest.FromString("template-a")
	if err := os.Remove(cache.BlobPath(c.Primary, missing)); err != nil {
		t.Fatal(err)
	}
	corruptPath := cache.BlobPath(c.Primary, corrupt)
	if err := os.WriteFile(corruptPath, []byte("tampered"), 0644); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(fakeRegistry(map[string][]byte{"latest": raw}, blobs))
	defer srv.Close()

	keep := func(path string, err *migrate.DigestMismatchError) migrate.CorruptionAction {
		return migrate.KeepCorrupted
	}
	rep, err := mustRepairer(t, c, testRemote(srv), keep).Repair(context.Background(), c.Primary, ref)
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if rep.Intact != 1 || rep.Fetched != 2 || rep.Failed != 0 {
		t.Fatalf("unexpected report: %+v", rep)
	}

	// Both blobs restored and clean.
	if err := migrate.VerifyBlob(cache.BlobPath(c.Primary, missing), missing); err != nil {
		t.Errorf("missing blob not restored: %v", err)
	}
	if err := migrate.VerifyBlob(corruptPath, corrupt); err != nil {
		t.Errorf("corrupt blob not restored: %v", err)
	}

	// The tampered copy was quarantined, not lost.
	if _, err := os.Stat(corruptPath + migrate.CorruptedSuffix); err != nil {
		t.Errorf("quarantined file missing: %v", err)
	}
}

func TestRepairRefetchesManifest(t *testing.T) {
	c := cache.New(t.TempDir(), t.TempDir())
	ref := cache.Ref{Namespace: "library", Name: "modela", Tag: "latest"}
	raw, blobs := buildManifest(t, "config-a", "weights-a")
	installModel(t, c, c.Primary, ref, raw, blobs)

	if err := os.Remove(c.ManifestPath(c.Primary, ref)); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(fakeRegistry(map[string][]byte{"latest": raw}, blobs))
	defer srv.Close()

	rep, err := mustRepairer(t, c, testRemote(srv), noCorruption(t)).Repair(context.Background(), c.Primary, ref)
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if !rep.ManifestFetched {
		t.Error("expected manifest to be re-downloaded")
	}
	if rep.Intact != 2 || rep.Fetched != 0 {
		t.Fatalf("unexpected report: %+v", rep)
	}

	// The manifest resolves again.
	if _, err := c.ResolveManifest(c.Primary, ref); err != nil {
		t.Errorf("manifest still unresolvable: %v", err)
	}
}

func TestRepairManifestUnavailableEverywhere(t *testing.T) {
	c := cache.New(t.TempDir(), t.TempDir())
	ref := cache.Ref{Namespace: "library", Name: "ghost", Tag: "latest"}

	srv := httptest.NewServer(fakeRegistry(nil, nil))
	defer srv.Close()

	_, err := mustRepairer(t, c, testRemote(srv), noCorruption(t)).Repair(context.Background(), c.Primary, ref)
	if err == nil {
		t.Fatal("expected error when manifest is unavailable everywhere")
	}
}

func mustRepairer(t *testing.T, c *cache.Cache, rem *Remote, handler migrate.CorruptionHandler) *Repairer {
	t.Helper()
	r, err := NewRepairer(c, rem, handler)
	if err != nil {
		t.Fatalf("NewRepairer: %v", err)
	}
	return r
}
