// Package registry talks to an Ollama model registry over the OCI
// distribution protocol, and repairs local cache entries from it.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/opencontainers/go-digest"
	"github.com/sealad886/ollamautil/internal/cache"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
)

// Remote is a client for one registry host.
type Remote struct {
	Host   string
	APIKey string

	// PlainHTTP selects http:// instead of https://, for local registries.
	PlainHTTP bool
}

// NewRemote creates a client for host. An empty host selects the default
// Ollama registry.
func NewRemote(host, apiKey string) *Remote {
	if host == "" {
		host = cache.DefaultRegistry
	}
	return &Remote{Host: host, APIKey: apiKey}
}

// repository builds an ORAS client for the repository holding ref.
func (r *Remote) repository(ref cache.Ref) (*remote.Repository, error) {
	repo, err := remote.NewRepository(fmt.Sprintf("%s/%s/%s", r.Host, ref.Namespace, ref.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to create repository client: %w", err)
	}
	repo.PlainHTTP = r.PlainHTTP

	repo.Client = &auth.Client{
		Credential: func(ctx context.Context, hostname string) (auth.Credential, error) {
			if r.APIKey == "" {
				return auth.EmptyCredential, nil
			}
			return auth.Credential{AccessToken: r.APIKey}, nil
		},
	}
	return repo, nil
}

// FetchManifest resolves ref's tag on the registry and returns the parsed
// manifest together with its raw bytes, suitable for writing to the local
// manifest path unchanged.
func (r *Remote) FetchManifest(ctx context.Context, ref cache.Ref) (*cache.Manifest, []byte, error) {
	repo, err := r.repository(ref)
	if err != nil {
		return nil, nil, err
	}

	desc, err := repo.Resolve(ctx, ref.Tag)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve tag %s: %w", ref.Tag, err)
	}

	manifestReader, err := repo.Fetch(ctx, desc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch manifest: %w", err)
	}
	defer manifestReader.Close()

	raw, err := io.ReadAll(manifestReader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m cache.Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, raw, nil
}

// FetchBlob streams the blob d of ref's repository into w.
func (r *Remote) FetchBlob(ctx context.Context, ref cache.Ref, d digest.Digest, w io.Writer) (int64, error) {
	repo, err := r.repository(ref)
	if err != nil {
		return 0, err
	}

	desc, err := repo.Blobs().Resolve(ctx, d.String())
	if err != nil {
		return 0, fmt.Errorf("failed to resolve blob %s: %w", d, err)
	}

	blobReader, err := repo.Blobs().Fetch(ctx, desc)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch blob %s: %w", d, err)
	}
	defer blobReader.Close()

	return io.Copy(w, blobReader)
}
