package cache

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	// DefaultRegistry is the registry segment Ollama writes into the
	// manifest tree.
	DefaultRegistry = "registry.ollama.ai"

	// DefaultNamespace is the namespace for official models. It is elided
	// in display and daemon-facing names.
	DefaultNamespace = "library"

	// DefaultTag is assumed when a reference carries no tag.
	DefaultTag = "latest"
)

// Ref identifies one tagged model in the cache.
type Ref struct {
	Namespace string
	Name      string
	Tag       string
}

// ParseRef parses "name", "name:tag" or "namespace/name:tag".
func ParseRef(s string) (Ref, error) {
	if strings.TrimSpace(s) == "" {
		return Ref{}, fmt.Errorf("empty model reference")
	}

	ns, rest := DefaultNamespace, s
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		ns, rest = rest[:i], rest[i+1:]
		if strings.ContainsRune(rest, '/') {
			return Ref{}, fmt.Errorf("invalid model reference %q: too many path segments", s)
		}
	}

	name, tag := rest, DefaultTag
	if i := strings.IndexByte(rest, ':'); i >= 0 {
		name, tag = rest[:i], rest[i+1:]
	}

	if ns == "" || name == "" || tag == "" {
		return Ref{}, fmt.Errorf("invalid model reference %q", s)
	}
	return Ref{Namespace: ns, Name: name, Tag: tag}, nil
}

// String renders the daemon-facing name, eliding the library namespace:
// "llama3:latest" or "someuser/llama3:custom".
func (r Ref) String() string {
	name := r.Name + ":" + r.Tag
	if r.Namespace != "" && r.Namespace != DefaultNamespace {
		return r.Namespace + "/" + name
	}
	return name
}

// ManifestRelPath returns the manifest path for r relative to a location
// root, using the given registry segment.
func (r Ref) ManifestRelPath(registry string) string {
	return filepath.Join("manifests", registry, r.Namespace, r.Name, r.Tag)
}
