package cache

import (
	"path/filepath"
	"testing"
)

func TestParseRef(t *testing.T) {
	cases := []struct {
		in   string
		want Ref
	}{
		{"llama3", Ref{"library", "llama3", "latest"}},
		{"llama3:7b", Ref{"library", "llama3", "7b"}},
		{"someuser/llama3:custom", Ref{"someuser", "llama3", "custom"}},
		{"someuser/llama3", Ref{"someuser", "llama3", "latest"}},
	}
	for _, tc := range cases {
		got, err := ParseRef(tc.in)
		if err != nil {
			t.Fatalf("ParseRef(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ParseRef(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestParseRefRejectsInvalid(t *testing.T) {
	cases := []string{"", "  ", "a/b/c:d", "/name:tag", "name:", "ns/:tag"}
	for _, in := range cases {
		if ref, err := ParseRef(in); err == nil {
			t.Errorf("ParseRef(%q) = %+v, want error", in, ref)
		}
	}
}

func TestRefStringElidesLibrary(t *testing.T) {
	cases := []struct {
		ref  Ref
		want string
	}{
		{Ref{"library", "llama3", "latest"}, "llama3:latest"},
		{Ref{"someuser", "llama3", "custom"}, "someuser/llama3:custom"},
	}
	for _, tc := range cases {
		if got := tc.ref.String(); got != tc.want {
			t.Errorf("String() = %q, want %q", got, tc.want)
		}
	}
}

func TestManifestRelPath(t *testing.T) {
	ref := Ref{"library", "llama3", "7b"}

	want := filepath.Join("manifests", "registry.ollama.ai", "library", "llama3", "7b")
	if got := ref.ManifestRelPath(DefaultRegistry); got != want {
		t.Errorf("ManifestRelPath = %q, want %q", got, want)
	}
}
