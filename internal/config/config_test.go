package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OLLAMAUTIL_CONFIG_DIR", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Registry.Host != "registry.ollama.ai" {
		t.Errorf("registry host = %q", cfg.Registry.Host)
	}
	if cfg.Daemon.URL != "http://127.0.0.1:11434" {
		t.Errorf("daemon url = %q", cfg.Daemon.URL)
	}
	if cfg.Log.Level != "warn" || cfg.Log.Format != "text" {
		t.Errorf("log defaults = %q/%q", cfg.Log.Format, cfg.Log.Level)
	}
	if len(cfg.IgnoreNames) != 1 || cfg.IgnoreNames[0] != ".DS_Store" {
		t.Errorf("ignore names = %v", cfg.IgnoreNames)
	}
	if !strings.HasSuffix(cfg.Pointer.Link, filepath.Join(".ollama", "models")) {
		t.Errorf("pointer link = %q", cfg.Pointer.Link)
	}
	if cfg.Primary.Root != "" || cfg.Secondary.Root != "" {
		t.Errorf("cache roots should default empty, got %q and %q", cfg.Primary.Root, cfg.Secondary.Root)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OLLAMAUTIL_CONFIG_DIR", dir)

	content := `primary:
  root: /mnt/internal/ollama
secondary:
  root: ~/external/ollama
registry:
  host: registry.example.com
ignore_names:
  - .DS_Store
  - Thumbs.db
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Primary.Root != "/mnt/internal/ollama" {
		t.Errorf("primary root = %q", cfg.Primary.Root)
	}
	home, _ := os.UserHomeDir()
	if cfg.Secondary.Root != filepath.Join(home, "external", "ollama") {
		t.Errorf("secondary root not expanded: %q", cfg.Secondary.Root)
	}
	if cfg.Registry.Host != "registry.example.com" {
		t.Errorf("registry host = %q", cfg.Registry.Host)
	}
	if len(cfg.IgnoreNames) != 2 {
		t.Errorf("ignore names = %v", cfg.IgnoreNames)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OLLAMAUTIL_CONFIG_DIR", dir)

	content := "primary:\n  root: /from/file\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv("OLLAMAUTIL_PRIMARY_ROOT", "/from/env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Primary.Root != "/from/env" {
		t.Errorf("primary root = %q, want env override", cfg.Primary.Root)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unset roots")
	}

	cfg.Primary.Root = "/mnt/a"
	cfg.Secondary.Root = "/mnt/a"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for identical roots")
	}

	cfg.Secondary.Root = "/mnt/b"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("OLLAMAUTIL_CONFIG_DIR", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Primary.Root = "/mnt/internal/ollama"
	cfg.Secondary.Root = "/mnt/external/ollama"
	cfg.Log.Level = "debug"

	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	cfg2, err := Load()
	if err != nil {
		t.Fatalf("Load after save: %v", err)
	}
	if cfg2.Primary.Root != "/mnt/internal/ollama" {
		t.Errorf("primary root = %q", cfg2.Primary.Root)
	}
	if cfg2.Secondary.Root != "/mnt/external/ollama" {
		t.Errorf("secondary root = %q", cfg2.Secondary.Root)
	}
	if cfg2.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg2.Log.Level)
	}
	if cfg2.Registry.Host != "registry.ollama.ai" {
		t.Errorf("registry host = %q", cfg2.Registry.Host)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}

	if got := ExpandHome("~/caches/ollama"); got != filepath.Join(home, "caches", "ollama") {
		t.Errorf("ExpandHome(~/caches/ollama) = %q", got)
	}
	if got := ExpandHome("/abs/path"); got != "/abs/path" {
		t.Errorf("ExpandHome(/abs/path) = %q", got)
	}
	if got := ExpandHome(""); got != "" {
		t.Errorf("ExpandHome(empty) = %q", got)
	}
	if got := ExpandHome("~"); got != home {
		t.Errorf("ExpandHome(~) = %q", got)
	}
}
