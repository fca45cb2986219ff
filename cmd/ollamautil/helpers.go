package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sealad886/ollamautil/internal/cache"
	"github.com/sealad886/ollamautil/internal/config"
	"github.com/sealad886/ollamautil/internal/logger"
	"github.com/sealad886/ollamautil/internal/migrate"
	"github.com/sealad886/ollamautil/internal/ollama"
	"github.com/sealad886/ollamautil/internal/pointer"
	"github.com/sealad886/ollamautil/internal/selection"
	"github.com/sealad886/ollamautil/internal/utils"
)

// app bundles the configured subsystems every command needs.
type app struct {
	cfg   *config.Config
	cache *cache.Cache
	ptr   *pointer.Controller
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.Log.Format, cfg.Log.Level)

	c := cache.New(cfg.Primary.Root, cfg.Secondary.Root)
	if cfg.Registry.Host != "" {
		c.Registry = cfg.Registry.Host
	}
	if len(cfg.IgnoreNames) > 0 {
		c.Ignore = cfg.IgnoreNames
	}

	return &app{
		cfg:   cfg,
		cache: c,
		ptr:   pointer.New(cfg.Pointer.Link, c.Primary, c.Secondary),
	}, nil
}

// requireRoots fails with configuration guidance when the cache roots are
// not set up yet.
func (a *app) requireRoots() error {
	return a.cfg.Validate()
}

// daemon returns a client for the configured Ollama daemon.
func (a *app) daemon() *ollama.Client {
	return ollama.New(a.cfg.Daemon.URL)
}

// location resolves a --location style flag value.
func (a *app) location(name string) (cache.Location, error) {
	switch strings.ToLower(name) {
	case "primary":
		return a.cache.Primary, nil
	case "secondary":
		return a.cache.Secondary, nil
	default:
		return cache.Location{}, fmt.Errorf("unknown location %q (want primary or secondary)", name)
	}
}

// currentLocation returns where the cache pointer currently points, with
// guidance when it points somewhere unexpected.
func (a *app) currentLocation() (cache.Location, error) {
	loc, err := a.ptr.Current()
	if err != nil {
		return cache.Location{}, fmt.Errorf("%w\nrun 'ollamautil toggle --to primary' or 'ollamautil toggle --to secondary' to set it", err)
	}
	return loc, nil
}

var stdin = bufio.NewReader(os.Stdin)

// readLine prompts and reads one trimmed line from stdin.
func readLine(prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// confirm asks a yes/no question, defaulting to no.
func confirm(prompt string) bool {
	resp, err := readLine(prompt + " [y/N] ")
	if err != nil {
		return false
	}
	resp = strings.ToLower(resp)
	return resp == "y" || resp == "yes"
}

// formatPath abbreviates the home directory to ~ for display.
func formatPath(p string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return p
	}
	if p == home {
		return "~"
	}
	if strings.HasPrefix(p, home+string(filepath.Separator)) {
		return "~" + p[len(home):]
	}
	return p
}

func truncateName(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// copyProgress returns a progress callback that redraws a single line per
// file being copied.
func copyProgress() func(migrate.Progress) {
	var current string
	return func(p migrate.Progress) {
		name := filepath.Base(p.File)
		if name != current {
			current = name
		}
		pct := int64(100)
		if p.Total > 0 {
			pct = p.Done * 100 / p.Total
		}
		fmt.Printf("\r  %-28s %3d%%  %s / %s   ",
			truncateName(name, 28), pct, utils.FormatBytes(p.Done), utils.FormatBytes(p.Total))
		if p.Done >= p.Total {
			fmt.Println()
		}
	}
}

// daemonProgress returns a progress callback for streaming pull/push
// status updates.
func daemonProgress() ollama.ProgressFunc {
	var lastStatus string
	return func(u ollama.ProgressUpdate) {
		if u.Status != lastStatus && lastStatus != "" {
			fmt.Println()
		}
		lastStatus = u.Status
		if u.Total > 0 {
			pct := u.Completed * 100 / u.Total
			fmt.Printf("\r  %-28s %3d%%  %s / %s   ",
				truncateName(u.Status, 28), pct, utils.FormatBytes(u.Completed), utils.FormatBytes(u.Total))
		} else {
			fmt.Printf("\r  %s   ", u.Status)
		}
	}
}

// presence renders a ✓ / - cell for inventory tables.
func presence(present bool) string {
	if present {
		return "✓"
	}
	return "-"
}

// resolveRefs parses model name arguments, or selects interactively from
// refs when args is empty.
func resolveRefs(args []string, available []cache.Ref) ([]cache.Ref, error) {
	if len(args) == 0 {
		return selectRefs(available)
	}
	var refs []cache.Ref
	for _, arg := range args {
		ref, err := cache.ParseRef(arg)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// selectRefs shows a numbered model list and reads an index selection.
func selectRefs(available []cache.Ref) ([]cache.Ref, error) {
	if len(available) == 0 {
		return nil, fmt.Errorf("no models to choose from")
	}

	for i, ref := range available {
		fmt.Printf("  %3d) %s\n", i+1, ref)
	}
	input, err := readLine("Select models (e.g. 1,3,5-7 or 'all'): ")
	if err != nil {
		return nil, err
	}
	return pickRefs(input, available)
}

// pickRefs applies an index selection string to available.
func pickRefs(input string, available []cache.Ref) ([]cache.Ref, error) {
	indices, err := selection.ParseIndices(input, len(available))
	if err != nil {
		return nil, err
	}
	refs := make([]cache.Ref, 0, len(indices))
	for _, i := range indices {
		refs = append(refs, available[i])
	}
	return refs, nil
}
