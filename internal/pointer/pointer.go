// Package pointer owns the cache pointer: the symlink an Ollama daemon
// resolves to find its model directory. Exactly one location is active at a
// time, and every switch is an atomic symlink replacement.
package pointer

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/sealad886/ollamautil/internal/cache"
)

// ErrUnknownCacheTarget indicates a pointer that resolves to neither known
// location root.
var ErrUnknownCacheTarget = errors.New("cache pointer targets an unknown location")

// Controller is the single writer of the cache pointer.
type Controller struct {
	Link string

	mu        sync.Mutex
	locations []cache.Location
}

// New builds a Controller for the symlink at link over the given locations.
func New(link string, locations ...cache.Location) *Controller {
	return &Controller{Link: link, locations: locations}
}

// Current resolves the pointer and matches it against the known roots.
// A pointer that exists but matches neither root is ErrUnknownCacheTarget.
func (c *Controller) Current() (cache.Location, error) {
	target, err := filepath.EvalSymlinks(c.Link)
	if err != nil {
		return cache.Location{}, fmt.Errorf("reading cache pointer %s: %w", c.Link, err)
	}

	for _, loc := range c.locations {
		root, err := filepath.EvalSymlinks(loc.Root)
		if err != nil {
			continue
		}
		if target == root {
			return loc, nil
		}
	}
	return cache.Location{}, fmt.Errorf("%w: %s resolves to %s", ErrUnknownCacheTarget, c.Link, target)
}

// SwitchTo points the cache at loc. The target is checked first and the
// pointer is left untouched when it is unavailable; the replacement itself
// is a symlink rename, so a reader never observes a missing pointer.
func (c *Controller) SwitchTo(loc cache.Location) error {
	if !loc.Available() {
		return fmt.Errorf("cannot point cache at %s: %w: %s", loc.ID, cache.ErrLocationUnavailable, loc.Root)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if info, err := os.Lstat(c.Link); err == nil && info.Mode()&os.ModeSymlink == 0 {
		return fmt.Errorf("cache pointer %s exists and is not a symlink, refusing to replace it", c.Link)
	}
	if err := os.MkdirAll(filepath.Dir(c.Link), 0755); err != nil {
		return fmt.Errorf("creating cache pointer directory: %w", err)
	}

	tmp := c.Link + ".tmp"
	// A leftover from an interrupted switch would make Symlink fail.
	_ = os.Remove(tmp)
	if err := os.Symlink(loc.Root, tmp); err != nil {
		return fmt.Errorf("creating cache pointer: %w", err)
	}
	if err := os.Rename(tmp, c.Link); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing cache pointer: %w", err)
	}

	slog.Info("cache pointer switched", "target", loc.ID, "root", loc.Root)
	return nil
}

// WithTemporaryTarget switches the pointer to loc, runs body, and restores
// the previous target on every exit path, panics included. When the pointer
// already targets loc, body runs without any switching. Calls must not be
// nested.
func (c *Controller) WithTemporaryTarget(loc cache.Location, body func() error) (err error) {
	prev, err := c.Current()
	if err != nil {
		return fmt.Errorf("cannot scope cache pointer: %w", err)
	}
	if prev.ID == loc.ID {
		return body()
	}

	if err := c.SwitchTo(loc); err != nil {
		return err
	}
	defer func() {
		if rerr := c.SwitchTo(prev); rerr != nil {
			if err == nil {
				err = fmt.Errorf("restoring cache pointer: %w", rerr)
			} else {
				slog.Error("restoring cache pointer", "target", prev.ID, "error", rerr)
			}
		}
	}()

	return body()
}
