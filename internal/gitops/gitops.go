// Package gitops fetches shallow working copies of repositories for metrics
// that inspect source trees.
package gitops

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

var ErrInvalidURL = errors.New("invalid repository url")

// Source hands out local checkouts keyed by clone URL.
type Source interface {
	Checkout(ctx context.Context, url string) (string, error)
}

// Clone makes a depth-one clone of url into dest.
func Clone(ctx context.Context, url, dest string) error {
	if url == "" || strings.HasPrefix(url, "-") {
		return fmt.Errorf("%w: %q", ErrInvalidURL, url)
	}
	cmd := exec.CommandContext(ctx, "git", "clone", "--quiet", "--depth", "1", "--", url, dest)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("git clone %s: %w", url, ctx.Err())
		}
		return fmt.Errorf("git clone: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return nil
}

// Checkouts clones each URL at most once per run under a private directory.
type Checkouts struct {
	root  string
	group singleflight.Group

	mu    sync.Mutex
	dirs  map[string]string
	seq   int
	clone func(ctx context.Context, url, dest string) error
}

func NewCheckouts(baseDir string) (*Checkouts, error) {
	root, err := os.MkdirTemp(baseDir, "netscore-checkouts-")
	if err != nil {
		return nil, fmt.Errorf("creating checkout dir: %w", err)
	}
	return &Checkouts{root: root, dirs: make(map[string]string), clone: Clone}, nil
}

func (c *Checkouts) Checkout(ctx context.Context, url string) (string, error) {
	c.mu.Lock()
	if dir, ok := c.dirs[url]; ok {
		c.mu.Unlock()
		return dir, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(url, func() (interface{}, error) {
		c.mu.Lock()
		c.seq++
		dest := filepath.Join(c.root, fmt.Sprintf("%03d", c.seq))
		c.mu.Unlock()

		if err := c.clone(ctx, url, dest); err != nil {
			os.RemoveAll(dest)
			return "", err
		}
		c.mu.Lock()
		c.dirs[url] = dest
		c.mu.Unlock()
		return dest, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Close removes every checkout.
func (c *Checkouts) Close() error {
	return os.RemoveAll(c.root)
}
