package gitops

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
)

func createTestRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hello"), 0o644)
	for _, args := range [][]string{
		{"git", "init", "--quiet"},
		{"git", "config", "user.email", "test@test.com"},
		{"git", "config", "user.name", "Test"},
		{"git", "add", "."},
		{"git", "commit", "--quiet", "-m", "initial"},
	} {
		c := exec.Command(args[0], args[1:]...)
		c.Dir = dir
		if out, err := c.CombinedOutput(); err != nil {
			t.Fatalf("%v: %s", err, out)
		}
	}
	return dir
}

func TestClone(t *testing.T) {
	repo := createTestRepo(t)
	dest := filepath.Join(t.TempDir(), "copy")
	if err := Clone(context.Background(), "file://"+repo, dest); err != nil {
		t.Fatalf("Clone: %v", err)
	}
	content, err := os.ReadFile(filepath.Join(dest, "hello.txt"))
	if err != nil {
		t.Fatalf("reading cloned file: %v", err)
	}
	if string(content) != "hello" {
		t.Errorf("content: got %q, want %q", content, "hello")
	}
}

func TestCloneRejectsOptionLikeURL(t *testing.T) {
	for _, url := range []string{"--upload-pack=evil", ""} {
		err := Clone(context.Background(), url, t.TempDir())
		if !errors.Is(err, ErrInvalidURL) {
			t.Errorf("url %q: expected ErrInvalidURL, got %v", url, err)
		}
	}
}

func TestCloneMissingRepo(t *testing.T) {
	createTestRepo(t)
	dest := filepath.Join(t.TempDir(), "copy")
	if err := Clone(context.Background(), "file:///nonexistent/repo", dest); err == nil {
		t.Fatal("expected error for missing repository")
	}
}

func TestCheckoutsCloneOnce(t *testing.T) {
	c, err := NewCheckouts(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	var calls atomic.Int32
	c.clone = func(_ context.Context, url, dest string) error {
		calls.Add(1)
		return os.MkdirAll(dest, 0o755)
	}

	var wg sync.WaitGroup
	dirs := make([]string, 8)
	for i := range dirs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dir, err := c.Checkout(context.Background(), "https://example.com/a.git")
			if err != nil {
				t.Errorf("Checkout: %v", err)
			}
			dirs[i] = dir
		}(i)
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("clone calls: got %d, want 1", calls.Load())
	}
	for _, d := range dirs {
		if d != dirs[0] {
			t.Errorf("got differing checkout dirs %q and %q", d, dirs[0])
		}
	}

	other, err := c.Checkout(context.Background(), "https://example.com/b.git")
	if err != nil {
		t.Fatal(err)
	}
	if other == dirs[0] {
		t.Error("distinct urls share a checkout")
	}

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dirs[0]); !os.IsNotExist(err) {
		t.Errorf("checkout survived Close: %v", err)
	}
}

func TestCheckoutsFailureNotCached(t *testing.T) {
	c, err := NewCheckouts(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	fail := true
	c.clone = func(_ context.Context, url, dest string) error {
		if fail {
			return errors.New("network down")
		}
		return os.MkdirAll(dest, 0o755)
	}
	if _, err := c.Checkout(context.Background(), "https://example.com/a.git"); err == nil {
		t.Fatal("expected clone error")
	}
	fail = false
	if _, err := c.Checkout(context.Background(), "https://example.com/a.git"); err != nil {
		t.Fatalf("retry: %v", err)
	}
}
