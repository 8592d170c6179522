// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/invowk/extman/internal/config"
)

// syncBuffer is a bytes.Buffer safe for the watcher goroutine and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitForOutput(t *testing.T, buf *syncBuffer, substr string, count int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Count(buf.String(), substr) >= count {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d x %q in output:\n%s", count, substr, buf.String())
}

func TestApp_WatchRevalidatesOnChange(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	blog := filepath.Join(root, "Blog.extmod")
	if err := os.MkdirAll(blog, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(blog, "extension.cue"), []byte(`name: "Blog"`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.SearchPaths = []config.ExtensionPath{config.ExtensionPath(root)}

	var stdout, stderr syncBuffer
	app := NewApp(Dependencies{
		Config: staticConfig{cfg: cfg},
		Stdout: &stdout,
		Stderr: &stderr,
	})

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan int, 1)
	go func() { done <- app.Run(ctx, []string{"watch", "--debounce", "50ms"}) }()

	waitForOutput(t, &stdout, "✓ valid: 1 extension(s)", 1)
	waitForOutput(t, &stderr, "watching 1 director(ies)", 1)

	shop := filepath.Join(root, "Shop.extmod")
	if err := os.MkdirAll(shop, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(shop, "extension.toml"), []byte("dependencies = [\"Blog\"]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitForOutput(t, &stdout, "✓ valid: 2 extension(s)", 1)

	cancel()
	select {
	case code := <-done:
		if code != exitCodeOK {
			t.Errorf("exit code = %d, want %d\nstderr: %s", code, exitCodeOK, stderr.String())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}
}

func TestApp_WatchWithoutDirectories(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.SearchPaths = []config.ExtensionPath{config.ExtensionPath(filepath.Join(t.TempDir(), "absent"))}

	var stdout, stderr syncBuffer
	app := NewApp(Dependencies{
		Config: staticConfig{cfg: cfg},
		Stdout: &stdout,
		Stderr: &stderr,
	})

	if code := app.Run(t.Context(), []string{"watch"}); code != exitCodeError {
		t.Errorf("exit code = %d, want %d", code, exitCodeError)
	}
	if !strings.Contains(stderr.String(), "no watchable directories") {
		t.Errorf("stderr = %q", stderr.String())
	}
}
