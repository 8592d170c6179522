// SPDX-License-Identifier: MPL-2.0

// Package watch reports extension manifest changes under a set of root
// directories.
//
// Events are coalesced over a debounce window so that an editor's
// write-then-rename sequence triggers one callback carrying every changed path.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when Config.Debounce is not positive.
const DefaultDebounce = 300 * time.Millisecond

var (
	// DefaultPatterns select extension directories and their manifests,
	// relative to a root. A root may be a search path holding *.extmod
	// children or an included *.extmod directory itself.
	DefaultPatterns = []string{
		"*.extmod",
		"*.extmod/extension.{cue,toml,yaml,yml}",
		"extension.{cue,toml,yaml,yml}",
	}

	defaultIgnores = []string{
		"**/.git/**",
		"**/*.swp",
		"**/*~",
		"**/.DS_Store",
	}

	// ErrNoRoots is returned by New when none of the roots can be watched.
	ErrNoRoots = errors.New("no watchable directories")
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("watcher already running")
)

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Roots are the directories to watch. Missing roots are skipped with a
		// warning, since a search path may not exist yet.
		Roots []string
		// Patterns are doublestar globs matched against a path relative to its
		// root. Empty means DefaultPatterns.
		Patterns []string
		// Debounce is the quiet period after the last event before OnChange fires.
		Debounce time.Duration
		// OnChange receives the absolute changed paths, sorted. Calls never overlap.
		OnChange func(ctx context.Context, changed []string) error
		// Logger receives warnings and callback errors. Nil discards them.
		Logger *slog.Logger
	}

	// Watcher monitors the roots and their direct subdirectories.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		roots    []string
		patterns []string
		debounce time.Duration
		logger   *slog.Logger
		started  atomic.Bool
	}
)

// New validates cfg and registers every existing root with fsnotify.
func New(cfg Config) (*Watcher, error) {
	patterns := cfg.Patterns
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("watch: invalid pattern %q", pat)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		patterns: patterns,
		debounce: debounce,
		logger:   logger,
	}

	if err := w.addRoots(); err != nil {
		if closeErr := fsw.Close(); closeErr != nil {
			logger.Warn("close fsnotify watcher", "error", closeErr)
		}
		return nil, err
	}
	return w, nil
}

// Roots returns the absolute directories actually being watched.
func (w *Watcher) Roots() []string {
	return slices.Clone(w.roots)
}

// Run processes events until ctx is canceled. It returns nil on cancellation
// and an error when fsnotify fails irrecoverably.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
	)

	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			// A slow callback is still running; retry once it had time to finish.
			mu.Lock()
			timer.Reset(w.debounce)
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()
		if len(changed) == 0 || w.cfg.OnChange == nil {
			return
		}

		if err := w.cfg.OnChange(ctx, changed); err != nil {
			w.logger.Warn("change handler failed", "error", err)
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("close fsnotify watcher", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: event channel closed")
			}
			root, rel, ok := w.relative(evt.Name)
			if !ok || isIgnored(rel) {
				continue
			}
			if evt.Has(fsnotify.Create) && filepath.Dir(evt.Name) == root {
				w.maybeAddDir(evt.Name)
			}
			if !w.matches(rel) {
				continue
			}

			w.logger.Debug("extension change", "path", evt.Name, "op", evt.Op.String())
			mu.Lock()
			pending[filepath.Clean(evt.Name)] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: error channel closed")
			}
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			w.logger.Warn("fsnotify error", "error", err)
		}
	}
}

// addRoots registers each root and its direct subdirectories. Extensions live
// one level below a search path, so deeper directories are never watched.
func (w *Watcher) addRoots() error {
	seen := make(map[string]bool, len(w.cfg.Roots))
	for _, root := range w.cfg.Roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			w.logger.Warn("skipping watch root", "path", root, "error", err)
			continue
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true

		entries, err := os.ReadDir(abs)
		if err != nil {
			w.logger.Warn("skipping watch root", "path", abs, "error", err)
			continue
		}
		if err := w.fsw.Add(abs); err != nil {
			return fmt.Errorf("watch: add %q: %w", abs, err)
		}
		w.roots = append(w.roots, abs)

		for _, e := range entries {
			if e.IsDir() && !isIgnored(e.Name()+"/") {
				w.maybeAddDir(filepath.Join(abs, e.Name()))
			}
		}
	}
	if len(w.roots) == 0 {
		return ErrNoRoots
	}
	return nil
}

func (w *Watcher) maybeAddDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.fsw.Add(path); err != nil {
		w.logger.Warn("watch new directory", "path", path, "error", err)
	}
}

// relative finds the deepest root containing path and returns the
// slash-separated path relative to it.
func (w *Watcher) relative(path string) (root, rel string, ok bool) {
	for _, r := range w.roots {
		candidate, err := filepath.Rel(r, path)
		if err != nil || candidate == ".." || strings.HasPrefix(candidate, ".."+string(filepath.Separator)) {
			continue
		}
		if !ok || len(r) > len(root) {
			root, rel, ok = r, filepath.ToSlash(candidate), true
		}
	}
	return root, rel, ok
}

func (w *Watcher) matches(rel string) bool {
	for _, pat := range w.patterns {
		if matched, err := doublestar.Match(pat, rel); err == nil && matched {
			return true
		}
	}
	return false
}

func isIgnored(rel string) bool {
	for _, pat := range defaultIgnores {
		if matched, err := doublestar.Match(pat, rel); err == nil && matched {
			return true
		}
	}
	return false
}
