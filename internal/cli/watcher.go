package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jwtly10/clarbook"
)

const defaultDebounce = 200 * time.Millisecond

// Watcher rebuilds pages as their sources change.
type Watcher struct {
	mu        sync.Mutex
	watcher   *fsnotify.Watcher
	processor *Processor
	// Last event time per path, flushed once it settles
	pending  map[string]time.Time
	debounce time.Duration
}

func NewWatcher(p *Processor) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Watcher{
		watcher:   watcher,
		processor: p,
		pending:   make(map[string]time.Time),
		debounce:  defaultDebounce,
	}, nil
}

// Run watches the source tree and the template until ctx is cancelled.
// Failures while rebuilding are logged and never stop the watch.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	if err := w.addTree(w.processor.src); err != nil {
		return err
	}
	templateDir := filepath.Dir(clarbook.MustAbs(w.processor.cfg.Template))
	if err := w.watcher.Add(templateDir); err != nil {
		slog.Warn("unable to watch template", "path", templateDir, "error", err)
	}

	slog.Info("watching for changes", "src", w.processor.src)

	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("watch error", "error", err)

		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

// addTree watches root and every directory below it that is not ignored.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.processor.Ignored(path, true) {
			return filepath.SkipDir
		}

		slog.Debug("watching directory", "path", path)
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if w.processor.Ignored(event.Name, true) {
				return
			}
			if err := w.addTree(event.Name); err != nil {
				slog.Warn("unable to watch new directory", "path", event.Name, "error", err)
			}
			return
		}
	}

	if !w.relevant(event.Name) {
		return
	}

	slog.Debug("change detected", "path", event.Name, "op", event.Op.String())
	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) relevant(path string) bool {
	if w.processor.IsTemplate(path) {
		return true
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	src := w.processor.src + string(os.PathSeparator)
	return strings.HasPrefix(abs, src) && !w.processor.Ignored(abs, false)
}

// flush applies the changes that have settled past the debounce window.
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			settled = append(settled, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	if len(settled) > 0 {
		sort.Strings(settled)
		w.apply(ctx, settled)
	}
}

// apply rebuilds for a batch of changed paths. A changed summary or template
// rebuilds the whole book, otherwise only the changed files are rebuilt and
// the chapters relinked.
func (w *Watcher) apply(ctx context.Context, paths []string) {
	for _, path := range paths {
		if w.processor.IsSummary(path) || w.processor.IsTemplate(path) {
			slog.Info("rebuilding book", "trigger", path)
			if _, err := w.processor.Build(ctx); err != nil {
				slog.Error("rebuild failed", "error", err)
			}
			return
		}
	}

	relink := false
	for _, path := range paths {
		result, err := w.processor.ProcessPath(path)
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("changed file is gone", "path", path)
			continue
		}
		if err != nil {
			slog.Error("failed to rebuild file", "path", path, "error", err)
			continue
		}

		slog.Info("rebuilt", "path", path, "duration", result.Duration)
		relink = relink || clarbook.IsMarkdown(path)
	}

	if relink {
		if err := w.processor.LinkChapters(ctx); err != nil {
			slog.Error("failed to relink chapters", "error", err)
		}
	}
}
