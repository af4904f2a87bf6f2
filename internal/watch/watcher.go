// Package watch turns file-system changes in the vault into per-document
// change notifications.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/quipex/habit-button/internal/models"
)

// Change kinds passed to EventCallback.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

// DefaultDebounce coalesces the write bursts editors produce on save.
const DefaultDebounce = 150 * time.Millisecond

// EventCallback is called once per changed document after debouncing.
// path is slash-separated and relative to the vault root.
type EventCallback func(kind string, path string)

// Lister lists the Markdown documents under a vault directory.
type Lister interface {
	List(dir string) ([]models.Document, error)
}

// Watch runs an fsnotify watcher on the vault root until ctx is cancelled.
//
// New directories are added to the watch list as they appear. Renames
// schedule a reconciliation against a fresh listing so documents moved
// together with their directory are reported too.
func Watch(ctx context.Context, store Lister, vaultRoot string, debounce time.Duration, logger *slog.Logger, cb EventCallback) error {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, vaultRoot); err != nil {
		return err
	}

	known := make(map[string]struct{})
	if docs, err := store.List(""); err == nil {
		for _, d := range docs {
			known[d.Path] = struct{}{}
		}
	}

	logger.Info("watcher: started", slog.String("root", vaultRoot))

	pending := make(map[string]string)
	var flushTimer *time.Timer
	var flushCh <-chan time.Time
	reconcile := false

	schedule := func() {
		if flushTimer == nil {
			flushTimer = time.NewTimer(debounce)
			flushCh = flushTimer.C
		} else {
			flushTimer.Reset(debounce)
		}
	}
	record := func(kind, rel string) {
		pending[rel] = merge(pending[rel], kind)
		schedule()
	}

	for {
		select {
		case <-ctx.Done():
			if flushTimer != nil {
				flushTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-flushCh:
			if reconcile {
				reconcileListing(store, known, pending, logger)
				reconcile = false
			}
			flush(pending, known, logger, cb)
			pending = make(map[string]string)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					for _, rel := range markdownUnder(vaultRoot, absPath) {
						record(KindCreated, rel)
					}
					continue
				}
			}

			if !strings.HasSuffix(strings.ToLower(absPath), ".md") {
				if ev.Op&(fsnotify.Rename|fsnotify.Remove) != 0 {
					// A directory may have moved away with its documents.
					reconcile = true
					schedule()
				}
				continue
			}

			rel, relErr := filepath.Rel(vaultRoot, absPath)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			if hidden(rel) {
				continue
			}

			switch {
			case ev.Op&fsnotify.Create != 0:
				record(KindCreated, rel)
			case ev.Op&fsnotify.Write != 0:
				record(KindUpdated, rel)
			case ev.Op&fsnotify.Remove != 0:
				record(KindDeleted, rel)
			case ev.Op&fsnotify.Rename != 0:
				// fsnotify reports the old path only; the new one arrives
				// as a Create when it stays inside a watched directory.
				record(KindDeleted, rel)
				reconcile = true
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// merge folds a new event into the pending kind of a path.
func merge(prev, next string) string {
	switch {
	case prev == "":
		return next
	case prev == KindCreated && next == KindUpdated:
		return KindCreated
	case prev == KindDeleted && next == KindCreated:
		return KindUpdated
	case prev == KindCreated && next == KindDeleted:
		return ""
	}
	return next
}

func flush(pending map[string]string, known map[string]struct{}, logger *slog.Logger, cb EventCallback) {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		kind := pending[p]
		if kind == "" {
			continue
		}
		if kind == KindDeleted {
			if _, ok := known[p]; !ok {
				continue
			}
			delete(known, p)
		} else {
			if _, ok := known[p]; ok && kind == KindCreated {
				kind = KindUpdated
			}
			known[p] = struct{}{}
		}
		logger.Debug("watcher: change", slog.String("path", p), slog.String("op", kind))
		if cb != nil {
			cb(kind, p)
		}
	}
}

// reconcileListing adds deletions for known documents that vanished and
// creations for listed documents that were never reported.
func reconcileListing(store Lister, known map[string]struct{}, pending map[string]string, logger *slog.Logger) {
	docs, err := store.List("")
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}
	disk := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		disk[d.Path] = struct{}{}
		if _, ok := known[d.Path]; !ok && pending[d.Path] == "" {
			pending[d.Path] = KindCreated
		}
	}
	for p := range known {
		if _, ok := disk[p]; !ok {
			pending[p] = KindDeleted
		}
	}
}

// markdownUnder lists .md files below dir relative to vaultRoot.
func markdownUnder(vaultRoot, dir string) []string {
	var out []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(strings.ToLower(path), ".md") {
			return nil
		}
		rel, relErr := filepath.Rel(vaultRoot, path)
		if relErr != nil {
			return nil
		}
		if rel = filepath.ToSlash(rel); !hidden(rel) {
			out = append(out, rel)
		}
		return nil
	})
	return out
}

func hidden(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

// addDirsRecursive adds root and all its non-hidden subdirectories.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
