// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package indexer

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/jeranaias/hybridqa/internal/logging"
)

// DefaultDebounce is how long the documents directory must stay quiet
// before a rebuild starts.
const DefaultDebounce = 2 * time.Second

// Watcher rebuilds the index whenever supported files under the documents
// directory change. Every rebuild is a full Build; bursts of events
// (editors writing temp files, copying a folder) collapse into one.
type Watcher struct {
	ix       *Indexer
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	pending time.Time // last relevant event; zero when nothing is pending

	// OnBuild, when set, is called after every rebuild attempt.
	OnBuild func(*Report, error)
}

// NewWatcher creates a watcher for ix's documents directory.
func NewWatcher(ix *Indexer, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{ix: ix, watcher: fw, debounce: debounce, logger: logging.OrNop(logger)}, nil
}

// Run watches until ctx is done, then closes the underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	if err := w.addRecursive(w.ix.opts.DocsDir); err != nil {
		return err
	}
	w.logger.Info("watching documents", zap.String("dir", w.ix.opts.DocsDir))

	ticker := time.NewTicker(w.debounce / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))

		case <-ticker.C:
			if w.due(time.Now()) {
				w.rebuild(ctx)
			}
		}
	}
}

// addRecursive adds a directory and all its non-hidden subdirectories.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("cannot watch directory", zap.String("dir", path), zap.Error(err))
		}
		return nil
	})
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.addRecursive(event.Name)
			w.touch()
			return
		}
	}
	if !Supported(event.Name) || strings.HasPrefix(filepath.Base(event.Name), ".") {
		return
	}
	if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.touch()
	}
}

func (w *Watcher) touch() {
	w.mu.Lock()
	w.pending = time.Now()
	w.mu.Unlock()
}

// due reports whether a pending change has been quiet for the debounce
// interval, and clears it if so.
func (w *Watcher) due(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending.IsZero() || now.Sub(w.pending) < w.debounce {
		return false
	}
	w.pending = time.Time{}
	return true
}

func (w *Watcher) rebuild(ctx context.Context) {
	report, err := w.ix.Build(ctx)
	if err != nil {
		w.logger.Error("rebuild failed, previous index kept", zap.Error(err))
	}
	if w.OnBuild != nil {
		w.OnBuild(report, err)
	}
}
