// Package watch is the filesystem watcher (C7): fsnotify-based recursive
// directory watching with pause/resume, forwarding each raw event
// immediately to the active coordinator so C4 can apply its own debounce
// window. Grounded on the teacher's internal/watcher/file_watcher.go
// recursive-add and pause/resume shape.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/zipbul/gildash/internal/gildashlog"
	"github.com/zipbul/gildash/internal/indexer"
)

// skipDirNames are never recursed into, matching the teacher's hard-coded
// skip list generalized with the VCS metadata directory for this domain.
var skipDirNames = map[string]bool{
	".git":         true,
	"node_modules": true,
	".gildash":     true,
}

// Callback receives one coalescable watcher event at a time; the caller
// (normally Indexer.HandleWatcherEvent) is responsible for any debounce.
type Callback func(indexer.WatcherEvent)

// Watcher recursively watches Root for changes to files matching
// Extensions and forwards each one to Callback.
type Watcher struct {
	root       string
	extensions map[string]bool
	logger     gildashlog.Logger

	fsw      *fsnotify.Watcher
	cancel   context.CancelFunc
	doneCh   chan struct{}
	stopOnce sync.Once

	pausedMu sync.RWMutex
	paused   bool

	callback Callback
	semantic SemanticNotifier
}

// SemanticNotifier is the best-effort collaborator notified of file
// changes/deletes alongside the indexer (spec.md §4.7).
type SemanticNotifier interface {
	OnFileChanged(ctx context.Context, filePath string) error
	OnFileDeleted(ctx context.Context, filePath string) error
}

// New builds a Watcher rooted at root, watching files whose extension is
// in extensions. It does not start watching until Start is called.
func New(root string, extensions []string, logger gildashlog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = gildashlog.Nop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	extSet := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		extSet[e] = true
	}

	w := &Watcher{
		root:       root,
		extensions: extSet,
		logger:     logger,
		fsw:        fsw,
		doneCh:     make(chan struct{}),
	}
	if err := w.addRecursively(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// SetSemanticNotifier attaches an optional best-effort semantic collaborator.
func (w *Watcher) SetSemanticNotifier(s SemanticNotifier) {
	w.semantic = s
}

// Start begins forwarding events to cb until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context, cb Callback) error {
	w.callback = cb
	ctx, w.cancel = context.WithCancel(ctx)
	go w.loop(ctx)
	return nil
}

// Stop shuts the watcher down; idempotent.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		if w.cancel != nil {
			w.cancel()
			<-w.doneCh
		} else {
			close(w.doneCh)
		}
		err = w.fsw.Close()
	})
	return err
}

// Pause stops forwarding events without tearing down the underlying watch.
func (w *Watcher) Pause() {
	w.pausedMu.Lock()
	w.paused = true
	w.pausedMu.Unlock()
}

// Resume resumes forwarding.
func (w *Watcher) Resume() {
	w.pausedMu.Lock()
	w.paused = false
	w.pausedMu.Unlock()
}

func (w *Watcher) isPaused() bool {
	w.pausedMu.RLock()
	defer w.pausedMu.RUnlock()
	return w.paused
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warnf("watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursively(event.Name); err != nil {
				w.logger.Warnf("watch new directory %s: %v", event.Name, err)
			}
			return
		}
	}

	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if !w.extensions[filepath.Ext(event.Name)] {
		return
	}
	if w.isPaused() {
		return
	}

	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		rel = event.Name
	}
	rel = filepath.ToSlash(rel)

	evtType := indexer.EventUpdate
	switch {
	case event.Op&fsnotify.Create != 0:
		evtType = indexer.EventCreate
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		evtType = indexer.EventDelete
	}

	if w.callback != nil {
		w.callback(indexer.WatcherEvent{FilePath: rel, EventType: evtType})
	}

	if w.semantic != nil {
		if evtType == indexer.EventDelete {
			_ = w.semantic.OnFileDeleted(ctx, rel)
		} else {
			_ = w.semantic.OnFileChanged(ctx, rel)
		}
	}
}

func (w *Watcher) addRecursively(root string) error {
	if skipDirNames[filepath.Base(root)] {
		return nil
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", root, err)
	}
	if err := w.fsw.Add(root); err != nil {
		return fmt.Errorf("watch dir %s: %w", root, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() || skipDirNames[entry.Name()] {
			continue
		}
		if err := w.addRecursively(filepath.Join(root, entry.Name())); err != nil {
			w.logger.Warnf("%v", err)
		}
	}
	return nil
}
