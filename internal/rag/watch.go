package rag

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/koopa0/localrag/internal/errs"
	"github.com/koopa0/localrag/internal/log"
	"github.com/koopa0/localrag/internal/vectorstore"
)

// debounceDelay coalesces the event bursts editors emit for a single save.
const debounceDelay = 500 * time.Millisecond

// Watch starts watching a file or folder. Configuration is persisted before
// the live watcher attaches, so the watch survives a restart even if
// attaching fails mid-way.
func (s *System) Watch(ctx context.Context, path string, recursive bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errs.FileOp("resolve", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return errs.FileOp("stat", abs, err)
	}

	kind := "file"
	if info.IsDir() {
		kind = "folder"
	}

	wp := vectorstore.WatchedPath{Path: abs, Kind: kind, Recursive: recursive}
	if err := s.store.AddWatchedPath(ctx, wp); err != nil {
		return err
	}
	if err := s.watcher.add(abs, kind == "folder", recursive); err != nil {
		return err
	}

	s.logger.Info("watching path", "path", abs, "kind", kind, "recursive", recursive)
	return nil
}

// Unwatch removes persisted configuration and detaches the live watcher.
func (s *System) Unwatch(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errs.FileOp("resolve", path, err)
	}
	if err := s.store.RemoveWatchedPath(ctx, abs); err != nil {
		return err
	}
	s.watcher.remove(abs)
	s.logger.Info("stopped watching", "path", abs)
	return nil
}

// restoreWatches reattaches every persisted watched path at startup. A path
// that no longer exists is logged and skipped, not fatal.
func (s *System) restoreWatches(ctx context.Context) error {
	paths, err := s.store.ListWatchedPaths(ctx)
	if err != nil {
		return err
	}
	for _, wp := range paths {
		if err := s.watcher.add(wp.Path, wp.Kind == "folder", wp.Recursive); err != nil {
			s.logger.Warn("could not restore watch", "path", wp.Path, "error", err)
			continue
		}
		s.logger.Debug("watch restored", "path", wp.Path)
	}
	return nil
}

// watcher wraps fsnotify with per-file debouncing and routes changed files
// through the normal ingestion path.
type watcher struct {
	sys    *System
	fw     *fsnotify.Watcher
	logger log.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	roots   map[string]bool   // watched root -> recursive
	subs    map[string]string // attached subdirectory -> owning root

	done   chan struct{}
	closed sync.Once
	wg     sync.WaitGroup
}

func newWatcher(sys *System, logger log.Logger) (*watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errs.FileOp("watch", "", err)
	}
	w := &watcher{
		sys:     sys,
		fw:      fw,
		logger:  logger,
		pending: make(map[string]*time.Timer),
		roots:   make(map[string]bool),
		subs:    make(map[string]string),
		done:    make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// add attaches the path; for a recursive folder every subdirectory attaches
// too, since inotify-style watches are not recursive by themselves.
func (w *watcher) add(path string, isDir, recursive bool) error {
	if err := w.fw.Add(path); err != nil {
		return errs.FileOp("watch", path, err)
	}
	w.mu.Lock()
	w.roots[path] = recursive
	w.mu.Unlock()

	if !isDir || !recursive {
		return nil
	}
	return filepath.WalkDir(path, func(sub string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtree, skip
		}
		if d.IsDir() && sub != path {
			w.addSub(sub, path)
		}
		return nil
	})
}

// addSub attaches a subdirectory on behalf of a recursive root, recording the
// ownership so remove can detach the whole subtree later.
func (w *watcher) addSub(sub, root string) {
	if err := w.fw.Add(sub); err != nil {
		w.logger.Warn("could not watch subdirectory", "path", sub, "error", err)
		return
	}
	w.mu.Lock()
	w.subs[sub] = root
	w.mu.Unlock()
}

func (w *watcher) remove(path string) {
	w.mu.Lock()
	delete(w.roots, path)
	var owned []string
	for sub, root := range w.subs {
		if root == path {
			owned = append(owned, sub)
			delete(w.subs, sub)
		}
	}
	w.mu.Unlock()
	for _, sub := range owned {
		if err := w.fw.Remove(sub); err != nil {
			w.logger.Debug("watch remove", "path", sub, "error", err)
		}
	}
	if err := w.fw.Remove(path); err != nil {
		w.logger.Debug("watch remove", "path", path, "error", err)
	}
}

func (w *watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *watcher) handle(ev fsnotify.Event) {
	switch {
	case ev.Op.Has(fsnotify.Create), ev.Op.Has(fsnotify.Write):
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			// New directory under a recursive root joins the watch set.
			if root, ok := w.recursiveRootOf(ev.Name); ok {
				w.addSub(ev.Name, root)
			}
			return
		}
		w.schedule(ev.Name)
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		w.cancel(ev.Name)
		go func(path string) {
			if err := w.sys.store.DeleteChunks(context.Background(), path); err != nil {
				w.logger.Warn("could not remove chunks for deleted file", "path", path, "error", err)
			}
		}(ev.Name)
	}
}

func (w *watcher) recursiveRootOf(path string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for root, recursive := range w.roots {
		if recursive && strings.HasPrefix(path, root+string(filepath.Separator)) {
			return root, true
		}
	}
	return "", false
}

// schedule queues an ingestion for the path after the debounce window,
// resetting the window when the file changes again.
func (w *watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.pending[path]; ok {
		timer.Reset(debounceDelay)
		return
	}
	w.pending[path] = time.AfterFunc(debounceDelay, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		select {
		case <-w.done:
			return
		default:
		}
		w.ingest(path)
	})
}

func (w *watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.pending[path]; ok {
		timer.Stop()
		delete(w.pending, path)
	}
}

// ingest routes a changed file through IngestFile. Unsupported formats are
// expected here, as the watcher cannot pre-filter perfectly, and are only
// logged; every other failure is an error worth surfacing.
func (w *watcher) ingest(path string) {
	err := w.sys.IngestFile(context.Background(), path, IngestOptions{})
	if err == nil {
		return
	}
	var verr *errs.ValidationError
	if errors.As(err, &verr) {
		w.logger.Debug("skipping unsupported file", "path", path, "reason", verr.Error())
		return
	}
	w.logger.Error("watch-triggered ingestion failed", "path", path, "error", err)
}

func (w *watcher) close() {
	w.closed.Do(func() {
		close(w.done)
		w.mu.Lock()
		for path, timer := range w.pending {
			timer.Stop()
			delete(w.pending, path)
		}
		w.mu.Unlock()
		_ = w.fw.Close()
		w.wg.Wait()
	})
}
