package index

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/starford/infobox/internal/checksum"
	"github.com/starford/infobox/internal/storage"
)

// Change kinds.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// Change describes one index mutation made by the watcher.
type Change struct {
	Kind string
	Path string
	// Stale lists other notes whose infoboxes link to Path. It is only set
	// for created and deleted notes, since those are the changes that flip
	// link resolution elsewhere.
	Stale []string
}

// ChangeFunc receives every change applied to the index.
type ChangeFunc func(Change)

// WithStale returns c with Stale filled in when its kind calls for it.
func (db *DB) WithStale(c Change) (Change, error) {
	if c.Kind == ChangeUpdated {
		return c, nil
	}
	stale, err := db.StaleInfoboxes(c.Path)
	if err != nil {
		return c, err
	}
	c.Stale = stale
	return c, nil
}

const (
	// settleDelay is how long a note must stay quiet before it is reindexed.
	// Editors tend to emit several writes per save.
	settleDelay = 100 * time.Millisecond
	// reconcileDelay debounces the full pass that follows a rename.
	reconcileDelay = 200 * time.Millisecond
)

type watcher struct {
	db       *DB
	store    storage.Provider
	root     string
	logger   *slog.Logger
	onChange ChangeFunc

	fsw     *fsnotify.Watcher
	pending map[string]struct{}
}

// Watch starts an fsnotify watcher on the vault root and keeps the index in
// step with the notes on disk until ctx is cancelled. onChange, when set, is
// called after every index mutation.
//
// New directories created at runtime are added to the watch list. A rename
// triggers a reconciliation pass over the whole vault, since fsnotify only
// reports the old name.
func Watch(ctx context.Context, db *DB, store storage.Provider, vaultRoot string, logger *slog.Logger, onChange ChangeFunc) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := addDirsRecursive(fsw, vaultRoot); err != nil {
		return err
	}

	w := &watcher{
		db:       db,
		store:    store,
		root:     vaultRoot,
		logger:   logger,
		onChange: onChange,
		fsw:      fsw,
		pending:  make(map[string]struct{}),
	}
	logger.Info("watcher: started", slog.String("root", vaultRoot))
	return w.run(ctx)
}

func (w *watcher) run(ctx context.Context) error {
	settle := newDebounce(settleDelay)
	reconcile := newDebounce(reconcileDelay)
	defer settle.stop()
	defer reconcile.stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher: stopped")
			return nil

		case <-settle.C():
			w.flush()

		case <-reconcile.C():
			w.reconcile()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			switch w.handle(ev) {
			case actionSettle:
				settle.arm()
			case actionReconcile:
				settle.arm()
				reconcile.arm()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.String("error", err.Error()))
		}
	}
}

type action int

const (
	actionNone action = iota
	actionSettle
	actionReconcile
)

// handle records ev and reports which timer it needs.
func (w *watcher) handle(ev fsnotify.Event) action {
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.watchNewDir(ev.Name)
			return actionSettle
		}
	}
	if !strings.HasSuffix(ev.Name, ".md") {
		return actionNone
	}
	rel, ok := w.rel(ev.Name)
	if !ok {
		return actionNone
	}
	w.pending[rel] = struct{}{}
	if ev.Op&fsnotify.Rename != 0 {
		return actionReconcile
	}
	return actionSettle
}

func (w *watcher) watchNewDir(dir string) {
	if err := addDirsRecursive(w.fsw, dir); err != nil {
		w.logger.Warn("watcher: add new dir failed",
			slog.String("path", dir),
			slog.String("error", err.Error()))
		return
	}
	w.logger.Debug("watcher: watching new dir", slog.String("path", dir))

	// Files may have landed before the watch was in place.
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(p, ".md") {
			return nil
		}
		if rel, ok := w.rel(p); ok {
			w.pending[rel] = struct{}{}
		}
		return nil
	})
}

// flush brings every pending path in line with the disk.
func (w *watcher) flush() {
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	clear(w.pending)
	sort.Strings(paths)

	for _, p := range paths {
		if kind, ok := w.apply(p); ok {
			w.emit(Change{Kind: kind, Path: p})
		}
	}
}

// apply reindexes or removes one note and reports the resulting change kind.
// Unchanged content yields no change.
func (w *watcher) apply(rel string) (string, bool) {
	known, err := w.db.GetChecksum(rel)
	if err != nil {
		w.logger.Warn("watcher: checksum lookup failed", slog.String("path", rel), slog.String("error", err.Error()))
		return "", false
	}

	data, err := w.store.Read(rel)
	if errors.Is(err, os.ErrNotExist) {
		if known == "" {
			return "", false
		}
		if err := w.db.DeleteNote(rel); err != nil {
			w.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
			return "", false
		}
		w.logger.Debug("watcher: deleted", slog.String("path", rel))
		return ChangeDeleted, true
	}
	if err != nil {
		w.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return "", false
	}

	if known != "" && checksum.Sum(data) == known {
		return "", false
	}
	if err := w.db.IndexFile(rel, data); err != nil {
		w.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
		return "", false
	}
	kind := ChangeUpdated
	if known == "" {
		kind = ChangeCreated
	}
	w.logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
	return kind, true
}

func (w *watcher) reconcile() {
	changes, err := syncChanges(w.db, w.store, w.logger)
	if err != nil {
		w.logger.Warn("reconcile: failed", slog.String("error", err.Error()))
		return
	}
	for _, c := range changes {
		w.emit(c)
	}
}

// emit fills in the stale infobox set and hands c to the callback.
func (w *watcher) emit(c Change) {
	if w.onChange == nil {
		return
	}
	c, err := w.db.WithStale(c)
	if err != nil {
		w.logger.Warn("watcher: stale infobox lookup failed", slog.String("path", c.Path), slog.String("error", err.Error()))
	}
	w.onChange(c)
}

func (w *watcher) rel(abs string) (string, bool) {
	rel, err := filepath.Rel(w.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// debounce is a resettable one-shot timer usable in a select loop.
type debounce struct {
	d time.Duration
	t *time.Timer
}

func newDebounce(d time.Duration) *debounce {
	t := time.NewTimer(d)
	t.Stop()
	return &debounce{d: d, t: t}
}

func (b *debounce) arm()                { b.t.Reset(b.d) }
func (b *debounce) stop()               { b.t.Stop() }
func (b *debounce) C() <-chan time.Time { return b.t.C }

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return w.Add(path)
		}
		return nil
	})
}
