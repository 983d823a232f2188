package service

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/avellar/mangrove/internal/store"
	"github.com/avellar/mangrove/internal/task"
)

// DefaultWatchDebounce is how long the watcher waits after the last
// filesystem event in a library before scheduling its scan.
const DefaultWatchDebounce = 5 * time.Second

// Watcher observes the library roots and schedules a scan when files
// change. Bursts of events (a large copy into a library) collapse into a
// single scan per library via a debounce timer.
type Watcher struct {
	libraries store.LibraryRepository
	emitter   *task.Emitter
	logger    *slog.Logger
	debounce  time.Duration

	fsw  *fsnotify.Watcher
	done chan struct{}

	mu     sync.Mutex
	roots  map[string]uuid.UUID
	timers map[uuid.UUID]*time.Timer
}

// NewWatcher creates a filesystem watcher over the registered libraries.
// A non-positive debounce falls back to DefaultWatchDebounce.
func NewWatcher(
	libraries store.LibraryRepository,
	emitter *task.Emitter,
	debounce time.Duration,
	logger *slog.Logger,
) *Watcher {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	return &Watcher{
		libraries: libraries,
		emitter:   emitter,
		logger:    logger.With("component", "watcher"),
		debounce:  debounce,
		done:      make(chan struct{}),
		roots:     make(map[string]uuid.UUID),
		timers:    make(map[uuid.UUID]*time.Timer),
	}
}

// Start registers every library root (recursively, fsnotify does not
// watch subtrees on its own) and begins dispatching events.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	w.fsw = fsw

	libraries, err := w.libraries.FindAll(ctx)
	if err != nil {
		fsw.Close()
		return fmt.Errorf("failed to load libraries to watch: %w", err)
	}
	for _, library := range libraries {
		if err := w.WatchLibrary(library.ID, library.Root); err != nil {
			w.logger.Warn("cannot watch library root",
				"library_id", library.ID,
				"root", library.Root,
				"error", err)
		}
	}

	go w.loop()
	return nil
}

// WatchLibrary adds a library root and its subdirectories to the watch
// set. Safe to call while the watcher runs, for libraries added later.
func (w *Watcher) WatchLibrary(libraryID uuid.UUID, root string) error {
	w.mu.Lock()
	w.roots[root] = libraryID
	w.mu.Unlock()

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
		return w.fsw.Add(path)
	})
}

// UnwatchLibrary stops watching a removed library's root.
func (w *Watcher) UnwatchLibrary(root string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.roots, root)
	// fsnotify removes subdirectory watches as the paths disappear; the
	// root itself is dropped explicitly.
	_ = w.fsw.Remove(root)
}

// Stop cancels pending scans and closes the underlying watcher.
func (w *Watcher) Stop() error {
	close(w.done)

	w.mu.Lock()
	for _, timer := range w.timers {
		timer.Stop()
	}
	w.timers = make(map[uuid.UUID]*time.Timer)
	w.mu.Unlock()

	return w.fsw.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("filesystem watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// New directories must be added to the watch set or changes inside
	// them go unseen.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.fsw.Add(event.Name); err != nil {
				w.logger.Warn("cannot watch new directory", "path", event.Name, "error", err)
			}
		}
	}

	if !event.Op.Has(fsnotify.Create) &&
		!event.Op.Has(fsnotify.Write) &&
		!event.Op.Has(fsnotify.Remove) &&
		!event.Op.Has(fsnotify.Rename) {
		return
	}

	libraryID, ok := w.libraryFor(event.Name)
	if !ok {
		return
	}
	w.scheduleScan(libraryID)
}

// libraryFor resolves a changed path to the library whose root contains
// it, preferring the longest matching root when libraries nest.
func (w *Watcher) libraryFor(path string) (uuid.UUID, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var (
		best    string
		bestID  uuid.UUID
		matched bool
	)
	for root, id := range w.roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		if len(root) > len(best) {
			best, bestID, matched = root, id, true
		}
	}
	return bestID, matched
}

// scheduleScan arms or resets the library's debounce timer.
func (w *Watcher) scheduleScan(libraryID uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.timers[libraryID]; ok {
		timer.Reset(w.debounce)
		return
	}

	w.timers[libraryID] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, libraryID)
		w.mu.Unlock()

		select {
		case <-w.done:
			return
		default:
		}

		w.logger.Info("filesystem changes settled, scheduling scan", "library_id", libraryID)
		if err := w.emitter.ScanLibrary(context.Background(), libraryID, false, task.PriorityDefault); err != nil {
			w.logger.Error("failed to schedule scan", "library_id", libraryID, "error", err)
		}
	})
}
