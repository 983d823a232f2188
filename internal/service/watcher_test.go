package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avellar/mangrove/internal/domain"
	"github.com/avellar/mangrove/internal/store/memory"
	"github.com/avellar/mangrove/internal/task"
)

type watcherFixture struct {
	watcher *Watcher
	queue   *task.MemStore
	library *domain.Library
}

func newWatcherFixture(t *testing.T, debounce time.Duration) *watcherFixture {
	t.Helper()

	libraries := memory.NewLibraryRepository()
	library, err := domain.NewLibrary("Comics", t.TempDir())
	require.NoError(t, err)
	require.NoError(t, libraries.Save(context.Background(), library))

	queue := task.NewMemStore()
	emitter := task.NewEmitter(queue, testLogger())

	watcher := NewWatcher(libraries, emitter, debounce, testLogger())
	require.NoError(t, watcher.Start(context.Background()))
	t.Cleanup(func() {
		require.NoError(t, watcher.Stop())
	})

	return &watcherFixture{watcher: watcher, queue: queue, library: library}
}

func (f *watcherFixture) waitForScanTask(t *testing.T) task.Task {
	t.Helper()

	var claimed task.Task
	require.Eventually(t, func() bool {
		got, err := f.queue.TakeFirst(context.Background(), "test")
		require.NoError(t, err)
		if got == nil {
			return false
		}
		claimed = got
		return true
	}, 5*time.Second, 10*time.Millisecond, "no scan task scheduled")

	// Remove the claimed entry the way the processor does, so a later
	// re-save of the same unique id queues a fresh entry.
	require.NoError(t, f.queue.Delete(context.Background(), claimed.UniqueID()))
	return claimed
}

func TestWatcher_FileChangeSchedulesScan(t *testing.T) {
	t.Parallel()

	f := newWatcherFixture(t, 20*time.Millisecond)

	writeCBZ(t, filepath.Join(f.library.Root, "Saga v1.cbz"), 1)

	claimed := f.waitForScanTask(t)
	scan, ok := claimed.(task.ScanLibrary)
	require.True(t, ok)
	assert.Equal(t, f.library.ID, scan.LibraryID)
	assert.False(t, scan.Deep)
}

func TestWatcher_BurstCollapsesToOneScan(t *testing.T) {
	t.Parallel()

	f := newWatcherFixture(t, 50*time.Millisecond)

	for i := 0; i < 10; i++ {
		writeCBZ(t, filepath.Join(f.library.Root, "Saga v"+string(rune('0'+i))+".cbz"), 1)
	}

	f.waitForScanTask(t)

	// The debounce collapses the burst; nothing else is queued.
	time.Sleep(100 * time.Millisecond)
	ok, err := f.queue.HasAvailable(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWatcher_NewSubdirectoryIsWatched(t *testing.T) {
	t.Parallel()

	f := newWatcherFixture(t, 20*time.Millisecond)

	dir := filepath.Join(f.library.Root, "Saga")
	require.NoError(t, os.Mkdir(dir, 0o750))
	f.waitForScanTask(t)

	// A file inside the new directory triggers another scan, proving the
	// directory joined the watch set.
	writeCBZ(t, filepath.Join(dir, "Saga v1.cbz"), 1)
	f.waitForScanTask(t)
}

func TestWatcher_UnwatchedLibraryStopsScheduling(t *testing.T) {
	t.Parallel()

	f := newWatcherFixture(t, 20*time.Millisecond)
	f.watcher.UnwatchLibrary(f.library.Root)

	writeCBZ(t, filepath.Join(f.library.Root, "Saga v1.cbz"), 1)

	time.Sleep(100 * time.Millisecond)
	ok, err := f.queue.HasAvailable(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}
