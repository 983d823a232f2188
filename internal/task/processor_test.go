package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avellar/mangrove/internal/events"
	"github.com/avellar/mangrove/internal/metrics"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// recordingHandler counts executions per unique id.
type recordingHandler struct {
	mu       sync.Mutex
	executed map[string]int
	fn       func(t Task) error
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{executed: make(map[string]int)}
}

func (h *recordingHandler) Handle(ctx context.Context, t Task) error {
	h.mu.Lock()
	h.executed[t.UniqueID()]++
	h.mu.Unlock()
	if h.fn != nil {
		return h.fn(t)
	}
	return nil
}

func (h *recordingHandler) counts() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]int, len(h.executed))
	for k, v := range h.executed {
		out[k] = v
	}
	return out
}

// waitDrained polls until the store is empty or the deadline passes.
func waitDrained(t *testing.T, store Store) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		counts, err := store.CountByKind(context.Background())
		require.NoError(t, err)
		if len(counts) == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("queue did not drain in time")
}

func TestProcessor_DrainsQueue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemStore()
	handler := newRecordingHandler()

	tasks := make([]Task, 0, 20)
	for i := 0; i < 20; i++ {
		tasks = append(tasks, NewAnalyzeBook(uuid.New(), uuid.New(), PriorityDefault))
	}
	require.NoError(t, store.SaveAll(ctx, tasks))

	p := NewProcessor(store, handler, nil, nil, ProcessorConfig{PoolSize: 4}, testLogger())
	require.NoError(t, p.Start())
	defer p.Stop()

	waitDrained(t, store)

	counts := handler.counts()
	assert.Len(t, counts, 20)
	for id, n := range counts {
		assert.Equal(t, 1, n, "task %s executed more than once", id)
	}
}

func TestProcessor_NotifyWakesDispatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemStore()
	handler := newRecordingHandler()

	p := NewProcessor(store, handler, nil, nil, ProcessorConfig{}, testLogger())
	require.NoError(t, p.Start())
	defer p.Stop()

	// Queue is empty at start; a save plus notify must get it executed.
	task := NewRefreshSeriesMetadata(uuid.New(), PriorityDefault)
	require.NoError(t, store.Save(ctx, task))
	p.Notify()

	waitDrained(t, store)
	assert.Equal(t, 1, handler.counts()[task.UniqueID()])
}

func TestProcessor_FailedTaskIsRemoved(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemStore()
	handler := newRecordingHandler()
	handler.fn = func(Task) error { return errors.New("boom") }

	task := NewScanLibrary(uuid.New(), false, PriorityDefault)
	require.NoError(t, store.Save(ctx, task))

	p := NewProcessor(store, handler, nil, nil, ProcessorConfig{PoolSize: 1}, testLogger())
	require.NoError(t, p.Start())
	defer p.Stop()

	// At-most-once: the failure is logged but the task does not linger.
	waitDrained(t, store)
	assert.Equal(t, 1, handler.counts()[task.UniqueID()])
}

func TestProcessor_PanicDoesNotKillPool(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemStore()

	panicTask := NewScanLibrary(uuid.New(), false, PriorityHighest)
	normalTask := NewRefreshSeriesMetadata(uuid.New(), PriorityDefault)

	handler := newRecordingHandler()
	handler.fn = func(t Task) error {
		if t.UniqueID() == panicTask.UniqueID() {
			panic("corrupt archive parser")
		}
		return nil
	}

	require.NoError(t, store.Save(ctx, panicTask))
	require.NoError(t, store.Save(ctx, normalTask))

	p := NewProcessor(store, handler, nil, nil, ProcessorConfig{PoolSize: 1}, testLogger())
	require.NoError(t, p.Start())
	defer p.Stop()

	waitDrained(t, store)
	assert.Equal(t, 1, handler.counts()[normalTask.UniqueID()])
}

func TestProcessor_StartRecoversOwnedTasks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemStore()
	handler := newRecordingHandler()

	// Simulate a crash: a task was claimed by a previous run and never
	// finished.
	task := NewAnalyzeBook(uuid.New(), uuid.New(), PriorityDefault)
	require.NoError(t, store.Save(ctx, task))
	claimed, err := store.TakeFirst(ctx, "dead-process")
	require.NoError(t, err)
	require.NotNil(t, claimed)

	p := NewProcessor(store, handler, nil, nil, ProcessorConfig{}, testLogger())
	require.NoError(t, p.Start())
	defer p.Stop()

	waitDrained(t, store)
	assert.Equal(t, 1, handler.counts()[task.UniqueID()])
}

func TestProcessor_RestartAfterStop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemStore()
	handler := newRecordingHandler()

	p := NewProcessor(store, handler, nil, nil, ProcessorConfig{PoolSize: 2}, testLogger())
	require.NoError(t, p.Start())
	p.Stop()

	// A stopped processor must come back up and dispatch again.
	require.NoError(t, p.Start())
	defer p.Stop()

	task := NewAnalyzeBook(uuid.New(), uuid.New(), PriorityDefault)
	require.NoError(t, store.Save(ctx, task))
	p.Notify()

	waitDrained(t, store)
	assert.Equal(t, 1, handler.counts()[task.UniqueID()])
}

func TestProcessor_PublishesTaskFinishedAndMetrics(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemStore()
	handler := newRecordingHandler()
	registry := metrics.NewRegistry()

	bus := events.NewBus(16, testLogger())
	defer bus.Close()

	var mu sync.Mutex
	var finished []events.TaskFinished
	bus.Subscribe(events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		if e, ok := event.(events.TaskFinished); ok {
			mu.Lock()
			finished = append(finished, e)
			mu.Unlock()
		}
		return nil
	}))

	task := NewRefreshSeriesMetadata(uuid.New(), PriorityDefault)
	require.NoError(t, store.Save(ctx, task))

	p := NewProcessor(store, handler, bus, registry, ProcessorConfig{}, testLogger())
	require.NoError(t, p.Start())
	defer p.Stop()

	waitDrained(t, store)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(finished) == 1
	}, 5*time.Second, 5*time.Millisecond)

	mu.Lock()
	event := finished[0]
	mu.Unlock()
	assert.Equal(t, KindRefreshSeriesMetadata, event.Kind)
	assert.Equal(t, task.UniqueID(), event.UniqueID)
	assert.True(t, event.Success)

	stats := registry.TaskSnapshot()
	require.Contains(t, stats, KindRefreshSeriesMetadata)
	assert.Equal(t, int64(1), stats[KindRefreshSeriesMetadata].Executions)
	assert.Equal(t, int64(0), stats[KindRefreshSeriesMetadata].Failures)
}

func TestProcessor_StopWaitsForInflightTasks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemStore()

	var completed atomic.Int32
	started := make(chan struct{})
	handler := newRecordingHandler()
	handler.fn = func(Task) error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		completed.Add(1)
		return nil
	}

	require.NoError(t, store.Save(ctx, NewScanLibrary(uuid.New(), false, PriorityDefault)))

	p := NewProcessor(store, handler, nil, nil, ProcessorConfig{PoolSize: 1}, testLogger())
	require.NoError(t, p.Start())

	<-started
	p.Stop()

	assert.Equal(t, int32(1), completed.Load())
}
