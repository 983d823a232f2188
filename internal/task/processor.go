package task

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/avellar/mangrove/internal/events"
	"github.com/avellar/mangrove/internal/metrics"
)

// TaskHandler executes one task's side effects.
// Version: 1.0
type TaskHandler interface {
	// Handle runs the task. Errors mean the task failed; the processor
	// logs them and removes the task anyway (at-most-once execution).
	Handle(ctx context.Context, t Task) error
}

// DefaultPoolSize is the default number of concurrent workers.
const DefaultPoolSize = 8

// ProcessorConfig holds configuration for the task processor.
type ProcessorConfig struct {
	// PoolSize bounds how many tasks execute concurrently.
	// If zero or negative, DefaultPoolSize is used.
	PoolSize int
}

// Processor pulls tasks from the Store whenever capacity is available and
// dispatches them to the TaskHandler.
//
// The processor starts Stopped: even with tasks queued, nothing is
// dispatched until Start has recovered ownership via Store.Disown and
// marked the processor Ready. At most PoolSize tasks run concurrently; a
// worker that finishes a task keeps pulling until the queue is drained, so
// dispatch latency under load does not pay for a round trip through the
// outer loop.
type Processor struct {
	store   Store
	handler TaskHandler
	bus     *events.Bus
	metrics *metrics.Registry
	logger  *slog.Logger

	owner  string
	sem    chan struct{}
	notify chan struct{}

	started atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewProcessor creates a Processor. The bus and registry may be shared
// with the rest of the application; both receive one record per executed
// task.
func NewProcessor(
	store Store,
	handler TaskHandler,
	bus *events.Bus,
	registry *metrics.Registry,
	config ProcessorConfig,
	logger *slog.Logger,
) *Processor {
	poolSize := config.PoolSize
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return &Processor{
		store:   store,
		handler: handler,
		bus:     bus,
		metrics: registry,
		logger:  logger.With("component", "task_processor"),
		owner:   fmt.Sprintf("%s-%s", hostname, uuid.NewString()[:8]),
		sem:     make(chan struct{}, poolSize),
		notify:  make(chan struct{}, 1),
	}
}

// Start recovers crashed tasks and begins dispatching. A stopped
// processor can be started again; each start gets a fresh context.
func (p *Processor) Start() error {
	if p.started.Swap(true) {
		return nil
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())

	disowned, err := p.store.Disown(p.ctx)
	if err != nil {
		p.started.Store(false)
		return fmt.Errorf("failed to disown tasks on startup: %w", err)
	}
	if disowned > 0 {
		p.logger.Info("recovered tasks from previous run", "count", disowned)
	}

	p.wg.Add(1)
	go p.dispatchLoop()

	p.Notify()
	return nil
}

// Stop prevents further dispatch and waits for in-flight tasks to finish.
func (p *Processor) Stop() {
	if !p.started.Swap(false) {
		return
	}
	p.cancel()
	p.wg.Wait()
}

// Notify signals that a task may be available. It never blocks; concurrent
// notifications coalesce into one dispatch pass.
func (p *Processor) Notify() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *Processor) dispatchLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.notify:
			p.processAvailableTasks()
		}
	}
}

// processAvailableTasks spawns claim-and-execute workers while the queue
// has unowned tasks and the pool has free slots.
func (p *Processor) processAvailableTasks() {
	for p.started.Load() {
		available, err := p.store.HasAvailable(p.ctx)
		if err != nil {
			p.logger.Error("failed to check for available tasks", "error", err)
			return
		}
		if !available {
			return
		}

		select {
		case p.sem <- struct{}{}:
		default:
			// Pool is saturated; a finishing worker drains the queue itself.
			return
		}

		p.wg.Add(1)
		go p.runWorker()
	}
}

// runWorker claims and executes tasks until the queue is drained, then
// releases its pool slot.
func (p *Processor) runWorker() {
	defer p.wg.Done()
	defer func() { <-p.sem }()

	workerOwner := p.owner + "-" + uuid.NewString()[:8]

	for p.started.Load() {
		t, err := p.store.TakeFirst(p.ctx, workerOwner)
		if err != nil {
			p.logger.Error("failed to claim task", "error", err)
			return
		}
		if t == nil {
			// Another worker drained the queue. Not an error, just idle.
			return
		}

		p.execute(t)
	}
}

// execute runs one task, records its duration, and removes it from the
// queue whether it succeeded or not. Retry, if wanted, is the caller's
// job: re-emit a new task.
func (p *Processor) execute(t Task) {
	logger := p.logger.With("task_kind", t.Kind(), "task_id", t.UniqueID())

	start := time.Now()
	err := p.runHandler(t)
	duration := time.Since(start)

	if err != nil {
		logger.Error("task execution failed", "duration", duration, "error", err)
	} else {
		logger.Info("task completed", "duration", duration)
	}

	if p.metrics != nil {
		p.metrics.RecordTask(t.Kind(), duration, err == nil)
	}
	if p.bus != nil {
		p.bus.Publish(events.TaskFinished{
			Kind:     t.Kind(),
			UniqueID: t.UniqueID(),
			GroupID:  t.GroupID(),
			Success:  err == nil,
			Duration: duration,
		})
	}

	// Deletion must survive shutdown cancellation, otherwise a task that
	// just completed would run again after the next start.
	if err := p.store.Delete(context.Background(), t.UniqueID()); err != nil {
		logger.Error("failed to delete completed task", "error", err)
	}
}

// runHandler invokes the handler, converting a panic from domain code into
// an error so a single bad task cannot take down the pool.
func (p *Processor) runHandler(t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task handler panicked: %v", r)
		}
	}()
	return p.handler.Handle(p.ctx, t)
}
