package task

import (
	"context"
)

// Store defines the durable queue backing the task engine.
//
// The queue is the single shared mutable resource between workers: all
// coordination happens through TakeFirst's atomic claim, never through
// in-process locks shared between workers. Implementations must uphold two
// invariants: Save dedupes by Task.UniqueID, and TakeFirst never hands the
// same row to two owners.
// Version: 1.0
type Store interface {
	// Save upserts a task keyed by its UniqueID. If a task with the same
	// unique id is already queued the entry is kept, its priority is
	// refreshed to the new value, and its enqueue order is unchanged.
	Save(ctx context.Context, t Task) error

	// SaveAll applies Save to each task.
	SaveAll(ctx context.Context, tasks []Task) error

	// HasAvailable reports whether at least one unowned task exists. It is
	// a cheap gate checked before spawning a worker.
	HasAvailable(ctx context.Context) (bool, error)

	// TakeFirst atomically claims and returns the best available task for
	// the given owner: highest priority first, then oldest enqueue order.
	// Returns (nil, nil) when the queue is drained; that is the normal
	// "nothing to do" signal, not an error.
	TakeFirst(ctx context.Context, owner string) (Task, error)

	// Delete removes a task by unique id, normally after execution.
	Delete(ctx context.Context, uniqueID string) error

	// DeleteAllWithoutOwner removes every unclaimed task and returns the
	// number removed.
	DeleteAllWithoutOwner(ctx context.Context) (int64, error)

	// DeleteAll removes every task and returns the number removed.
	DeleteAll(ctx context.Context) (int64, error)

	// Disown clears the owner of every task and returns the number
	// affected. Called at startup: any task claimed before a crash is
	// assumed unfinished and becomes available again.
	Disown(ctx context.Context) (int64, error)

	// CountByKind returns the number of queued tasks grouped by kind.
	CountByKind(ctx context.Context) (map[string]int, error)
}
