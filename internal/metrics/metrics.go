// Package metrics collects task execution and search index counters for
// the ops endpoint. Counters are updated with atomics so recording never
// contends with the worker pool.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// TaskStat accumulates execution counts and time for one task kind.
type TaskStat struct {
	executions  atomic.Int64
	failures    atomic.Int64
	totalMillis atomic.Int64
}

// TaskStatSnapshot is a point-in-time copy of a TaskStat.
type TaskStatSnapshot struct {
	Executions  int64 `json:"executions"`
	Failures    int64 `json:"failures"`
	TotalMillis int64 `json:"total_millis"`
}

// Registry holds every metric the application exposes.
type Registry struct {
	mu        sync.Mutex
	taskStats map[string]*TaskStat

	indexDocs sync.Map // entity type -> *atomic.Int64
}

// NewRegistry creates an empty metrics registry.
func NewRegistry() *Registry {
	return &Registry{taskStats: make(map[string]*TaskStat)}
}

// RecordTask records one task execution of the given kind. Duration is
// recorded whether or not the task succeeded.
func (r *Registry) RecordTask(kind string, duration time.Duration, success bool) {
	stat := r.taskStat(kind)
	stat.executions.Add(1)
	stat.totalMillis.Add(duration.Milliseconds())
	if !success {
		stat.failures.Add(1)
	}
}

// SetIndexDocCount records the current document count for an entity type.
func (r *Registry) SetIndexDocCount(entityType string, count int64) {
	v, _ := r.indexDocs.LoadOrStore(entityType, new(atomic.Int64))
	v.(*atomic.Int64).Store(count)
}

// TaskSnapshot returns a copy of all task stats keyed by kind.
func (r *Registry) TaskSnapshot() map[string]TaskStatSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]TaskStatSnapshot, len(r.taskStats))
	for kind, stat := range r.taskStats {
		out[kind] = TaskStatSnapshot{
			Executions:  stat.executions.Load(),
			Failures:    stat.failures.Load(),
			TotalMillis: stat.totalMillis.Load(),
		}
	}
	return out
}

// IndexSnapshot returns the last recorded document count per entity type.
func (r *Registry) IndexSnapshot() map[string]int64 {
	out := make(map[string]int64)
	r.indexDocs.Range(func(key, value any) bool {
		out[key.(string)] = value.(*atomic.Int64).Load()
		return true
	})
	return out
}

func (r *Registry) taskStat(kind string) *TaskStat {
	r.mu.Lock()
	defer r.mu.Unlock()

	stat, ok := r.taskStats[kind]
	if !ok {
		stat = &TaskStat{}
		r.taskStats[kind] = stat
	}
	return stat
}
