package task

import (
	"context"
	"sync"
)

// MemStore is an in-memory Store with the full queue semantics: dedupe by
// unique id, priority-then-FIFO claim ordering, and atomic single-claim.
// It backs the memory storage mode and most of the engine's tests.
type MemStore struct {
	mu      sync.Mutex
	entries map[string]*memEntry
	nextSeq int64
}

type memEntry struct {
	task  Task
	prio  int
	owner string
	seq   int64
}

// NewMemStore creates an empty in-memory task store.
func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[string]*memEntry)}
}

func (s *MemStore) Save(ctx context.Context, t Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.save(t)
	return nil
}

func (s *MemStore) SaveAll(ctx context.Context, tasks []Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tasks {
		s.save(t)
	}
	return nil
}

// save must be called with the lock held. A duplicate save refreshes the
// priority but keeps the original payload and enqueue order, matching the
// SQL store's upsert.
func (s *MemStore) save(t Task) {
	id := t.UniqueID()
	if entry, ok := s.entries[id]; ok {
		prio := ClampPriority(t.Priority())
		if prio == entry.prio {
			return
		}
		entry.prio = prio
		// The stored task must report the refreshed priority too, not
		// just order by it.
		if refreshed, err := reprioritize(entry.task, prio); err == nil {
			entry.task = refreshed
		}
		return
	}
	s.nextSeq++
	s.entries[id] = &memEntry{
		task: t,
		prio: ClampPriority(t.Priority()),
		seq:  s.nextSeq,
	}
}

// reprioritize rebuilds a task with its original payload at a new
// priority.
func reprioritize(t Task, priority int) (Task, error) {
	payload, err := EncodePayload(t)
	if err != nil {
		return nil, err
	}
	return DecodeTask(t.Kind(), payload, priority, t.GroupID())
}

func (s *MemStore) HasAvailable(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.entries {
		if entry.owner == "" {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemStore) TakeFirst(ctx context.Context, owner string) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *memEntry
	for _, entry := range s.entries {
		if entry.owner != "" {
			continue
		}
		if best == nil || entry.prio > best.prio ||
			(entry.prio == best.prio && entry.seq < best.seq) {
			best = entry
		}
	}
	if best == nil {
		return nil, nil
	}

	best.owner = owner
	return best.task, nil
}

func (s *MemStore) Delete(ctx context.Context, uniqueID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, uniqueID)
	return nil
}

func (s *MemStore) DeleteAllWithoutOwner(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, entry := range s.entries {
		if entry.owner == "" {
			delete(s.entries, id)
			n++
		}
	}
	return n, nil
}

func (s *MemStore) DeleteAll(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.entries))
	s.entries = make(map[string]*memEntry)
	return n, nil
}

func (s *MemStore) Disown(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, entry := range s.entries {
		if entry.owner != "" {
			entry.owner = ""
			n++
		}
	}
	return n, nil
}

func (s *MemStore) CountByKind(ctx context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int)
	for _, entry := range s.entries {
		out[entry.task.Kind()]++
	}
	return out, nil
}

var _ Store = (*MemStore)(nil)
