package search

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
)

// Committer is the strategy that applies incremental index mutations.
//
// The sync committer applies each mutation immediately: the document is
// searchable the moment the call returns. The async committer buffers
// mutations into a batch flushed on a debounce window, trading a small
// visibility delay for far fewer index commits under bursty write load
// (a library scan can produce hundreds of events in a second).
// Version: 1.0
type Committer interface {
	// Index upserts one document by id.
	Index(docID string, doc map[string]any) error

	// Delete removes one document by id.
	Delete(docID string) error

	// Flush forces pending mutations to be applied before returning.
	Flush() error

	// Close flushes and stops the committer.
	Close() error
}

// SyncCommitter applies every mutation immediately. Used by tests and
// deployments that need read-your-writes visibility.
type SyncCommitter struct {
	idx bleve.Index
}

// NewSyncCommitter creates a synchronous committer over the index.
func NewSyncCommitter(ix *Index) *SyncCommitter {
	return &SyncCommitter{idx: ix.Bleve()}
}

func (c *SyncCommitter) Index(docID string, doc map[string]any) error {
	if err := c.idx.Index(docID, doc); err != nil {
		return fmt.Errorf("failed to index document %s: %w", docID, err)
	}
	return nil
}

func (c *SyncCommitter) Delete(docID string) error {
	if err := c.idx.Delete(docID); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", docID, err)
	}
	return nil
}

func (c *SyncCommitter) Flush() error { return nil }
func (c *SyncCommitter) Close() error { return nil }

// DefaultCommitDelay is the default async debounce window.
const DefaultCommitDelay = time.Second

// AsyncCommitter coalesces mutations into one pending batch. The first
// mutation after a flush arms a timer; mutations arriving while the timer
// is armed ride along in the same batch. At most one flush is ever
// scheduled at a time.
type AsyncCommitter struct {
	idx    bleve.Index
	delay  time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	pending *bleve.Batch
	timer   *time.Timer
	closed  bool
}

// NewAsyncCommitter creates a debounced committer over the index. A
// non-positive delay falls back to DefaultCommitDelay.
func NewAsyncCommitter(ix *Index, delay time.Duration, logger *slog.Logger) *AsyncCommitter {
	if delay <= 0 {
		delay = DefaultCommitDelay
	}
	return &AsyncCommitter{
		idx:    ix.Bleve(),
		delay:  delay,
		logger: logger.With("component", "async_committer"),
	}
}

func (c *AsyncCommitter) Index(docID string, doc map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("committer is closed")
	}

	if c.pending == nil {
		c.pending = c.idx.NewBatch()
	}
	if err := c.pending.Index(docID, doc); err != nil {
		return fmt.Errorf("failed to stage document %s: %w", docID, err)
	}
	c.armLocked()
	return nil
}

func (c *AsyncCommitter) Delete(docID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("committer is closed")
	}

	if c.pending == nil {
		c.pending = c.idx.NewBatch()
	}
	c.pending.Delete(docID)
	c.armLocked()
	return nil
}

// armLocked schedules a flush if none is scheduled yet. Must be called
// with the mutex held.
func (c *AsyncCommitter) armLocked() {
	if c.timer != nil {
		return
	}
	c.timer = time.AfterFunc(c.delay, func() {
		if err := c.Flush(); err != nil {
			c.logger.Error("debounced index flush failed", "error", err)
		}
	})
}

// Flush applies the pending batch, if any.
func (c *AsyncCommitter) Flush() error {
	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	if batch == nil || batch.Size() == 0 {
		return nil
	}
	if err := c.idx.Batch(batch); err != nil {
		return fmt.Errorf("failed to apply index batch: %w", err)
	}
	return nil
}

// Close flushes outstanding mutations and rejects further ones.
func (c *AsyncCommitter) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.Flush()
}

var (
	_ Committer = (*SyncCommitter)(nil)
	_ Committer = (*AsyncCommitter)(nil)
)
