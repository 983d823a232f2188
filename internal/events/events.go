package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is implemented by every domain event published on the bus.
type Event interface {
	// EventType returns a stable name for the event, used for logging.
	EventType() string
}

// Library events.

// LibraryAdded is published when a new library is registered.
type LibraryAdded struct {
	LibraryID uuid.UUID
}

// LibraryDeleted is published when a library is removed.
type LibraryDeleted struct {
	LibraryID uuid.UUID
}

// LibraryScanned is published after a full scan of a library completes.
type LibraryScanned struct {
	LibraryID    uuid.UUID
	BooksAdded   int
	BooksUpdated int
	BooksRemoved int
}

func (LibraryAdded) EventType() string   { return "library_added" }
func (LibraryDeleted) EventType() string { return "library_deleted" }
func (LibraryScanned) EventType() string { return "library_scanned" }

// Series events.

// SeriesAdded is published when a series is created.
type SeriesAdded struct {
	SeriesID  uuid.UUID
	LibraryID uuid.UUID
}

// SeriesUpdated is published when a series or its metadata changes.
type SeriesUpdated struct {
	SeriesID  uuid.UUID
	LibraryID uuid.UUID
}

// SeriesDeleted is published when a series is removed.
type SeriesDeleted struct {
	SeriesID uuid.UUID
}

func (SeriesAdded) EventType() string   { return "series_added" }
func (SeriesUpdated) EventType() string { return "series_updated" }
func (SeriesDeleted) EventType() string { return "series_deleted" }

// Book events.

// BookAdded is published when a book is created.
type BookAdded struct {
	BookID    uuid.UUID
	SeriesID  uuid.UUID
	LibraryID uuid.UUID
}

// BookUpdated is published when a book, its media or its metadata changes.
type BookUpdated struct {
	BookID    uuid.UUID
	SeriesID  uuid.UUID
	LibraryID uuid.UUID
}

// BookDeleted is published when a book is removed.
type BookDeleted struct {
	BookID   uuid.UUID
	SeriesID uuid.UUID
}

func (BookAdded) EventType() string   { return "book_added" }
func (BookUpdated) EventType() string { return "book_updated" }
func (BookDeleted) EventType() string { return "book_deleted" }

// Collection and read list events.

// CollectionAdded is published when a collection is created.
type CollectionAdded struct{ CollectionID uuid.UUID }

// CollectionUpdated is published when a collection changes.
type CollectionUpdated struct{ CollectionID uuid.UUID }

// CollectionDeleted is published when a collection is removed.
type CollectionDeleted struct{ CollectionID uuid.UUID }

func (CollectionAdded) EventType() string   { return "collection_added" }
func (CollectionUpdated) EventType() string { return "collection_updated" }
func (CollectionDeleted) EventType() string { return "collection_deleted" }

// ReadListAdded is published when a read list is created.
type ReadListAdded struct{ ReadListID uuid.UUID }

// ReadListUpdated is published when a read list changes.
type ReadListUpdated struct{ ReadListID uuid.UUID }

// ReadListDeleted is published when a read list is removed.
type ReadListDeleted struct{ ReadListID uuid.UUID }

func (ReadListAdded) EventType() string   { return "readlist_added" }
func (ReadListUpdated) EventType() string { return "readlist_updated" }
func (ReadListDeleted) EventType() string { return "readlist_deleted" }

// TaskFinished is published by the task processor after a task executes,
// whether it succeeded or not. It exists for observability consumers.
type TaskFinished struct {
	Kind     string
	UniqueID string
	GroupID  string
	Success  bool
	Duration time.Duration
}

func (TaskFinished) EventType() string { return "task_finished" }
