package task

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/avellar/mangrove/internal/domain"
)

// Notifier is poked after tasks are saved so the processor re-checks the
// queue. The Processor implements it; tests substitute their own.
type Notifier interface {
	Notify()
}

// Emitter translates domain intents into tasks and submits them to the
// queue. It holds no business logic beyond fan-out and deterministic
// ordering of the fanned-out tasks.
type Emitter struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger
}

// NewEmitter creates an Emitter over the given queue store.
func NewEmitter(store Store, logger *slog.Logger) *Emitter {
	return &Emitter{
		store:  store,
		logger: logger.With("component", "task_emitter"),
	}
}

// SetNotifier wires the processor in after construction; emitter and
// processor reference each other, so one side is attached late.
func (e *Emitter) SetNotifier(n Notifier) {
	e.notifier = n
}

// ScanLibrary queues a filesystem scan of the library.
func (e *Emitter) ScanLibrary(ctx context.Context, libraryID uuid.UUID, deep bool, priority int) error {
	return e.submit(ctx, NewScanLibrary(libraryID, deep, priority))
}

// AnalyzeBook queues media analysis for one book.
func (e *Emitter) AnalyzeBook(ctx context.Context, book domain.Book, priority int) error {
	return e.submit(ctx, NewAnalyzeBook(book.ID, book.SeriesID, priority))
}

// AnalyzeBooks queues media analysis for a batch of books, ordered by
// series then number so queue progress reads in a human-sensible order.
func (e *Emitter) AnalyzeBooks(ctx context.Context, books []domain.Book, priority int) error {
	sorted := make([]domain.Book, len(books))
	copy(sorted, books)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].SeriesID != sorted[j].SeriesID {
			return sorted[i].SeriesID.String() < sorted[j].SeriesID.String()
		}
		if sorted[i].Metadata.NumberSort != sorted[j].Metadata.NumberSort {
			return sorted[i].Metadata.NumberSort < sorted[j].Metadata.NumberSort
		}
		return sorted[i].Name < sorted[j].Name
	})

	tasks := make([]Task, 0, len(sorted))
	for _, book := range sorted {
		tasks = append(tasks, NewAnalyzeBook(book.ID, book.SeriesID, priority))
	}
	return e.submit(ctx, tasks...)
}

// RefreshBookMetadata queues a metadata refresh for one book.
func (e *Emitter) RefreshBookMetadata(ctx context.Context, book domain.Book, capabilities []string, priority int) error {
	return e.submit(ctx, NewRefreshBookMetadata(book.ID, book.SeriesID, capabilities, priority))
}

// RefreshSeriesMetadata queues a metadata refresh for one series.
func (e *Emitter) RefreshSeriesMetadata(ctx context.Context, seriesID uuid.UUID, priority int) error {
	return e.submit(ctx, NewRefreshSeriesMetadata(seriesID, priority))
}

// AggregateSeriesMetadata queues re-aggregation of a series' metadata.
func (e *Emitter) AggregateSeriesMetadata(ctx context.Context, seriesID uuid.UUID, priority int) error {
	return e.submit(ctx, NewAggregateSeriesMetadata(seriesID, priority))
}

// RebuildIndex queues a search index rebuild for the given entity types,
// or for everything when types is empty.
func (e *Emitter) RebuildIndex(ctx context.Context, entityTypes []string, priority int) error {
	return e.submit(ctx, NewRebuildIndex(entityTypes, priority))
}

// DeleteBook queues removal of a book.
func (e *Emitter) DeleteBook(ctx context.Context, bookID uuid.UUID, priority int) error {
	return e.submit(ctx, NewDeleteBook(bookID, priority))
}

// DeleteSeries queues removal of a series and its books.
func (e *Emitter) DeleteSeries(ctx context.Context, seriesID uuid.UUID, priority int) error {
	return e.submit(ctx, NewDeleteSeries(seriesID, priority))
}

func (e *Emitter) submit(ctx context.Context, tasks ...Task) error {
	if len(tasks) == 0 {
		return nil
	}

	if err := e.store.SaveAll(ctx, tasks); err != nil {
		return fmt.Errorf("failed to save tasks: %w", err)
	}

	e.logger.Debug("tasks submitted", "count", len(tasks), "first", tasks[0].UniqueID())

	if e.notifier != nil {
		e.notifier.Notify()
	}
	return nil
}
