package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/avellar/mangrove/internal/domain"
	"github.com/avellar/mangrove/internal/events"
	"github.com/avellar/mangrove/internal/store"
)

// LibraryScanner walks a library root and reconciles it with the store.
type LibraryScanner interface {
	ScanLibrary(ctx context.Context, library domain.Library, deep bool) error
}

// BookAnalyzer inspects a book's archive file and persists its media state.
type BookAnalyzer interface {
	Analyze(ctx context.Context, book domain.Book) error
}

// MetadataRefresher applies metadata patches to books and series.
type MetadataRefresher interface {
	RefreshBookMetadata(ctx context.Context, book domain.Book, capabilities []string) error
	RefreshSeriesMetadata(ctx context.Context, series domain.Series) error
	AggregateSeriesMetadata(ctx context.Context, series domain.Series) error
}

// IndexRebuilder rebuilds the search index for the given document types.
type IndexRebuilder interface {
	RebuildIndex(ctx context.Context, entityTypes ...string) error
}

// Handler executes one task's side effects and, on success, emits the
// follow-up tasks that continue the pipeline. The chain edges are the
// correctness contract of the engine:
//
//	ScanLibrary → AnalyzeBook (per unknown/outdated book)
//	AnalyzeBook → RefreshBookMetadata
//	RefreshBookMetadata → RefreshSeriesMetadata
//	RefreshSeriesMetadata → AggregateSeriesMetadata
//
// A book is never left analyzed without a metadata refresh scheduled.
type Handler struct {
	libraries store.LibraryRepository
	series    store.SeriesRepository
	books     store.BookRepository

	scanner  LibraryScanner
	analyzer BookAnalyzer
	metadata MetadataRefresher
	indexer  IndexRebuilder

	emitter *Emitter
	bus     *events.Bus
	logger  *slog.Logger
}

// NewHandler creates a Handler over the given repositories and services.
func NewHandler(
	libraries store.LibraryRepository,
	series store.SeriesRepository,
	books store.BookRepository,
	scanner LibraryScanner,
	analyzer BookAnalyzer,
	metadata MetadataRefresher,
	indexer IndexRebuilder,
	emitter *Emitter,
	bus *events.Bus,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		libraries: libraries,
		series:    series,
		books:     books,
		scanner:   scanner,
		analyzer:  analyzer,
		metadata:  metadata,
		indexer:   indexer,
		emitter:   emitter,
		bus:       bus,
		logger:    logger.With("component", "task_handler"),
	}
}

// Handle dispatches one task to the matching domain operation.
//
// A referenced entity that no longer exists is not an error: the entity
// was deleted while the task sat in the queue. The task logs a warning
// and is dropped.
func (h *Handler) Handle(ctx context.Context, t Task) error {
	switch t := t.(type) {
	case ScanLibrary:
		return h.scanLibrary(ctx, t)
	case AnalyzeBook:
		return h.analyzeBook(ctx, t)
	case RefreshBookMetadata:
		return h.refreshBookMetadata(ctx, t)
	case RefreshSeriesMetadata:
		return h.refreshSeriesMetadata(ctx, t)
	case AggregateSeriesMetadata:
		return h.aggregateSeriesMetadata(ctx, t)
	case RebuildIndex:
		return h.indexer.RebuildIndex(ctx, t.EntityTypes...)
	case DeleteBook:
		return h.deleteBook(ctx, t)
	case DeleteSeries:
		return h.deleteSeries(ctx, t)
	default:
		return fmt.Errorf("no handler for task kind %q", t.Kind())
	}
}

func (h *Handler) scanLibrary(ctx context.Context, t ScanLibrary) error {
	library, err := h.libraries.FindByID(ctx, t.LibraryID)
	if errors.Is(err, store.ErrNotFound) {
		h.logger.Warn("cannot scan, library no longer exists", "library_id", t.LibraryID)
		return nil
	}
	if err != nil {
		return err
	}

	if err := h.scanner.ScanLibrary(ctx, *library, t.Deep); err != nil {
		return fmt.Errorf("failed to scan library %s: %w", library.Name, err)
	}

	books, err := h.books.FindByLibraryID(ctx, library.ID)
	if err != nil {
		return err
	}

	var toAnalyze []domain.Book
	for _, book := range books {
		switch book.Media.Status {
		case domain.MediaStatusUnknown, domain.MediaStatusOutdated:
			toAnalyze = append(toAnalyze, book)
		}
	}
	if len(toAnalyze) == 0 {
		return nil
	}

	h.logger.Info("scheduling analysis for books",
		"library", library.Name,
		"count", len(toAnalyze))
	return h.emitter.AnalyzeBooks(ctx, toAnalyze, PriorityDefault)
}

func (h *Handler) analyzeBook(ctx context.Context, t AnalyzeBook) error {
	book, err := h.books.FindByID(ctx, t.BookID)
	if errors.Is(err, store.ErrNotFound) {
		h.logger.Warn("cannot analyze, book no longer exists", "book_id", t.BookID)
		return nil
	}
	if err != nil {
		return err
	}

	if err := h.analyzer.Analyze(ctx, *book); err != nil {
		return fmt.Errorf("failed to analyze book %s: %w", book.Name, err)
	}

	return h.emitter.RefreshBookMetadata(ctx, *book, nil, PriorityDefault)
}

func (h *Handler) refreshBookMetadata(ctx context.Context, t RefreshBookMetadata) error {
	book, err := h.books.FindByID(ctx, t.BookID)
	if errors.Is(err, store.ErrNotFound) {
		h.logger.Warn("cannot refresh metadata, book no longer exists", "book_id", t.BookID)
		return nil
	}
	if err != nil {
		return err
	}

	if err := h.metadata.RefreshBookMetadata(ctx, *book, t.Capabilities); err != nil {
		return fmt.Errorf("failed to refresh metadata of book %s: %w", book.Name, err)
	}

	return h.emitter.RefreshSeriesMetadata(ctx, book.SeriesID, PriorityDefault)
}

func (h *Handler) refreshSeriesMetadata(ctx context.Context, t RefreshSeriesMetadata) error {
	series, err := h.series.FindByID(ctx, t.SeriesID)
	if errors.Is(err, store.ErrNotFound) {
		h.logger.Warn("cannot refresh metadata, series no longer exists", "series_id", t.SeriesID)
		return nil
	}
	if err != nil {
		return err
	}

	if err := h.metadata.RefreshSeriesMetadata(ctx, *series); err != nil {
		return fmt.Errorf("failed to refresh metadata of series %s: %w", series.Name, err)
	}

	return h.emitter.AggregateSeriesMetadata(ctx, series.ID, PriorityDefault)
}

func (h *Handler) aggregateSeriesMetadata(ctx context.Context, t AggregateSeriesMetadata) error {
	series, err := h.series.FindByID(ctx, t.SeriesID)
	if errors.Is(err, store.ErrNotFound) {
		h.logger.Warn("cannot aggregate metadata, series no longer exists", "series_id", t.SeriesID)
		return nil
	}
	if err != nil {
		return err
	}

	if err := h.metadata.AggregateSeriesMetadata(ctx, *series); err != nil {
		return fmt.Errorf("failed to aggregate metadata of series %s: %w", series.Name, err)
	}
	return nil
}

func (h *Handler) deleteBook(ctx context.Context, t DeleteBook) error {
	book, err := h.books.FindByID(ctx, t.BookID)
	if errors.Is(err, store.ErrNotFound) {
		h.logger.Warn("cannot delete, book no longer exists", "book_id", t.BookID)
		return nil
	}
	if err != nil {
		return err
	}

	if err := h.books.Delete(ctx, book.ID); err != nil {
		return err
	}
	h.bus.Publish(events.BookDeleted{BookID: book.ID, SeriesID: book.SeriesID})
	return nil
}

func (h *Handler) deleteSeries(ctx context.Context, t DeleteSeries) error {
	series, err := h.series.FindByID(ctx, t.SeriesID)
	if errors.Is(err, store.ErrNotFound) {
		h.logger.Warn("cannot delete, series no longer exists", "series_id", t.SeriesID)
		return nil
	}
	if err != nil {
		return err
	}

	books, err := h.books.FindBySeriesID(ctx, series.ID)
	if err != nil {
		return err
	}
	for _, book := range books {
		if err := h.books.Delete(ctx, book.ID); err != nil {
			return err
		}
		h.bus.Publish(events.BookDeleted{BookID: book.ID, SeriesID: series.ID})
	}

	if err := h.series.Delete(ctx, series.ID); err != nil {
		return err
	}
	h.bus.Publish(events.SeriesDeleted{SeriesID: series.ID})
	return nil
}

var _ TaskHandler = (*Handler)(nil)
