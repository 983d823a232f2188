package task

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avellar/mangrove/internal/domain"
	"github.com/avellar/mangrove/internal/events"
	"github.com/avellar/mangrove/internal/store/memory"
)

// fakeServices records which domain operations ran. Analyze flips the
// book to READY the way the real analyzer does, so the scan chain can be
// followed through the repositories.
type fakeServices struct {
	mu         sync.Mutex
	scanned    []uuid.UUID
	analyzed   []uuid.UUID
	bookRef    []uuid.UUID
	seriesRef  []uuid.UUID
	aggregated []uuid.UUID
	rebuilt    [][]string
}

func (f *fakeServices) ScanLibrary(ctx context.Context, library domain.Library, deep bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scanned = append(f.scanned, library.ID)
	return nil
}

func (f *fakeServices) Analyze(ctx context.Context, book domain.Book) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyzed = append(f.analyzed, book.ID)
	return nil
}

func (f *fakeServices) RefreshBookMetadata(ctx context.Context, book domain.Book, capabilities []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookRef = append(f.bookRef, book.ID)
	return nil
}

func (f *fakeServices) RefreshSeriesMetadata(ctx context.Context, series domain.Series) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seriesRef = append(f.seriesRef, series.ID)
	return nil
}

func (f *fakeServices) AggregateSeriesMetadata(ctx context.Context, series domain.Series) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aggregated = append(f.aggregated, series.ID)
	return nil
}

func (f *fakeServices) RebuildIndex(ctx context.Context, entityTypes ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rebuilt = append(f.rebuilt, entityTypes)
	return nil
}

type handlerFixture struct {
	handler   *Handler
	store     *MemStore
	services  *fakeServices
	libraries *memory.LibraryRepository
	series    *memory.SeriesRepository
	books     *memory.BookRepository
	bus       *events.Bus
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	logger := testLogger()
	taskStore := NewMemStore()
	services := &fakeServices{}
	libraries := memory.NewLibraryRepository()
	series := memory.NewSeriesRepository()
	books := memory.NewBookRepository()

	bus := events.NewBus(64, logger)
	t.Cleanup(bus.Close)

	emitter := NewEmitter(taskStore, logger)
	handler := NewHandler(
		libraries, series, books,
		services, services, services, services,
		emitter, bus, logger,
	)

	return &handlerFixture{
		handler:   handler,
		store:     taskStore,
		services:  services,
		libraries: libraries,
		series:    series,
		books:     books,
		bus:       bus,
	}
}

// seed creates a library with one series and one unanalyzed book.
func (f *handlerFixture) seed(t *testing.T) (*domain.Library, *domain.Series, *domain.Book) {
	t.Helper()
	ctx := context.Background()

	library, err := domain.NewLibrary("Comics", "/data/comics")
	require.NoError(t, err)
	require.NoError(t, f.libraries.Save(ctx, library))

	series, err := domain.NewSeries(library.ID, "Saga", "/data/comics/Saga")
	require.NoError(t, err)
	require.NoError(t, f.series.Save(ctx, series))

	book, err := domain.NewBook(series.ID, library.ID, "Saga v1", "/data/comics/Saga/Saga v1.cbz")
	require.NoError(t, err)
	require.NoError(t, f.books.Save(ctx, book))

	return library, series, book
}

// drain runs queued tasks through the handler synchronously until the
// queue is empty, returning the kinds in execution order.
func (f *handlerFixture) drain(t *testing.T) []string {
	t.Helper()
	ctx := context.Background()

	var kinds []string
	for {
		task, err := f.store.TakeFirst(ctx, "test-worker")
		require.NoError(t, err)
		if task == nil {
			return kinds
		}
		kinds = append(kinds, task.Kind())
		require.NoError(t, f.handler.Handle(ctx, task))
		require.NoError(t, f.store.Delete(ctx, task.UniqueID()))
	}
}

func TestHandler_ScanChainReachesAggregation(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)
	library, series, book := f.seed(t)
	ctx := context.Background()

	require.NoError(t, f.store.Save(ctx, NewScanLibrary(library.ID, false, PriorityDefault)))
	kinds := f.drain(t)

	// Scan on an unanalyzed book walks the entire chain.
	assert.Equal(t, []string{
		KindScanLibrary,
		KindAnalyzeBook,
		KindRefreshBookMetadata,
		KindRefreshSeriesMetadata,
		KindAggregateSeriesMetadata,
	}, kinds)

	assert.Equal(t, []uuid.UUID{library.ID}, f.services.scanned)
	assert.Equal(t, []uuid.UUID{book.ID}, f.services.analyzed)
	assert.Equal(t, []uuid.UUID{book.ID}, f.services.bookRef)
	assert.Equal(t, []uuid.UUID{series.ID}, f.services.seriesRef)
	assert.Equal(t, []uuid.UUID{series.ID}, f.services.aggregated)
}

func TestHandler_ScanSkipsAnalyzedBooks(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)
	library, _, book := f.seed(t)
	ctx := context.Background()

	book.Media.Status = domain.MediaStatusReady
	require.NoError(t, f.books.Save(ctx, book))

	require.NoError(t, f.store.Save(ctx, NewScanLibrary(library.ID, false, PriorityDefault)))
	kinds := f.drain(t)

	assert.Equal(t, []string{KindScanLibrary}, kinds)
	assert.Empty(t, f.services.analyzed)
}

func TestHandler_MissingEntityDropsTask(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)
	ctx := context.Background()

	// The referenced entities were deleted while the tasks sat queued.
	require.NoError(t, f.handler.Handle(ctx, NewScanLibrary(uuid.New(), false, PriorityDefault)))
	require.NoError(t, f.handler.Handle(ctx, NewAnalyzeBook(uuid.New(), uuid.New(), PriorityDefault)))
	require.NoError(t, f.handler.Handle(ctx, NewRefreshSeriesMetadata(uuid.New(), PriorityDefault)))

	assert.Empty(t, f.services.scanned)
	assert.Empty(t, f.services.analyzed)
	assert.Empty(t, f.services.seriesRef)

	// No follow-up tasks were scheduled.
	counts, err := f.store.CountByKind(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestHandler_RebuildIndexForwardsTypes(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.handler.Handle(ctx, NewRebuildIndex([]string{"book", "series"}, PriorityLowest)))
	require.NoError(t, f.handler.Handle(ctx, NewRebuildIndex(nil, PriorityLowest)))

	require.Len(t, f.services.rebuilt, 2)
	assert.Equal(t, []string{"book", "series"}, f.services.rebuilt[0])
	assert.Empty(t, f.services.rebuilt[1])
}

func TestHandler_DeleteSeriesRemovesBooks(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)
	_, series, book := f.seed(t)
	ctx := context.Background()

	require.NoError(t, f.handler.Handle(ctx, NewDeleteSeries(series.ID, PriorityHigh)))

	_, err := f.series.FindByID(ctx, series.ID)
	assert.Error(t, err)
	_, err = f.books.FindByID(ctx, book.ID)
	assert.Error(t, err)
}

func TestHandler_UnknownKindFails(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)
	err := f.handler.Handle(context.Background(), fakeTask{})
	assert.Error(t, err)
}

type fakeTask struct{ base }

func (fakeTask) Kind() string     { return "FAKE" }
func (fakeTask) UniqueID() string { return "FAKE" }
