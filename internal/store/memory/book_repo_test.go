package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avellar/mangrove/internal/domain"
	"github.com/avellar/mangrove/internal/store"
)

func saveTestBook(t *testing.T, repo *BookRepository, seriesID, libraryID uuid.UUID, name string) *domain.Book {
	t.Helper()
	book, err := domain.NewBook(seriesID, libraryID, name, "/data/"+name+".cbz")
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), book))
	return book
}

func TestBookRepository_FindByID(t *testing.T) {
	t.Parallel()

	repo := NewBookRepository()
	ctx := context.Background()

	book := saveTestBook(t, repo, uuid.New(), uuid.New(), "Saga v1")

	found, err := repo.FindByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, book.ID, found.ID)

	_, err = repo.FindByID(ctx, uuid.New())
	require.ErrorIs(t, err, store.ErrBookNotFound)
	assert.True(t, store.IsNotFoundError(err))
}

func TestBookRepository_FindReturnsACopy(t *testing.T) {
	t.Parallel()

	repo := NewBookRepository()
	ctx := context.Background()

	book := saveTestBook(t, repo, uuid.New(), uuid.New(), "Saga v1")

	found, err := repo.FindByID(ctx, book.ID)
	require.NoError(t, err)
	found.Metadata.Title = "mutated"

	again, err := repo.FindByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Empty(t, again.Metadata.Title)
}

func TestBookRepository_ScopedFinders(t *testing.T) {
	t.Parallel()

	repo := NewBookRepository()
	ctx := context.Background()

	libraryID := uuid.New()
	seriesID := uuid.New()
	inSeries := saveTestBook(t, repo, seriesID, libraryID, "Saga v1")
	saveTestBook(t, repo, uuid.New(), libraryID, "Monstress 01")
	saveTestBook(t, repo, uuid.New(), uuid.New(), "Paper Girls 01")

	bySeries, err := repo.FindBySeriesID(ctx, seriesID)
	require.NoError(t, err)
	require.Len(t, bySeries, 1)
	assert.Equal(t, inSeries.ID, bySeries[0].ID)

	byLibrary, err := repo.FindByLibraryID(ctx, libraryID)
	require.NoError(t, err)
	assert.Len(t, byLibrary, 2)

	byURL, err := repo.FindByURL(ctx, inSeries.URL)
	require.NoError(t, err)
	assert.Equal(t, inSeries.ID, byURL.ID)
}

func TestBookRepository_FindAllPages(t *testing.T) {
	t.Parallel()

	repo := NewBookRepository()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		saveTestBook(t, repo, uuid.New(), uuid.New(), "Book "+string(rune('a'+i)))
	}

	first, err := repo.FindAll(ctx, 0, 3)
	require.NoError(t, err)
	assert.Len(t, first, 3)

	rest, err := repo.FindAll(ctx, 3, 3)
	require.NoError(t, err)
	assert.Len(t, rest, 2)

	beyond, err := repo.FindAll(ctx, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, beyond)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestBookRepository_SaveUpsertsAndValidates(t *testing.T) {
	t.Parallel()

	repo := NewBookRepository()
	ctx := context.Background()

	book := saveTestBook(t, repo, uuid.New(), uuid.New(), "Saga v1")
	book.Metadata.Title = "Saga"
	require.NoError(t, repo.Save(ctx, book))

	found, err := repo.FindByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Saga", found.Metadata.Title)

	invalid := *book
	invalid.Name = ""
	assert.Error(t, repo.Save(ctx, &invalid))
}

func TestBookRepository_Delete(t *testing.T) {
	t.Parallel()

	repo := NewBookRepository()
	ctx := context.Background()

	book := saveTestBook(t, repo, uuid.New(), uuid.New(), "Saga v1")
	require.NoError(t, repo.Delete(ctx, book.ID))

	_, err := repo.FindByID(ctx, book.ID)
	assert.ErrorIs(t, err, store.ErrBookNotFound)

	// Deleting a missing book is a no-op.
	assert.NoError(t, repo.Delete(ctx, book.ID))
}
