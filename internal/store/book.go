package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/avellar/mangrove/internal/domain"
)

// BookRepository defines the persistence operations for books.
type BookRepository interface {
	// FindByID retrieves a book by its ID.
	// Returns ErrBookNotFound if the book does not exist.
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Book, error)

	// FindBySeriesID retrieves all books belonging to a series.
	FindBySeriesID(ctx context.Context, seriesID uuid.UUID) ([]domain.Book, error)

	// FindByLibraryID retrieves all books belonging to a library.
	FindByLibraryID(ctx context.Context, libraryID uuid.UUID) ([]domain.Book, error)

	// FindByURL retrieves the book stored at the given file URL.
	// Returns ErrBookNotFound if no book matches.
	FindByURL(ctx context.Context, url string) (*domain.Book, error)

	// FindAll retrieves a page of books ordered by ID, for bulk indexing.
	FindAll(ctx context.Context, offset, limit int) ([]domain.Book, error)

	// Count returns the total number of books.
	Count(ctx context.Context) (int, error)

	// Save inserts or updates a book.
	Save(ctx context.Context, book *domain.Book) error

	// Delete removes a book by ID. Deleting a missing book is a no-op.
	Delete(ctx context.Context, id uuid.UUID) error
}
