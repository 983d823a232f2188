package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/avellar/mangrove/internal/domain"
)

// LibraryRepository defines the persistence operations for libraries.
type LibraryRepository interface {
	// FindByID retrieves a library by its ID.
	// Returns ErrLibraryNotFound if the library does not exist.
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Library, error)

	// FindAll retrieves every library.
	FindAll(ctx context.Context) ([]domain.Library, error)

	// Save inserts or updates a library.
	Save(ctx context.Context, library *domain.Library) error

	// Delete removes a library by ID. Deleting a missing library is a no-op.
	Delete(ctx context.Context, id uuid.UUID) error
}
