package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/avellar/mangrove/internal/domain"
)

// SeriesRepository defines the persistence operations for series.
type SeriesRepository interface {
	// FindByID retrieves a series by its ID.
	// Returns ErrSeriesNotFound if the series does not exist.
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Series, error)

	// FindByLibraryID retrieves all series belonging to a library.
	FindByLibraryID(ctx context.Context, libraryID uuid.UUID) ([]domain.Series, error)

	// FindByURL retrieves the series rooted at the given directory URL.
	// Returns ErrSeriesNotFound if no series matches.
	FindByURL(ctx context.Context, url string) (*domain.Series, error)

	// FindAll retrieves a page of series ordered by ID, for bulk indexing.
	FindAll(ctx context.Context, offset, limit int) ([]domain.Series, error)

	// Count returns the total number of series.
	Count(ctx context.Context) (int, error)

	// Save inserts or updates a series.
	Save(ctx context.Context, series *domain.Series) error

	// Delete removes a series by ID. Deleting a missing series is a no-op.
	Delete(ctx context.Context, id uuid.UUID) error
}
