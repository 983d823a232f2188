package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/avellar/mangrove/internal/domain"
)

// CollectionRepository defines the persistence operations for collections.
type CollectionRepository interface {
	// FindByID retrieves a collection by its ID.
	// Returns ErrCollectionNotFound if the collection does not exist.
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Collection, error)

	// FindAll retrieves a page of collections ordered by ID, for bulk indexing.
	FindAll(ctx context.Context, offset, limit int) ([]domain.Collection, error)

	// Count returns the total number of collections.
	Count(ctx context.Context) (int, error)

	// Save inserts or updates a collection.
	Save(ctx context.Context, collection *domain.Collection) error

	// Delete removes a collection by ID.
	Delete(ctx context.Context, id uuid.UUID) error
}

// ReadListRepository defines the persistence operations for read lists.
type ReadListRepository interface {
	// FindByID retrieves a read list by its ID.
	// Returns ErrReadListNotFound if the read list does not exist.
	FindByID(ctx context.Context, id uuid.UUID) (*domain.ReadList, error)

	// FindAll retrieves a page of read lists ordered by ID, for bulk indexing.
	FindAll(ctx context.Context, offset, limit int) ([]domain.ReadList, error)

	// Count returns the total number of read lists.
	Count(ctx context.Context) (int, error)

	// Save inserts or updates a read list.
	Save(ctx context.Context, readList *domain.ReadList) error

	// Delete removes a read list by ID.
	Delete(ctx context.Context, id uuid.UUID) error
}
