package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/avellar/mangrove/internal/domain"
	"github.com/avellar/mangrove/internal/store"
)

// LibraryRepository is an in-memory store.LibraryRepository.
type LibraryRepository struct {
	mu        sync.RWMutex
	libraries map[uuid.UUID]domain.Library
}

// NewLibraryRepository creates an empty in-memory library repository.
func NewLibraryRepository() *LibraryRepository {
	return &LibraryRepository{libraries: make(map[uuid.UUID]domain.Library)}
}

func (r *LibraryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Library, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	library, ok := r.libraries[id]
	if !ok {
		return nil, store.ErrLibraryNotFound
	}
	return &library, nil
}

func (r *LibraryRepository) FindAll(ctx context.Context) ([]domain.Library, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Library, 0, len(r.libraries))
	for _, library := range r.libraries {
		out = append(out, library)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (r *LibraryRepository) Save(ctx context.Context, library *domain.Library) error {
	if err := library.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.libraries[library.ID] = *library
	return nil
}

func (r *LibraryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.libraries, id)
	return nil
}

var _ store.LibraryRepository = (*LibraryRepository)(nil)
