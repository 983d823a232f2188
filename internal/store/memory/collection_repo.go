package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/avellar/mangrove/internal/domain"
	"github.com/avellar/mangrove/internal/store"
)

// CollectionRepository is an in-memory store.CollectionRepository.
type CollectionRepository struct {
	mu          sync.RWMutex
	collections map[uuid.UUID]domain.Collection
}

// NewCollectionRepository creates an empty in-memory collection repository.
func NewCollectionRepository() *CollectionRepository {
	return &CollectionRepository{collections: make(map[uuid.UUID]domain.Collection)}
}

func (r *CollectionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Collection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	collection, ok := r.collections[id]
	if !ok {
		return nil, store.ErrCollectionNotFound
	}
	return &collection, nil
}

func (r *CollectionRepository) FindAll(ctx context.Context, offset, limit int) ([]domain.Collection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]domain.Collection, 0, len(r.collections))
	for _, collection := range r.collections {
		all = append(all, collection)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID.String() < all[j].ID.String() })
	return pageOf(all, offset, limit), nil
}

func (r *CollectionRepository) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.collections), nil
}

func (r *CollectionRepository) Save(ctx context.Context, collection *domain.Collection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collections[collection.ID] = *collection
	return nil
}

func (r *CollectionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.collections, id)
	return nil
}

// ReadListRepository is an in-memory store.ReadListRepository.
type ReadListRepository struct {
	mu        sync.RWMutex
	readLists map[uuid.UUID]domain.ReadList
}

// NewReadListRepository creates an empty in-memory read list repository.
func NewReadListRepository() *ReadListRepository {
	return &ReadListRepository{readLists: make(map[uuid.UUID]domain.ReadList)}
}

func (r *ReadListRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.ReadList, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	readList, ok := r.readLists[id]
	if !ok {
		return nil, store.ErrReadListNotFound
	}
	return &readList, nil
}

func (r *ReadListRepository) FindAll(ctx context.Context, offset, limit int) ([]domain.ReadList, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]domain.ReadList, 0, len(r.readLists))
	for _, readList := range r.readLists {
		all = append(all, readList)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID.String() < all[j].ID.String() })
	return pageOf(all, offset, limit), nil
}

func (r *ReadListRepository) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.readLists), nil
}

func (r *ReadListRepository) Save(ctx context.Context, readList *domain.ReadList) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readLists[readList.ID] = *readList
	return nil
}

func (r *ReadListRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.readLists, id)
	return nil
}

var (
	_ store.CollectionRepository = (*CollectionRepository)(nil)
	_ store.ReadListRepository   = (*ReadListRepository)(nil)
)
