package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/avellar/mangrove/internal/domain"
	"github.com/avellar/mangrove/internal/store"
)

// BookRepository is an in-memory store.BookRepository.
type BookRepository struct {
	mu    sync.RWMutex
	books map[uuid.UUID]domain.Book
}

// NewBookRepository creates an empty in-memory book repository.
func NewBookRepository() *BookRepository {
	return &BookRepository{books: make(map[uuid.UUID]domain.Book)}
}

func (r *BookRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	book, ok := r.books[id]
	if !ok {
		return nil, store.ErrBookNotFound
	}
	return &book, nil
}

func (r *BookRepository) FindBySeriesID(ctx context.Context, seriesID uuid.UUID) ([]domain.Book, error) {
	return r.filter(func(b domain.Book) bool { return b.SeriesID == seriesID }), nil
}

func (r *BookRepository) FindByLibraryID(ctx context.Context, libraryID uuid.UUID) ([]domain.Book, error) {
	return r.filter(func(b domain.Book) bool { return b.LibraryID == libraryID }), nil
}

func (r *BookRepository) FindByURL(ctx context.Context, url string) (*domain.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, book := range r.books {
		if book.URL == url {
			b := book
			return &b, nil
		}
	}
	return nil, store.ErrBookNotFound
}

func (r *BookRepository) FindAll(ctx context.Context, offset, limit int) ([]domain.Book, error) {
	all := r.filter(func(domain.Book) bool { return true })
	return pageOf(all, offset, limit), nil
}

func (r *BookRepository) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.books), nil
}

func (r *BookRepository) Save(ctx context.Context, book *domain.Book) error {
	if err := book.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.books[book.ID] = *book
	return nil
}

func (r *BookRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.books, id)
	return nil
}

func (r *BookRepository) filter(keep func(domain.Book) bool) []domain.Book {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Book
	for _, book := range r.books {
		if keep(book) {
			out = append(out, book)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

var _ store.BookRepository = (*BookRepository)(nil)
