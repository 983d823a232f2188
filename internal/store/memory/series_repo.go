package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/avellar/mangrove/internal/domain"
	"github.com/avellar/mangrove/internal/store"
)

// SeriesRepository is an in-memory store.SeriesRepository.
type SeriesRepository struct {
	mu     sync.RWMutex
	series map[uuid.UUID]domain.Series
}

// NewSeriesRepository creates an empty in-memory series repository.
func NewSeriesRepository() *SeriesRepository {
	return &SeriesRepository{series: make(map[uuid.UUID]domain.Series)}
}

func (r *SeriesRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Series, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	series, ok := r.series[id]
	if !ok {
		return nil, store.ErrSeriesNotFound
	}
	return &series, nil
}

func (r *SeriesRepository) FindByLibraryID(ctx context.Context, libraryID uuid.UUID) ([]domain.Series, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Series
	for _, series := range r.series {
		if series.LibraryID == libraryID {
			out = append(out, series)
		}
	}
	sortSeriesByID(out)
	return out, nil
}

func (r *SeriesRepository) FindByURL(ctx context.Context, url string) (*domain.Series, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, series := range r.series {
		if series.URL == url {
			s := series
			return &s, nil
		}
	}
	return nil, store.ErrSeriesNotFound
}

func (r *SeriesRepository) FindAll(ctx context.Context, offset, limit int) ([]domain.Series, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]domain.Series, 0, len(r.series))
	for _, series := range r.series {
		all = append(all, series)
	}
	sortSeriesByID(all)
	return pageOf(all, offset, limit), nil
}

func (r *SeriesRepository) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.series), nil
}

func (r *SeriesRepository) Save(ctx context.Context, series *domain.Series) error {
	if err := series.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.series[series.ID] = *series
	return nil
}

func (r *SeriesRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.series, id)
	return nil
}

func sortSeriesByID(s []domain.Series) {
	sort.Slice(s, func(i, j int) bool { return s[i].ID.String() < s[j].ID.String() })
}

// pageOf returns the sub-slice [offset, offset+limit) of all, clamped to
// the slice bounds. A limit <= 0 means "everything from offset".
func pageOf[T any](all []T, offset, limit int) []T {
	if offset >= len(all) || offset < 0 {
		return nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end]
}

var _ store.SeriesRepository = (*SeriesRepository)(nil)
