package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/avellar/mangrove/internal/domain"
	"github.com/avellar/mangrove/internal/store"
)

// PostgresCollectionStore implements the store.CollectionRepository
// interface using a PostgreSQL database as the storage backend. The
// ordered member id list is stored as a JSONB array.
type PostgresCollectionStore struct {
	db store.DBTX
}

// NewPostgresCollectionStore creates a new PostgreSQL implementation of
// the CollectionRepository interface.
func NewPostgresCollectionStore(db store.DBTX) *PostgresCollectionStore {
	return &PostgresCollectionStore{
		db: db,
	}
}

// Ensure PostgresCollectionStore implements store.CollectionRepository interface
var _ store.CollectionRepository = (*PostgresCollectionStore)(nil)

// FindByID implements store.CollectionRepository.FindByID
func (s *PostgresCollectionStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Collection, error) {
	query := `
		SELECT id, name, ordered, series_ids, created_at, updated_at
		FROM collections
		WHERE id = $1
	`
	collection, err := scanCollection(s.db.QueryRowContext(ctx, query, id))
	if isNoRows(err) {
		return nil, store.ErrCollectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	return collection, nil
}

// FindAll implements store.CollectionRepository.FindAll
func (s *PostgresCollectionStore) FindAll(ctx context.Context, offset, limit int) ([]domain.Collection, error) {
	query := `
		SELECT id, name, ordered, series_ids, created_at, updated_at
		FROM collections
		ORDER BY id ASC
		OFFSET $1 LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query collections: %w", err)
	}
	defer rows.Close()

	var collections []domain.Collection
	for rows.Next() {
		collection, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		collections = append(collections, *collection)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate collections: %w", err)
	}
	return collections, nil
}

// Count implements store.CollectionRepository.Count
func (s *PostgresCollectionStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM collections`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count collections: %w", err)
	}
	return count, nil
}

// Save implements store.CollectionRepository.Save
func (s *PostgresCollectionStore) Save(ctx context.Context, collection *domain.Collection) error {
	seriesIDs, err := json.Marshal(collection.SeriesIDs)
	if err != nil {
		return fmt.Errorf("failed to encode collection members: %w", err)
	}

	query := `
		INSERT INTO collections (id, name, ordered, series_ids, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			ordered = EXCLUDED.ordered,
			series_ids = EXCLUDED.series_ids,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		collection.ID,
		collection.Name,
		collection.Ordered,
		seriesIDs,
		collection.CreatedAt,
		collection.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to save collection: %w", err)
	}
	return nil
}

// Delete implements store.CollectionRepository.Delete
func (s *PostgresCollectionStore) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM collections WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return nil
}

func scanCollection(row interface{ Scan(dest ...any) error }) (*domain.Collection, error) {
	var collection domain.Collection
	var seriesIDs []byte
	if err := row.Scan(
		&collection.ID,
		&collection.Name,
		&collection.Ordered,
		&seriesIDs,
		&collection.CreatedAt,
		&collection.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(seriesIDs, &collection.SeriesIDs); err != nil {
		return nil, fmt.Errorf("failed to decode collection members: %w", err)
	}
	return &collection, nil
}

// PostgresReadListStore implements the store.ReadListRepository interface
// using a PostgreSQL database as the storage backend.
type PostgresReadListStore struct {
	db store.DBTX
}

// NewPostgresReadListStore creates a new PostgreSQL implementation of the
// ReadListRepository interface.
func NewPostgresReadListStore(db store.DBTX) *PostgresReadListStore {
	return &PostgresReadListStore{
		db: db,
	}
}

// Ensure PostgresReadListStore implements store.ReadListRepository interface
var _ store.ReadListRepository = (*PostgresReadListStore)(nil)

// FindByID implements store.ReadListRepository.FindByID
func (s *PostgresReadListStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.ReadList, error) {
	query := `
		SELECT id, name, summary, book_ids, created_at, updated_at
		FROM read_lists
		WHERE id = $1
	`
	readList, err := scanReadList(s.db.QueryRowContext(ctx, query, id))
	if isNoRows(err) {
		return nil, store.ErrReadListNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get read list: %w", err)
	}
	return readList, nil
}

// FindAll implements store.ReadListRepository.FindAll
func (s *PostgresReadListStore) FindAll(ctx context.Context, offset, limit int) ([]domain.ReadList, error) {
	query := `
		SELECT id, name, summary, book_ids, created_at, updated_at
		FROM read_lists
		ORDER BY id ASC
		OFFSET $1 LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query read lists: %w", err)
	}
	defer rows.Close()

	var readLists []domain.ReadList
	for rows.Next() {
		readList, err := scanReadList(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan read list: %w", err)
		}
		readLists = append(readLists, *readList)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate read lists: %w", err)
	}
	return readLists, nil
}

// Count implements store.ReadListRepository.Count
func (s *PostgresReadListStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM read_lists`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count read lists: %w", err)
	}
	return count, nil
}

// Save implements store.ReadListRepository.Save
func (s *PostgresReadListStore) Save(ctx context.Context, readList *domain.ReadList) error {
	bookIDs, err := json.Marshal(readList.BookIDs)
	if err != nil {
		return fmt.Errorf("failed to encode read list members: %w", err)
	}

	query := `
		INSERT INTO read_lists (id, name, summary, book_ids, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			summary = EXCLUDED.summary,
			book_ids = EXCLUDED.book_ids,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		readList.ID,
		readList.Name,
		readList.Summary,
		bookIDs,
		readList.CreatedAt,
		readList.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to save read list: %w", err)
	}
	return nil
}

// Delete implements store.ReadListRepository.Delete
func (s *PostgresReadListStore) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM read_lists WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete read list: %w", err)
	}
	return nil
}

func scanReadList(row interface{ Scan(dest ...any) error }) (*domain.ReadList, error) {
	var readList domain.ReadList
	var bookIDs []byte
	if err := row.Scan(
		&readList.ID,
		&readList.Name,
		&readList.Summary,
		&bookIDs,
		&readList.CreatedAt,
		&readList.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(bookIDs, &readList.BookIDs); err != nil {
		return nil, fmt.Errorf("failed to decode read list members: %w", err)
	}
	return &readList, nil
}
