package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/avellar/mangrove/internal/domain"
	"github.com/avellar/mangrove/internal/store"
)

// PostgresLibraryStore implements the store.LibraryRepository interface
// using a PostgreSQL database as the storage backend.
type PostgresLibraryStore struct {
	db store.DBTX
}

// NewPostgresLibraryStore creates a new PostgreSQL implementation of the
// LibraryRepository interface.
func NewPostgresLibraryStore(db store.DBTX) *PostgresLibraryStore {
	return &PostgresLibraryStore{
		db: db,
	}
}

// Ensure PostgresLibraryStore implements store.LibraryRepository interface
var _ store.LibraryRepository = (*PostgresLibraryStore)(nil)

// FindByID implements store.LibraryRepository.FindByID
func (s *PostgresLibraryStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Library, error) {
	query := `
		SELECT id, name, root, created_at, updated_at
		FROM libraries
		WHERE id = $1
	`
	var library domain.Library
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&library.ID,
		&library.Name,
		&library.Root,
		&library.CreatedAt,
		&library.UpdatedAt,
	)
	if isNoRows(err) {
		return nil, store.ErrLibraryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get library: %w", err)
	}
	return &library, nil
}

// FindAll implements store.LibraryRepository.FindAll
func (s *PostgresLibraryStore) FindAll(ctx context.Context) ([]domain.Library, error) {
	query := `
		SELECT id, name, root, created_at, updated_at
		FROM libraries
		ORDER BY name ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list libraries: %w", err)
	}
	defer rows.Close()

	var libraries []domain.Library
	for rows.Next() {
		var library domain.Library
		if err := rows.Scan(
			&library.ID,
			&library.Name,
			&library.Root,
			&library.CreatedAt,
			&library.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan library: %w", err)
		}
		libraries = append(libraries, library)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate libraries: %w", err)
	}
	return libraries, nil
}

// Save implements store.LibraryRepository.Save
func (s *PostgresLibraryStore) Save(ctx context.Context, library *domain.Library) error {
	if err := library.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO libraries (id, name, root, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			root = EXCLUDED.root,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		library.ID,
		library.Name,
		library.Root,
		library.CreatedAt,
		library.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to save library: %w", err)
	}
	return nil
}

// Delete implements store.LibraryRepository.Delete
func (s *PostgresLibraryStore) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM libraries WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete library: %w", err)
	}
	return nil
}
