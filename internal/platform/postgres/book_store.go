package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/avellar/mangrove/internal/domain"
	"github.com/avellar/mangrove/internal/store"
)

// PostgresBookStore implements the store.BookRepository interface using
// a PostgreSQL database as the storage backend. Media and metadata are
// stored as JSONB documents.
type PostgresBookStore struct {
	db store.DBTX
}

// NewPostgresBookStore creates a new PostgreSQL implementation of the
// BookRepository interface.
func NewPostgresBookStore(db store.DBTX) *PostgresBookStore {
	return &PostgresBookStore{
		db: db,
	}
}

// Ensure PostgresBookStore implements store.BookRepository interface
var _ store.BookRepository = (*PostgresBookStore)(nil)

const bookColumns = `id, series_id, library_id, name, url, file_size, file_hash,
	file_last_modified, media, metadata, created_at, updated_at`

// scanBook reads one book row.
func scanBook(row interface{ Scan(dest ...any) error }) (*domain.Book, error) {
	var book domain.Book
	var media, metadata []byte
	if err := row.Scan(
		&book.ID,
		&book.SeriesID,
		&book.LibraryID,
		&book.Name,
		&book.URL,
		&book.FileSize,
		&book.FileHash,
		&book.FileLastModified,
		&media,
		&metadata,
		&book.CreatedAt,
		&book.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(media, &book.Media); err != nil {
		return nil, fmt.Errorf("failed to decode book media: %w", err)
	}
	if err := json.Unmarshal(metadata, &book.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode book metadata: %w", err)
	}
	return &book, nil
}

// FindByID implements store.BookRepository.FindByID
func (s *PostgresBookStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE id = $1`
	book, err := scanBook(s.db.QueryRowContext(ctx, query, id))
	if isNoRows(err) {
		return nil, store.ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	return book, nil
}

// FindByURL implements store.BookRepository.FindByURL
func (s *PostgresBookStore) FindByURL(ctx context.Context, url string) (*domain.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE url = $1`
	book, err := scanBook(s.db.QueryRowContext(ctx, query, url))
	if isNoRows(err) {
		return nil, store.ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get book by url: %w", err)
	}
	return book, nil
}

// FindBySeriesID implements store.BookRepository.FindBySeriesID
func (s *PostgresBookStore) FindBySeriesID(ctx context.Context, seriesID uuid.UUID) ([]domain.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE series_id = $1 ORDER BY name ASC`
	return s.queryBooks(ctx, query, seriesID)
}

// FindByLibraryID implements store.BookRepository.FindByLibraryID
func (s *PostgresBookStore) FindByLibraryID(ctx context.Context, libraryID uuid.UUID) ([]domain.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE library_id = $1 ORDER BY name ASC`
	return s.queryBooks(ctx, query, libraryID)
}

// FindAll implements store.BookRepository.FindAll
func (s *PostgresBookStore) FindAll(ctx context.Context, offset, limit int) ([]domain.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books ORDER BY id ASC OFFSET $1 LIMIT $2`
	return s.queryBooks(ctx, query, offset, limit)
}

func (s *PostgresBookStore) queryBooks(ctx context.Context, query string, args ...any) ([]domain.Book, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query books: %w", err)
	}
	defer rows.Close()

	var books []domain.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		books = append(books, *book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate books: %w", err)
	}
	return books, nil
}

// Count implements store.BookRepository.Count
func (s *PostgresBookStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count books: %w", err)
	}
	return count, nil
}

// Save implements store.BookRepository.Save
func (s *PostgresBookStore) Save(ctx context.Context, book *domain.Book) error {
	if err := book.Validate(); err != nil {
		return err
	}

	media, err := json.Marshal(book.Media)
	if err != nil {
		return fmt.Errorf("failed to encode book media: %w", err)
	}
	metadata, err := json.Marshal(book.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode book metadata: %w", err)
	}

	query := `
		INSERT INTO books (id, series_id, library_id, name, url, file_size, file_hash,
			file_last_modified, media, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			series_id = EXCLUDED.series_id,
			name = EXCLUDED.name,
			url = EXCLUDED.url,
			file_size = EXCLUDED.file_size,
			file_hash = EXCLUDED.file_hash,
			file_last_modified = EXCLUDED.file_last_modified,
			media = EXCLUDED.media,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		book.ID,
		book.SeriesID,
		book.LibraryID,
		book.Name,
		book.URL,
		book.FileSize,
		book.FileHash,
		book.FileLastModified,
		media,
		metadata,
		book.CreatedAt,
		book.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to save book: %w", err)
	}
	return nil
}

// Delete implements store.BookRepository.Delete
func (s *PostgresBookStore) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM books WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}
	return nil
}
