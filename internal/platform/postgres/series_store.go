package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/avellar/mangrove/internal/domain"
	"github.com/avellar/mangrove/internal/store"
)

// PostgresSeriesStore implements the store.SeriesRepository interface
// using a PostgreSQL database as the storage backend. Series metadata is
// stored as a JSONB document, so metadata schema changes need no
// migration.
type PostgresSeriesStore struct {
	db store.DBTX
}

// NewPostgresSeriesStore creates a new PostgreSQL implementation of the
// SeriesRepository interface.
func NewPostgresSeriesStore(db store.DBTX) *PostgresSeriesStore {
	return &PostgresSeriesStore{
		db: db,
	}
}

// Ensure PostgresSeriesStore implements store.SeriesRepository interface
var _ store.SeriesRepository = (*PostgresSeriesStore)(nil)

const seriesColumns = `id, library_id, name, url, book_count, metadata, created_at, updated_at`

// scanSeries reads one series row.
func scanSeries(row interface{ Scan(dest ...any) error }) (*domain.Series, error) {
	var series domain.Series
	var metadata []byte
	if err := row.Scan(
		&series.ID,
		&series.LibraryID,
		&series.Name,
		&series.URL,
		&series.BookCount,
		&metadata,
		&series.CreatedAt,
		&series.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(metadata, &series.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode series metadata: %w", err)
	}
	return &series, nil
}

// FindByID implements store.SeriesRepository.FindByID
func (s *PostgresSeriesStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Series, error) {
	query := `SELECT ` + seriesColumns + ` FROM series WHERE id = $1`
	series, err := scanSeries(s.db.QueryRowContext(ctx, query, id))
	if isNoRows(err) {
		return nil, store.ErrSeriesNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get series: %w", err)
	}
	return series, nil
}

// FindByURL implements store.SeriesRepository.FindByURL
func (s *PostgresSeriesStore) FindByURL(ctx context.Context, url string) (*domain.Series, error) {
	query := `SELECT ` + seriesColumns + ` FROM series WHERE url = $1`
	series, err := scanSeries(s.db.QueryRowContext(ctx, query, url))
	if isNoRows(err) {
		return nil, store.ErrSeriesNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get series by url: %w", err)
	}
	return series, nil
}

// FindByLibraryID implements store.SeriesRepository.FindByLibraryID
func (s *PostgresSeriesStore) FindByLibraryID(ctx context.Context, libraryID uuid.UUID) ([]domain.Series, error) {
	query := `SELECT ` + seriesColumns + ` FROM series WHERE library_id = $1 ORDER BY name ASC`
	return s.querySeries(ctx, query, libraryID)
}

// FindAll implements store.SeriesRepository.FindAll
func (s *PostgresSeriesStore) FindAll(ctx context.Context, offset, limit int) ([]domain.Series, error) {
	query := `SELECT ` + seriesColumns + ` FROM series ORDER BY id ASC OFFSET $1 LIMIT $2`
	return s.querySeries(ctx, query, offset, limit)
}

func (s *PostgresSeriesStore) querySeries(ctx context.Context, query string, args ...any) ([]domain.Series, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query series: %w", err)
	}
	defer rows.Close()

	var all []domain.Series
	for rows.Next() {
		series, err := scanSeries(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan series: %w", err)
		}
		all = append(all, *series)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate series: %w", err)
	}
	return all, nil
}

// Count implements store.SeriesRepository.Count
func (s *PostgresSeriesStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM series`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count series: %w", err)
	}
	return count, nil
}

// Save implements store.SeriesRepository.Save
func (s *PostgresSeriesStore) Save(ctx context.Context, series *domain.Series) error {
	if err := series.Validate(); err != nil {
		return err
	}

	metadata, err := json.Marshal(series.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode series metadata: %w", err)
	}

	query := `
		INSERT INTO series (id, library_id, name, url, book_count, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			url = EXCLUDED.url,
			book_count = EXCLUDED.book_count,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		series.ID,
		series.LibraryID,
		series.Name,
		series.URL,
		series.BookCount,
		metadata,
		series.CreatedAt,
		series.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to save series: %w", err)
	}
	return nil
}

// Delete implements store.SeriesRepository.Delete
func (s *PostgresSeriesStore) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM series WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete series: %w", err)
	}
	return nil
}
