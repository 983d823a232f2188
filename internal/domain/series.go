package domain

import (
	"time"

	"github.com/google/uuid"
)

// SeriesStatus represents the publication status of a series.
type SeriesStatus string

// Possible series status values.
const (
	SeriesStatusOngoing   SeriesStatus = "ONGOING"
	SeriesStatusEnded     SeriesStatus = "ENDED"
	SeriesStatusAbandoned SeriesStatus = "ABANDONED"
	SeriesStatusHiatus    SeriesStatus = "HIATUS"
)

// SeriesMetadata holds the editable and aggregated metadata of a series.
type SeriesMetadata struct {
	Status         SeriesStatus `json:"status"`
	Title          string       `json:"title"`
	TitleSort      string       `json:"title_sort"`
	Summary        string       `json:"summary"`
	Publisher      string       `json:"publisher"`
	Language       string       `json:"language"`
	Tags           []string     `json:"tags,omitempty"`
	Genres         []string     `json:"genres,omitempty"`
	TotalBookCount int          `json:"total_book_count"`
	ReleaseYear    int          `json:"release_year"`
}

// Series groups the books found in one directory of a library.
type Series struct {
	ID        uuid.UUID      `json:"id"`
	LibraryID uuid.UUID      `json:"library_id"`
	Name      string         `json:"name"`
	URL       string         `json:"url"`
	BookCount int            `json:"book_count"`
	Metadata  SeriesMetadata `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewSeries creates a new Series rooted at the given directory URL.
func NewSeries(libraryID uuid.UUID, name, url string) (*Series, error) {
	now := time.Now().UTC()
	series := &Series{
		ID:        uuid.New(),
		LibraryID: libraryID,
		Name:      name,
		URL:       url,
		Metadata: SeriesMetadata{
			Status: SeriesStatusOngoing,
			Title:  name,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := series.Validate(); err != nil {
		return nil, err
	}

	return series, nil
}

// Validate checks if the Series has valid data.
func (s *Series) Validate() error {
	if s.Name == "" {
		return ErrEmptyName
	}
	return nil
}
