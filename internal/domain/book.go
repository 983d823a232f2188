package domain

import (
	"time"

	"github.com/google/uuid"
)

// MediaStatus represents the analysis state of a book's media file.
type MediaStatus string

// Possible media status values.
const (
	MediaStatusUnknown     MediaStatus = "UNKNOWN"
	MediaStatusReady       MediaStatus = "READY"
	MediaStatusError       MediaStatus = "ERROR"
	MediaStatusOutdated    MediaStatus = "OUTDATED"
	MediaStatusUnsupported MediaStatus = "UNSUPPORTED"
)

// isValidMediaStatus reports whether s is one of the known media statuses.
func isValidMediaStatus(s MediaStatus) bool {
	switch s {
	case MediaStatusUnknown, MediaStatusReady, MediaStatusError,
		MediaStatusOutdated, MediaStatusUnsupported:
		return true
	}
	return false
}

// Media holds the result of analyzing a book's archive file.
type Media struct {
	Status    MediaStatus `json:"status"`
	MediaType string      `json:"media_type"`
	PageCount int         `json:"page_count"`
	Comment   string      `json:"comment"`
}

// Author is a named contributor with a role (writer, penciller, ...).
type Author struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// BookMetadata holds the editable metadata of a single book.
type BookMetadata struct {
	Title       string     `json:"title"`
	Number      string     `json:"number"`
	NumberSort  float64    `json:"number_sort"`
	Summary     string     `json:"summary"`
	ReleaseDate *time.Time `json:"release_date,omitempty"`
	Authors     []Author   `json:"authors,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	ISBN        string     `json:"isbn,omitempty"`
}

// Book represents a single archive file (cbz, epub, pdf, ...) inside a series.
type Book struct {
	ID               uuid.UUID    `json:"id"`
	SeriesID         uuid.UUID    `json:"series_id"`
	LibraryID        uuid.UUID    `json:"library_id"`
	Name             string       `json:"name"`
	URL              string       `json:"url"`
	FileSize         int64        `json:"file_size"`
	FileHash         string       `json:"file_hash"`
	FileLastModified time.Time    `json:"file_last_modified"`
	Media            Media        `json:"media"`
	Metadata         BookMetadata `json:"metadata"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// NewBook creates a new Book for the given file URL inside a series.
// The media status starts as UNKNOWN until the book is analyzed.
func NewBook(seriesID, libraryID uuid.UUID, name, url string) (*Book, error) {
	now := time.Now().UTC()
	book := &Book{
		ID:        uuid.New(),
		SeriesID:  seriesID,
		LibraryID: libraryID,
		Name:      name,
		URL:       url,
		Media:     Media{Status: MediaStatusUnknown},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := book.Validate(); err != nil {
		return nil, err
	}

	return book, nil
}

// Validate checks if the Book has valid data.
func (b *Book) Validate() error {
	if b.Name == "" {
		return ErrEmptyName
	}
	if b.URL == "" {
		return ErrEmptyURL
	}
	if !isValidMediaStatus(b.Media.Status) {
		return ErrInvalidMediaStatus
	}
	return nil
}
