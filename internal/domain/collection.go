package domain

import (
	"time"

	"github.com/google/uuid"
)

// Collection is a user-curated, ordered set of series.
type Collection struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	Ordered   bool        `json:"ordered"`
	SeriesIDs []uuid.UUID `json:"series_ids,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// NewCollection creates a new Collection with the given name.
func NewCollection(name string) (*Collection, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	now := time.Now().UTC()
	return &Collection{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ReadList is a user-curated, ordered set of books, typically a reading
// order spanning several series.
type ReadList struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	Summary   string      `json:"summary"`
	BookIDs   []uuid.UUID `json:"book_ids,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// NewReadList creates a new ReadList with the given name.
func NewReadList(name string) (*ReadList, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	now := time.Now().UTC()
	return &ReadList{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
