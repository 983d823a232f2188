package domain

import (
	"time"

	"github.com/google/uuid"
)

// Library is a root directory on disk that is scanned for series and books.
type Library struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Root      string    `json:"root"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewLibrary creates a new Library with the given name and root path.
// Returns an error if validation fails.
func NewLibrary(name, root string) (*Library, error) {
	now := time.Now().UTC()
	library := &Library{
		ID:        uuid.New(),
		Name:      name,
		Root:      root,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := library.Validate(); err != nil {
		return nil, err
	}

	return library, nil
}

// Validate checks if the Library has valid data.
func (l *Library) Validate() error {
	if l.Name == "" {
		return ErrEmptyName
	}
	if l.Root == "" {
		return ErrEmptyRoot
	}
	return nil
}
