package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	ErrValidation = errors.New("validation failed")

	// ErrEmptyName is returned when a required name field is empty.
	ErrEmptyName = errors.New("name cannot be empty")

	// ErrEmptyRoot is returned when a library has no root path.
	ErrEmptyRoot = errors.New("library root cannot be empty")

	// ErrEmptyURL is returned when a book has no file URL.
	ErrEmptyURL = errors.New("book URL cannot be empty")

	// ErrInvalidMediaStatus is returned when a media status is not one of
	// the known values.
	ErrInvalidMediaStatus = errors.New("invalid media status")
)
