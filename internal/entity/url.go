// Package entity defines the entities and errors used in the application.
// It includes the URL struct, which represents a shortened URL along with its
// click statistics, and the sentinel errors shared by the adapters and use cases.
package entity

import (
	"errors"
	"time"
)

var (
	// ErrEmptyURL is returned when an original URL is missing or blank.
	ErrEmptyURL = errors.New("original url is required")
	// ErrShortCodeExists is returned when attempting to create a URL with a short code that already exists.
	ErrShortCodeExists = errors.New("short code exists")
	// ErrOriginalURLExists is returned when attempting to create a second record for the same original URL.
	ErrOriginalURLExists = errors.New("original url exists")
	// ErrURLNotFound is returned when a URL with the specified short code cannot be found.
	ErrURLNotFound = errors.New("url not found")
)

// URL represents a shortened URL.
type URL struct {
	ID          int64     // ID is the unique identifier of the URL in the database.
	ShortCode   string    // ShortCode is the generated code used to shorten the original URL.
	OriginalURL string    // OriginalURL is the full URL that the short code resolves to.
	Clicks      int64     // Clicks is the number of redirects applied to the durable record.
	CreatedAt   time.Time // CreatedAt is the timestamp when the URL was created.
	UpdatedAt   time.Time // UpdatedAt is the timestamp when the URL was last updated.
}
