package entity

import "errors"

var (
	// ErrCacheMiss is returned by a cache when the requested key is not present.
	ErrCacheMiss = errors.New("cache miss")
	// ErrCacheUnavailable is returned when the cache is considered down and calls are short-circuited.
	ErrCacheUnavailable = errors.New("cache unavailable")
)

// PendingClicks is the number of clicks recorded in the cache for a short code
// that have not been applied to the durable record yet.
type PendingClicks struct {
	ShortCode string
	Count     int64
}
