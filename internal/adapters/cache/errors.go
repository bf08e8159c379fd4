package cache

import "errors"

// Sentinel kinds for cache errors.
var (
	ErrUnavailable = errors.New("feed cache unavailable")
	ErrCorrupt     = errors.New("feed cache entry corrupt")
)
