package repository

import "errors"

// Sentinel kinds for article store errors.
var (
	ErrNotFound     = errors.New("article not found")
	ErrConflict     = errors.New("article already exists")
	ErrInvalidInput = errors.New("invalid article")
	ErrUnknownStore = errors.New("unknown store driver")
)
