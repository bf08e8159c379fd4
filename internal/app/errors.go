package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted   = errors.New("service not started")
	ErrUnauthorized = errors.New("authentication required")
	ErrForbidden    = errors.New("forbidden")
	ErrQueueFull    = errors.New("view queue full")
	ErrInvalidInput = errors.New("invalid input")
)
