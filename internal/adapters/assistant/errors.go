package assistant

import "errors"

// Sentinel kinds for assistant errors.
var (
	ErrDisabled     = errors.New("assistant is not configured")
	ErrInvalidInput = errors.New("invalid assistant request")
	ErrUpstream     = errors.New("assistant upstream failed")
)
