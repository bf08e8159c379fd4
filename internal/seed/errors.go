package seed

import "errors"

// Sentinel kinds for seeding errors.
var (
	ErrUnhealthy    = errors.New("service is not healthy")
	ErrStatus       = errors.New("unexpected status code")
	ErrVerification = errors.New("feed verification failed")
)
