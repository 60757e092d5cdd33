package push

import "errors"

// Sentinel errors for push transports.
var (
	ErrNotReady = errors.New("push transport not ready")
	ErrInit     = errors.New("push transport init failed")
)
