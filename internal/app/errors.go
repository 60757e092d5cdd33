package service

import "errors"

var (
	// ErrNotStarted is returned by operations that need a started service.
	ErrNotStarted = errors.New("service not started")
	// ErrStart wraps failures while wiring collaborators.
	ErrStart = errors.New("service start failed")
)
