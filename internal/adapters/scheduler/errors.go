package scheduler

import "errors"

// Sentinel errors for job registration and triggering.
var (
	ErrUnknownJob   = errors.New("unknown job")
	ErrJobRunning   = errors.New("job already running")
	ErrDuplicateJob = errors.New("job already registered")
	ErrInvalidSpec  = errors.New("invalid cron spec")
	ErrStopped      = errors.New("scheduler stopped")
)
