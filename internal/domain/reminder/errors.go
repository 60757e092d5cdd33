package reminder

import "errors"

// Sentinel errors returned by Scan.
var (
	// ErrDisabled means the scanner is switched off or the push transport is not ready.
	ErrDisabled = errors.New("reminders disabled")
	// ErrTickInProgress means another scan for the same lead time is running.
	ErrTickInProgress = errors.New("reminder tick already in progress")
)
