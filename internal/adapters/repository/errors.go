package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrInvalidLimit = errors.New("invalid limit")
	ErrInvalidLead  = errors.New("invalid lead time")
)
