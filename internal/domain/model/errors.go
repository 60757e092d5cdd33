package model

import "errors"

// Sentinel kinds shared by data collaborators.
var (
	ErrNotFound = errors.New("not found")
)
