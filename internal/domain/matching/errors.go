package matching

import "errors"

// ErrLookup wraps failures of the data collaborators.
var ErrLookup = errors.New("partner lookup failed")
