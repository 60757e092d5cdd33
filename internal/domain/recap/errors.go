package recap

import "errors"

// ErrDisabled means the recap is switched off or the push transport is not ready.
var ErrDisabled = errors.New("recap disabled")
