package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest      = errors.New("bad request")
	ErrInvalidMemberID = errors.New("member_id must be a UUID")
	ErrLookupFailed    = errors.New("partner lookup failed")
	ErrEncode          = errors.New("response could not be encoded")
)
