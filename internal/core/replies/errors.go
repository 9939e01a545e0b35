package replies

import "errors"

var (
	// ErrReplyNotFound indicates the requested reply doesn't exist
	ErrReplyNotFound = errors.New("reply not found")

	// ErrMissingRoot indicates a reply record without a root reference
	ErrMissingRoot = errors.New("reply missing root reference")
)
