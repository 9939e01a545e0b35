package reactions

import "errors"

var (
	// ErrReactionNotFound indicates the requested reaction doesn't exist
	ErrReactionNotFound = errors.New("reaction not found")

	// ErrInvalidSubject indicates the subject reference is malformed or incomplete
	ErrInvalidSubject = errors.New("invalid subject: must have both URI and CID")

	// ErrTypeTooLong indicates the reaction type exceeds the grapheme limit
	ErrTypeTooLong = errors.New("reaction type too long")
)
