package topics

import "errors"

var (
	// ErrTopicNotFound indicates the requested topic doesn't exist
	ErrTopicNotFound = errors.New("topic not found")

	// ErrInvalidURI indicates the topic URI is malformed
	ErrInvalidURI = errors.New("invalid topic URI")
)
