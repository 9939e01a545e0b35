package oauth

import "errors"

var (
	// ErrSessionNotFound indicates the session expired or never existed
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidToken indicates a malformed or unknown token
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrStateNotFound indicates the OAuth state expired or was replayed
	ErrStateNotFound = errors.New("oauth state not found")
)
