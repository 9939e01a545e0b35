package users

import (
	"errors"
	"fmt"
)

// Sentinel errors for common user operations
var (
	// ErrUserNotFound is returned when a user lookup finds no matching record
	ErrUserNotFound = errors.New("user not found")

	// ErrHandleAlreadyTaken is returned when attempting to use a handle that belongs to another user
	ErrHandleAlreadyTaken = errors.New("handle already taken")
)

// InvalidDIDError is returned when a DID does not meet format requirements
type InvalidDIDError struct {
	DID    string
	Reason string
}

func (e *InvalidDIDError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid DID %q: %s", e.DID, e.Reason)
	}
	return fmt.Sprintf("invalid DID %q: must start with 'did:'", e.DID)
}

// InvalidHandleError is returned when a handle fails format validation
type InvalidHandleError struct {
	Handle string
	Reason string
}

func (e *InvalidHandleError) Error() string {
	return fmt.Sprintf("invalid handle %q: %s", e.Handle, e.Reason)
}
