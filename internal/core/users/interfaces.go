package users

import (
	"context"
	"time"
)

// UserRepository defines the interface for user data persistence
type UserRepository interface {
	// Create inserts a user row. Conflicting DIDs are a no-op (the
	// dispatcher tolerates races between firehose consumers).
	Create(ctx context.Context, user *User) (*User, error)
	GetByDID(ctx context.Context, did string) (*User, error)
	GetByHandle(ctx context.Context, handle string) (*User, error)

	// UpdateHandle rotates the stored handle and touches last_active_at.
	UpdateHandle(ctx context.Context, did, newHandle string) (*User, error)

	// SetAccountCreatedAt back-fills the directory-resolved creation
	// timestamp on an existing row.
	SetAccountCreatedAt(ctx context.Context, did string, createdAt time.Time) error

	// Purge removes everything authored by this DID: reactions, replies,
	// topics, the user row, and the tracked-repo entry, in that order and
	// in a single transaction. Aggregates on other users' content are NOT
	// repaired (documented limitation of identity-deletion).
	Purge(ctx context.Context, did string) error

	// ListModeratorDIDs returns the DIDs of all users with moderator or
	// admin role. Used as implicit trust seeds.
	ListModeratorDIDs(ctx context.Context) ([]string, error)

	// GetProfileStats retrieves aggregated statistics for a user profile.
	GetProfileStats(ctx context.Context, did string) (*ProfileStats, error)
}

// UserService defines the interface for user business logic
type UserService interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*User, error)
	GetUserByDID(ctx context.Context, did string) (*User, error)
	GetUserByHandle(ctx context.Context, handle string) (*User, error)
	UpdateHandle(ctx context.Context, did, newHandle string) (*User, error)
	SetAccountCreatedAt(ctx context.Context, did string, createdAt time.Time) error
	PurgeUser(ctx context.Context, did string) error
	GetProfile(ctx context.Context, did string) (*ProfileViewDetailed, error)
}
