package users

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// atProto handle validation regex
// Handles must: start/end with alphanumeric, contain only alphanumeric + hyphens, no consecutive hyphens
var handleRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?)*$`)

type userService struct {
	userRepo UserRepository
}

// NewUserService creates a new user service
func NewUserService(userRepo UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

// CreateUser creates a new user in the AppView database
// Idempotent: the repository ignores duplicate DIDs, so racing firehose
// consumers can both call this safely.
func (s *userService) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	req.DID = strings.TrimSpace(req.DID)
	req.Handle = strings.TrimSpace(strings.ToLower(req.Handle))

	if !strings.HasPrefix(req.DID, "did:") {
		return nil, &InvalidDIDError{DID: req.DID}
	}

	// The dispatcher stubs the handle to the DID for first-seen authors;
	// the identity handler corrects it later. Only validate real handles.
	if req.Handle != "" && req.Handle != req.DID && !handleRegex.MatchString(req.Handle) {
		return nil, &InvalidHandleError{Handle: req.Handle, Reason: "must be a valid hostname-style handle"}
	}

	now := time.Now()
	user := &User{
		DID:              req.DID,
		Handle:           req.Handle,
		Role:             RoleUser,
		FirstSeenAt:      now,
		LastActiveAt:     now,
		AccountCreatedAt: req.AccountCreatedAt,
	}
	if user.Handle == "" {
		user.Handle = user.DID
	}

	return s.userRepo.Create(ctx, user)
}

// GetUserByDID retrieves a user by their DID
func (s *userService) GetUserByDID(ctx context.Context, did string) (*User, error) {
	if strings.TrimSpace(did) == "" {
		return nil, fmt.Errorf("DID is required")
	}
	return s.userRepo.GetByDID(ctx, did)
}

// GetUserByHandle retrieves a user by their handle
func (s *userService) GetUserByHandle(ctx context.Context, handle string) (*User, error) {
	handle = strings.TrimSpace(strings.ToLower(handle))
	if handle == "" {
		return nil, fmt.Errorf("handle is required")
	}
	return s.userRepo.GetByHandle(ctx, handle)
}

// UpdateHandle rotates a user's handle after an identity event
func (s *userService) UpdateHandle(ctx context.Context, did, newHandle string) (*User, error) {
	newHandle = strings.TrimSpace(strings.ToLower(newHandle))
	if newHandle == "" {
		return nil, fmt.Errorf("handle is required")
	}
	if !handleRegex.MatchString(newHandle) {
		return nil, &InvalidHandleError{Handle: newHandle, Reason: "must be a valid hostname-style handle"}
	}
	return s.userRepo.UpdateHandle(ctx, did, newHandle)
}

// SetAccountCreatedAt back-fills the directory-resolved account creation time
func (s *userService) SetAccountCreatedAt(ctx context.Context, did string, createdAt time.Time) error {
	if strings.TrimSpace(did) == "" {
		return fmt.Errorf("DID is required")
	}
	return s.userRepo.SetAccountCreatedAt(ctx, did, createdAt)
}

// PurgeUser removes a user and everything they authored.
// Called by the identity handler on account-deletion events.
func (s *userService) PurgeUser(ctx context.Context, did string) error {
	if strings.TrimSpace(did) == "" {
		return fmt.Errorf("DID is required")
	}
	return s.userRepo.Purge(ctx, did)
}

// GetProfile retrieves a user's full profile with aggregated statistics
func (s *userService) GetProfile(ctx context.Context, did string) (*ProfileViewDetailed, error) {
	user, err := s.userRepo.GetByDID(ctx, did)
	if err != nil {
		return nil, err
	}

	stats, err := s.userRepo.GetProfileStats(ctx, did)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile stats: %w", err)
	}

	return &ProfileViewDetailed{
		DID:         user.DID,
		Handle:      user.Handle,
		Role:        user.Role,
		FirstSeenAt: user.FirstSeenAt,
		Stats:       stats,
	}, nil
}
