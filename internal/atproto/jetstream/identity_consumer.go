package jetstream

import (
	"context"
	"errors"
	"fmt"
	"log"

	"Threadline/internal/core/users"
)

// IdentityEventConsumer applies identity-lifecycle events: handle rotation
// on active, full purge on deletion. Takedowns and suspensions are logged
// only - moderation acts on those through its own surface.
type IdentityEventConsumer struct {
	userService users.UserService
	tracker     *RepoTracker
}

// NewIdentityEventConsumer creates a new consumer for identity events
func NewIdentityEventConsumer(userService users.UserService, tracker *RepoTracker) *IdentityEventConsumer {
	return &IdentityEventConsumer{userService: userService, tracker: tracker}
}

// HandleEvent processes one identity event.
func (c *IdentityEventConsumer) HandleEvent(ctx context.Context, event *IdentityEvent) error {
	if event.DID == "" {
		return fmt.Errorf("identity event missing did")
	}

	switch event.Status {
	case StatusActive:
		return c.upsertUser(ctx, event)
	case StatusDeleted:
		return c.purgeUser(ctx, event)
	case StatusTakendown, StatusSuspended, StatusDeactivated:
		log.Printf("Identity status %s for %s (no action)", event.Status, event.DID)
		return nil
	default:
		log.Printf("Unknown identity status %q for %s (ignored)", event.Status, event.DID)
		return nil
	}
}

// upsertUser records the current handle, creating the user row if this is
// the first time we see the account.
func (c *IdentityEventConsumer) upsertUser(ctx context.Context, event *IdentityEvent) error {
	if event.Handle == "" {
		return fmt.Errorf("active identity event missing handle for %s", event.DID)
	}

	_, err := c.userService.UpdateHandle(ctx, event.DID, event.Handle)
	if err == nil {
		log.Printf("✓ Handle updated: %s → %s", event.DID, event.Handle)
		return nil
	}
	if !errors.Is(err, users.ErrUserNotFound) {
		return fmt.Errorf("failed to update handle: %w", err)
	}

	if _, err := c.userService.CreateUser(ctx, users.CreateUserRequest{
		DID:    event.DID,
		Handle: event.Handle,
	}); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	log.Printf("✓ Indexed user: %s (%s)", event.Handle, event.DID)
	return nil
}

// purgeUser removes the account and everything it authored, then drops the
// repo from the tracked set. Aggregates on other users' content are NOT
// repaired; identity-deletion purges authorship only.
func (c *IdentityEventConsumer) purgeUser(ctx context.Context, event *IdentityEvent) error {
	if err := c.userService.PurgeUser(ctx, event.DID); err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			log.Printf("User already purged or never indexed: %s", event.DID)
			return nil
		}
		return fmt.Errorf("failed to purge user: %w", err)
	}

	if err := c.tracker.Untrack(ctx, event.DID); err != nil {
		// The user data is already gone; a stale tracked-repo entry is
		// recoverable on the next restore.
		log.Printf("Warning: Failed to untrack deleted repo %s: %v", event.DID, err)
	}

	log.Printf("✓ Purged deleted account: %s", event.DID)
	return nil
}
