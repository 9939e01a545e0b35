package jetstream

import (
	"context"
	"fmt"
	"log"
)

// restoreBatchSize bounds how many repos are re-added to the upstream
// subscription per call during startup restore.
const restoreBatchSize = 100

// TrackedRepoRepository is the durable set of tracked repo DIDs.
type TrackedRepoRepository interface {
	// Add inserts a DID into the set (conflict-ignore).
	Add(ctx context.Context, did string) error

	// Remove deletes a DID from the set.
	Remove(ctx context.Context, did string) error

	// List returns every tracked DID.
	List(ctx context.Context) ([]string, error)

	// Contains reports membership.
	Contains(ctx context.Context, did string) (bool, error)
}

// UpstreamClient mutates the upstream subscription's wanted-repo set.
type UpstreamClient interface {
	AddRepos(ctx context.Context, dids []string) error
	RemoveRepos(ctx context.Context, dids []string) error
}

// RepoTracker keeps the durable tracked-repo set and the upstream
// subscription in sync. Local state is the source of truth; Restore
// replays it upstream after a restart.
type RepoTracker struct {
	repo     TrackedRepoRepository
	upstream UpstreamClient
}

// NewRepoTracker creates a repo tracker
func NewRepoTracker(repo TrackedRepoRepository, upstream UpstreamClient) *RepoTracker {
	return &RepoTracker{repo: repo, upstream: upstream}
}

// Track adds a repo to the durable set and the upstream subscription.
func (t *RepoTracker) Track(ctx context.Context, did string) error {
	if err := t.repo.Add(ctx, did); err != nil {
		return fmt.Errorf("failed to track repo: %w", err)
	}
	if err := t.upstream.AddRepos(ctx, []string{did}); err != nil {
		return fmt.Errorf("failed to add repo upstream: %w", err)
	}
	log.Printf("✓ Tracking repo: %s", did)
	return nil
}

// Untrack removes a repo from the durable set and the upstream subscription.
func (t *RepoTracker) Untrack(ctx context.Context, did string) error {
	if err := t.repo.Remove(ctx, did); err != nil {
		return fmt.Errorf("failed to untrack repo: %w", err)
	}
	if err := t.upstream.RemoveRepos(ctx, []string{did}); err != nil {
		return fmt.Errorf("failed to remove repo upstream: %w", err)
	}
	log.Printf("✓ Untracked repo: %s", did)
	return nil
}

// IsTracked reports whether a repo is in the durable set.
func (t *RepoTracker) IsTracked(ctx context.Context, did string) (bool, error) {
	return t.repo.Contains(ctx, did)
}

// Restore re-adds the full tracked set to the upstream subscription in
// batches. Called once at ingestion startup.
func (t *RepoTracker) Restore(ctx context.Context) error {
	dids, err := t.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tracked repos: %w", err)
	}

	for start := 0; start < len(dids); start += restoreBatchSize {
		end := start + restoreBatchSize
		if end > len(dids) {
			end = len(dids)
		}
		if err := t.upstream.AddRepos(ctx, dids[start:end]); err != nil {
			return fmt.Errorf("failed to restore repos [%d:%d]: %w", start, end, err)
		}
	}

	log.Printf("✓ Restored %d tracked repos to upstream subscription", len(dids))
	return nil
}
