package moderation

import (
	"context"
	"fmt"
	"log"
	"time"
)

// banPropagationThreshold is the number of distinct communities with an
// active ban at which the target becomes globally filtered.
const banPropagationThreshold = 2

// LabelAccountFiltered is attached to accounts under the global filter.
const LabelAccountFiltered = "account-filtered"

// Service records moderation actions and propagates multi-community bans
// into the global account filter.
type Service struct {
	repo  Repository
	cache Cache
}

// NewService creates a moderation service
func NewService(repo Repository, cache Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// RecordAction appends a moderation action. Ban and unban actions trigger a
// ban-count recomputation for the target.
func (s *Service) RecordAction(ctx context.Context, action *ModAction) (*ModAction, error) {
	if action.TargetDID == "" {
		return nil, fmt.Errorf("target DID is required")
	}
	if action.CommunityID == "" {
		return nil, fmt.Errorf("community is required")
	}

	recorded, err := s.repo.RecordAction(ctx, action)
	if err != nil {
		return nil, fmt.Errorf("failed to record mod action: %w", err)
	}

	if action.Action == ActionBan || action.Action == ActionUnban {
		if err := s.propagateBans(ctx, action.TargetDID); err != nil {
			return nil, err
		}
	}

	return recorded, nil
}

// propagateBans recomputes the target's active ban count across communities
// and upserts the global account filter at the threshold. A later unban in
// one community doesn't clear the filter while two other bans stand.
func (s *Service) propagateBans(ctx context.Context, targetDID string) error {
	banCount, err := s.repo.CountActiveBans(ctx, targetDID)
	if err != nil {
		return fmt.Errorf("failed to count active bans: %w", err)
	}

	if banCount < banPropagationThreshold {
		return nil
	}

	filter := &AccountFilter{
		TargetDID: targetDID,
		Status:    FilterStatusFiltered,
		BanCount:  banCount,
		UpdatedAt: time.Now(),
	}
	if err := s.repo.UpsertAccountFilter(ctx, filter); err != nil {
		return fmt.Errorf("failed to upsert account filter: %w", err)
	}

	// Cache errors are non-fatal; the entry expires on its own TTL.
	if err := s.cache.InvalidateAccountFilter(ctx, targetDID); err != nil {
		log.Printf("Warning: Failed to invalidate account-filter cache for %s: %v", targetDID, err)
	}

	log.Printf("✓ Account filter applied to %s (banned in %d communities)", targetDID, banCount)
	return nil
}

// AccountLabels returns the moderation labels for an account, cache-aside
// over the label cache. A cache read failure degrades to a direct lookup.
func (s *Service) AccountLabels(ctx context.Context, did string) ([]string, error) {
	cached, err := s.cache.GetCachedLabels(ctx, did)
	if err != nil {
		log.Printf("Warning: Failed to read label cache for %s: %v", did, err)
	} else if cached != nil {
		return cached, nil
	}

	labels := []string{}
	filter, err := s.repo.GetAccountFilter(ctx, did)
	if err != nil && err != ErrFilterNotFound {
		return nil, fmt.Errorf("failed to load account filter: %w", err)
	}
	if err == nil && filter.Status == FilterStatusFiltered {
		labels = append(labels, LabelAccountFiltered)
	}

	if err := s.cache.CacheLabels(ctx, did, labels); err != nil {
		log.Printf("Warning: Failed to cache labels for %s: %v", did, err)
	}
	return labels, nil
}
