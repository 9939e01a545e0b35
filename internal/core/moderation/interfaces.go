package moderation

import "context"

// Repository persists the moderation log and account filters.
type Repository interface {
	// RecordAction appends a moderation action to the log.
	RecordAction(ctx context.Context, action *ModAction) (*ModAction, error)

	// CountActiveBans returns the number of distinct communities where the
	// target's latest ban/unban action is a ban.
	CountActiveBans(ctx context.Context, targetDID string) (int, error)

	// UpsertAccountFilter writes the global account-filter row.
	UpsertAccountFilter(ctx context.Context, filter *AccountFilter) error

	// GetAccountFilter loads the filter row for a target, or
	// ErrFilterNotFound when none exists.
	GetAccountFilter(ctx context.Context, targetDID string) (*AccountFilter, error)
}

// Cache holds the derived moderation state: the account-filter entries and
// the per-subject label lists. Invalidation failures are non-fatal; the
// service logs and continues, and entries expire on their own TTLs.
type Cache interface {
	// InvalidateAccountFilter drops a target's cached filter entry and
	// label list.
	InvalidateAccountFilter(ctx context.Context, targetDID string) error

	// CacheLabels stores the computed label list for a subject.
	CacheLabels(ctx context.Context, uri string, labels []string) error

	// GetCachedLabels returns the cached label list. A miss is (nil, nil);
	// a cached empty list comes back as a non-nil empty slice.
	GetCachedLabels(ctx context.Context, uri string) ([]string, error)
}
