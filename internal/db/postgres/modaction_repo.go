package postgres

import (
	"Threadline/internal/core/moderation"
	"context"
	"database/sql"
	"fmt"
)

type postgresModerationRepo struct {
	db *sql.DB
}

// NewModerationRepository creates the moderation log repository
func NewModerationRepository(db *sql.DB) moderation.Repository {
	return &postgresModerationRepo{db: db}
}

// RecordAction appends one entry to the append-only moderation log
func (r *postgresModerationRepo) RecordAction(ctx context.Context, action *moderation.ModAction) (*moderation.ModAction, error) {
	query := `
		INSERT INTO mod_actions (community_id, moderator_did, target_did, action, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		action.CommunityID, action.ModeratorDID, action.TargetDID,
		action.Action, action.Reason,
	).Scan(&action.ID, &action.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record moderation action: %w", err)
	}

	return action, nil
}

// CountActiveBans counts communities where the target's latest ban/unban
// entry is a ban. The log is append-only, so "latest per community" is the
// row with the highest id among ban/unban actions.
func (r *postgresModerationRepo) CountActiveBans(ctx context.Context, targetDID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM (
			SELECT DISTINCT ON (community_id) action
			FROM mod_actions
			WHERE target_did = $1 AND action IN ('ban', 'unban')
			ORDER BY community_id, id DESC
		) latest
		WHERE latest.action = 'ban'
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, targetDID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active bans: %w", err)
	}
	return count, nil
}

// UpsertAccountFilter writes the platform-global account filter row
func (r *postgresModerationRepo) UpsertAccountFilter(ctx context.Context, filter *moderation.AccountFilter) error {
	query := `
		INSERT INTO account_filters (target_did, status, ban_count, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (target_did)
		DO UPDATE SET status = $2, ban_count = $3, updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query,
		filter.TargetDID, filter.Status, filter.BanCount,
	); err != nil {
		return fmt.Errorf("failed to upsert account filter: %w", err)
	}
	return nil
}

// GetAccountFilter loads the filter row for a target
func (r *postgresModerationRepo) GetAccountFilter(ctx context.Context, targetDID string) (*moderation.AccountFilter, error) {
	query := `
		SELECT target_did, status, ban_count, updated_at
		FROM account_filters
		WHERE target_did = $1
	`

	var filter moderation.AccountFilter
	err := r.db.QueryRowContext(ctx, query, targetDID).Scan(
		&filter.TargetDID, &filter.Status, &filter.BanCount, &filter.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, moderation.ErrFilterNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account filter: %w", err)
	}
	return &filter, nil
}
