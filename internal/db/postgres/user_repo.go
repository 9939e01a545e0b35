package postgres

import (
	"Threadline/internal/core/users"
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"
)

type postgresUserRepo struct {
	db *sql.DB
}

// NewUserRepository creates a new PostgreSQL user repository
func NewUserRepository(db *sql.DB) users.UserRepository {
	return &postgresUserRepo{db: db}
}

// Create inserts a user row
// Idempotent: a conflicting DID returns the existing row (firehose
// consumers race on first contact with an account)
func (r *postgresUserRepo) Create(ctx context.Context, user *users.User) (*users.User, error) {
	query := `
		INSERT INTO users (
			did, handle, role, account_created_at,
			first_seen_at, last_active_at
		) VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (did) DO NOTHING
		RETURNING first_seen_at, last_active_at
	`

	err := r.db.QueryRowContext(ctx, query,
		user.DID, user.Handle, user.Role, user.AccountCreatedAt,
	).Scan(&user.FirstSeenAt, &user.LastActiveAt)

	if err == sql.ErrNoRows {
		// Already exists; hand back the stored row
		return r.GetByDID(ctx, user.DID)
	}
	if err != nil {
		if strings.Contains(err.Error(), "chk_did_format") {
			return nil, fmt.Errorf("invalid DID format: %s", user.DID)
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return user, nil
}

// GetByDID retrieves a user by their DID
func (r *postgresUserRepo) GetByDID(ctx context.Context, did string) (*users.User, error) {
	return r.getUser(ctx, `did = $1`, did)
}

// GetByHandle retrieves a user by their current handle
func (r *postgresUserRepo) GetByHandle(ctx context.Context, handle string) (*users.User, error) {
	return r.getUser(ctx, `handle = $1`, handle)
}

func (r *postgresUserRepo) getUser(ctx context.Context, where string, arg interface{}) (*users.User, error) {
	query := `
		SELECT
			did, handle, role, banned, reputation,
			first_seen_at, last_active_at, account_created_at,
			declared_age, maturity_pref
		FROM users
		WHERE ` + where

	var user users.User

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.DID, &user.Handle, &user.Role, &user.Banned, &user.Reputation,
		&user.FirstSeenAt, &user.LastActiveAt, &user.AccountCreatedAt,
		&user.DeclaredAge, &user.MaturityPref,
	)

	if err == sql.ErrNoRows {
		return nil, users.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// UpdateHandle rotates the stored handle and touches last_active_at
func (r *postgresUserRepo) UpdateHandle(ctx context.Context, did, newHandle string) (*users.User, error) {
	query := `
		UPDATE users
		SET handle = $2, last_active_at = NOW()
		WHERE did = $1
		RETURNING
			did, handle, role, banned, reputation,
			first_seen_at, last_active_at, account_created_at,
			declared_age, maturity_pref
	`

	var user users.User

	err := r.db.QueryRowContext(ctx, query, did, newHandle).Scan(
		&user.DID, &user.Handle, &user.Role, &user.Banned, &user.Reputation,
		&user.FirstSeenAt, &user.LastActiveAt, &user.AccountCreatedAt,
		&user.DeclaredAge, &user.MaturityPref,
	)

	if err == sql.ErrNoRows {
		return nil, users.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update handle: %w", err)
	}

	return &user, nil
}

// SetAccountCreatedAt back-fills the directory-resolved creation timestamp
func (r *postgresUserRepo) SetAccountCreatedAt(ctx context.Context, did string, createdAt time.Time) error {
	query := `
		UPDATE users
		SET account_created_at = $2
		WHERE did = $1 AND account_created_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, did, createdAt)
	if err != nil {
		return fmt.Errorf("failed to set account creation date: %w", err)
	}

	// Zero rows means the row is missing or already back-filled; both fine
	if _, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	return nil
}

// Purge removes everything this DID authored plus the user row itself.
// Order matters for aggregate sanity: reactions first so their subject
// decrements see live rows, then replies, topics, the user, and the
// tracked-repo entry. Aggregates on OTHER users' content touched by this
// account's reactions/replies are not repaired here.
func (r *postgresUserRepo) Purge(ctx context.Context, did string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction for did=%s: %w", did, err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			log.Printf("Failed to rollback purge for %s: %v", did, err)
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM reactions WHERE author_did = $1`, did); err != nil {
		return fmt.Errorf("failed to delete reactions for did=%s: %w", did, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM replies WHERE author_did = $1`, did); err != nil {
		return fmt.Errorf("failed to delete replies for did=%s: %w", did, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM topics WHERE author_did = $1`, did); err != nil {
		return fmt.Errorf("failed to delete topics for did=%s: %w", did, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM interaction_edges WHERE source_did = $1 OR target_did = $1`, did); err != nil {
		return fmt.Errorf("failed to delete interaction edges for did=%s: %w", did, err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE did = $1`, did)
	if err != nil {
		return fmt.Errorf("failed to delete user did=%s: %w", did, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected for did=%s: %w", did, err)
	}
	if rowsAffected == 0 {
		return users.ErrUserNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tracked_repos WHERE did = $1`, did); err != nil {
		return fmt.Errorf("failed to delete tracked repo for did=%s: %w", did, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit purge for did=%s: %w", did, err)
	}
	return nil
}

// ListModeratorDIDs returns the DIDs of all moderator and admin accounts
// Used as implicit trust seeds by the reputation engine
func (r *postgresUserRepo) ListModeratorDIDs(ctx context.Context) ([]string, error) {
	query := `
		SELECT did FROM users
		WHERE role IN ('moderator', 'admin') AND NOT banned
		ORDER BY did
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list moderator DIDs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var dids []string
	for rows.Next() {
		var did string
		if err := rows.Scan(&did); err != nil {
			return nil, fmt.Errorf("failed to scan moderator DID: %w", err)
		}
		dids = append(dids, did)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating moderator DIDs: %w", err)
	}

	return dids, nil
}

// GetProfileStats retrieves aggregated statistics for a user profile
func (r *postgresUserRepo) GetProfileStats(ctx context.Context, did string) (*users.ProfileStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM topics WHERE author_did = $1 AND deleted_at IS NULL),
			(SELECT COUNT(*) FROM replies WHERE author_did = $1 AND deleted_at IS NULL),
			(SELECT COUNT(*) FROM reactions WHERE author_did = $1 AND deleted_at IS NULL),
			COALESCE((SELECT score FROM trust_scores WHERE did = $1 AND community_id = ''), 0.1)
	`

	var stats users.ProfileStats
	err := r.db.QueryRowContext(ctx, query, did).Scan(
		&stats.TopicCount, &stats.ReplyCount, &stats.ReactionCount, &stats.Reputation,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile stats: %w", err)
	}

	return &stats, nil
}
