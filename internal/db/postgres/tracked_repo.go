package postgres

import (
	"Threadline/internal/atproto/jetstream"
	"context"
	"database/sql"
	"fmt"
)

type postgresTrackedRepoRepo struct {
	db *sql.DB
}

// NewTrackedRepoRepository creates the durable tracked-repo set
func NewTrackedRepoRepository(db *sql.DB) jetstream.TrackedRepoRepository {
	return &postgresTrackedRepoRepo{db: db}
}

// Add inserts a DID into the tracked set (conflict-ignore)
func (r *postgresTrackedRepoRepo) Add(ctx context.Context, did string) error {
	query := `
		INSERT INTO tracked_repos (did, tracked_at)
		VALUES ($1, NOW())
		ON CONFLICT (did) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, did); err != nil {
		return fmt.Errorf("failed to add tracked repo: %w", err)
	}
	return nil
}

// Remove deletes a DID from the tracked set. Removing an absent DID is a no-op.
func (r *postgresTrackedRepoRepo) Remove(ctx context.Context, did string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tracked_repos WHERE did = $1`, did); err != nil {
		return fmt.Errorf("failed to remove tracked repo: %w", err)
	}
	return nil
}

// List returns every tracked DID
func (r *postgresTrackedRepoRepo) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT did FROM tracked_repos ORDER BY did`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked repos: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var dids []string
	for rows.Next() {
		var did string
		if err := rows.Scan(&did); err != nil {
			return nil, fmt.Errorf("failed to scan tracked repo: %w", err)
		}
		dids = append(dids, did)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tracked repos: %w", err)
	}
	return dids, nil
}

// Contains reports membership
func (r *postgresTrackedRepoRepo) Contains(ctx context.Context, did string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM tracked_repos WHERE did = $1)`, did,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check tracked repo: %w", err)
	}
	return exists, nil
}
