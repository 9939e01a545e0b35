package postgres

import (
	"Threadline/internal/core/trust"
	"context"
	"database/sql"
	"fmt"
	"time"
)

type postgresActivityRepo struct {
	db *sql.DB
}

// NewActivityRepository creates the scan-query repository used by the
// behavioral heuristics
func NewActivityRepository(db *sql.DB) trust.ActivityRepository {
	return &postgresActivityRepo{db: db}
}

// ReactionBursts returns per-author reaction counts within the window for
// authors strictly above the threshold
func (r *postgresActivityRepo) ReactionBursts(ctx context.Context, window time.Duration, threshold int) (map[string]int, error) {
	query := `
		SELECT author_did, COUNT(*)
		FROM reactions
		WHERE created_at > $1 AND deleted_at IS NULL
		GROUP BY author_did
		HAVING COUNT(*) > $2
	`
	rows, err := r.db.QueryContext(ctx, query, time.Now().Add(-window), threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to scan reaction bursts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	bursts := make(map[string]int)
	for rows.Next() {
		var did string
		var count int
		if err := rows.Scan(&did, &count); err != nil {
			return nil, fmt.Errorf("failed to scan burst row: %w", err)
		}
		bursts[did] = count
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating burst rows: %w", err)
	}
	return bursts, nil
}

// RecentContents returns (uri, author, text) for topics and replies created
// within the window. Topic text is title + content so near-duplicate posts
// with tweaked titles still collide.
func (r *postgresActivityRepo) RecentContents(ctx context.Context, window time.Duration) ([]trust.AuthoredText, error) {
	query := `
		SELECT uri, author_did, title || ' ' || content AS text
		FROM topics
		WHERE created_at > $1 AND deleted_at IS NULL
		UNION ALL
		SELECT uri, author_did, content AS text
		FROM replies
		WHERE created_at > $1 AND deleted_at IS NULL
	`
	rows, err := r.db.QueryContext(ctx, query, time.Now().Add(-window))
	if err != nil {
		return nil, fmt.Errorf("failed to scan recent contents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var contents []trust.AuthoredText
	for rows.Next() {
		var c trust.AuthoredText
		if err := rows.Scan(&c.URI, &c.AuthorDID, &c.Text); err != nil {
			return nil, fmt.Errorf("failed to scan content row: %w", err)
		}
		contents = append(contents, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating content rows: %w", err)
	}
	return contents, nil
}

// ReactionDiversity returns per-author reaction volume and subject spread
// for authors above the minimum volume
func (r *postgresActivityRepo) ReactionDiversity(ctx context.Context, minReactions int) (map[string]trust.Diversity, error) {
	query := `
		SELECT author_did, COUNT(*), COUNT(DISTINCT subject_uri)
		FROM reactions
		WHERE deleted_at IS NULL
		GROUP BY author_did
		HAVING COUNT(*) > $1
	`
	rows, err := r.db.QueryContext(ctx, query, minReactions)
	if err != nil {
		return nil, fmt.Errorf("failed to scan reaction diversity: %w", err)
	}
	defer func() { _ = rows.Close() }()

	diversity := make(map[string]trust.Diversity)
	for rows.Next() {
		var did string
		var d trust.Diversity
		if err := rows.Scan(&did, &d.Reactions, &d.DistinctSubjects); err != nil {
			return nil, fmt.Errorf("failed to scan diversity row: %w", err)
		}
		diversity[did] = d
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating diversity rows: %w", err)
	}
	return diversity, nil
}
