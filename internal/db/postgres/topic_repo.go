package postgres

import (
	"Threadline/internal/core/topics"
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

type postgresTopicRepo struct {
	db *sql.DB
}

// NewTopicRepository creates a new PostgreSQL topic repository
func NewTopicRepository(db *sql.DB) topics.Repository {
	return &postgresTopicRepo{db: db}
}

// Create inserts a new topic projection
// Called by the firehose consumer after the record is created on the PDS
// Idempotent: returns success if the URI is already indexed (firehose replays)
func (r *postgresTopicRepo) Create(ctx context.Context, topic *topics.Topic) error {
	query := `
		INSERT INTO topics (
			uri, cid, rkey, author_did, community_id,
			title, content, category, tags, self_labels,
			trust_status, mod_status, last_activity_at,
			created_at, indexed_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13,
			$14, NOW()
		)
		ON CONFLICT (uri) DO NOTHING
		RETURNING indexed_at
	`

	err := r.db.QueryRowContext(
		ctx, query,
		topic.URI, topic.CID, topic.RKey, topic.AuthorDID, topic.CommunityID,
		topic.Title, topic.Content, topic.Category, pq.Array(topic.Tags), topic.SelfLabels,
		topic.TrustStatus, topic.ModStatus, topic.CreatedAt,
		topic.CreatedAt,
	).Scan(&topic.IndexedAt)

	// ON CONFLICT DO NOTHING returns no rows on duplicate - OK for replays
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to insert topic: %w", err)
	}

	return nil
}

// Update overwrites the mutable projection of a topic record
// Aggregates, created_at, and trust_status are untouched
func (r *postgresTopicRepo) Update(ctx context.Context, update *topics.TopicUpdate) error {
	query := `
		UPDATE topics
		SET cid = $2, title = $3, content = $4, category = $5,
		    tags = $6, self_labels = $7, indexed_at = NOW()
		WHERE uri = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query,
		update.URI, update.CID, update.Title, update.Content, update.Category,
		pq.Array(update.Tags), update.SelfLabels,
	)
	if err != nil {
		return fmt.Errorf("failed to update topic: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rowsAffected == 0 {
		return topics.ErrTopicNotFound
	}

	return nil
}

// SoftDelete marks a topic author-deleted. The row and its aggregates stay
// for referential integrity with replies.
// Idempotent: returns success if already deleted
func (r *postgresTopicRepo) SoftDelete(ctx context.Context, uri string) error {
	query := `
		UPDATE topics
		SET deleted_at = NOW()
		WHERE uri = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, uri)
	if err != nil {
		return fmt.Errorf("failed to delete topic: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rowsAffected == 0 {
		return topics.ErrTopicNotFound
	}

	return nil
}

// GetByURI retrieves an active topic by its AT-URI
func (r *postgresTopicRepo) GetByURI(ctx context.Context, uri string) (*topics.Topic, error) {
	query := `
		SELECT
			uri, cid, rkey, author_did, community_id,
			title, content, category, tags, self_labels,
			reply_count, reaction_count, trust_status, mod_status,
			last_activity_at, created_at, indexed_at, deleted_at
		FROM topics
		WHERE uri = $1 AND deleted_at IS NULL
	`

	var topic topics.Topic

	err := r.db.QueryRowContext(ctx, query, uri).Scan(
		&topic.URI, &topic.CID, &topic.RKey, &topic.AuthorDID, &topic.CommunityID,
		&topic.Title, &topic.Content, &topic.Category, pq.Array(&topic.Tags), &topic.SelfLabels,
		&topic.ReplyCount, &topic.ReactionCount, &topic.TrustStatus, &topic.ModStatus,
		&topic.LastActivityAt, &topic.CreatedAt, &topic.IndexedAt, &topic.DeletedAt,
	)

	if err == sql.ErrNoRows {
		return nil, topics.ErrTopicNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get topic by URI: %w", err)
	}

	return &topic, nil
}
