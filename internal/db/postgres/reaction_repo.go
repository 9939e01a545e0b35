package postgres

import (
	"Threadline/internal/core/reactions"
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
)

type postgresReactionRepo struct {
	db *sql.DB
}

// NewReactionRepository creates a new PostgreSQL reaction repository
func NewReactionRepository(db *sql.DB) reactions.Repository {
	return &postgresReactionRepo{db: db}
}

// subjectTable maps the collection segment of a subject AT-URI to the table
// carrying its reaction_count aggregate. Unknown collections get no bump.
func subjectTable(subjectURI string) string {
	// at://did/collection/rkey
	parts := strings.Split(strings.TrimPrefix(subjectURI, "at://"), "/")
	if len(parts) < 3 {
		return ""
	}
	switch parts[1] {
	case "forum.threadline.topic.post":
		return "topics"
	case "forum.threadline.topic.reply":
		return "replies"
	}
	return ""
}

// Create inserts a reaction, bumps the subject's reaction_count, and upserts
// a "reaction" edge to the subject author, all in one transaction.
// Idempotent two ways: a duplicate URI and a duplicate (author, subject,
// type) triple are both no-ops.
func (r *postgresReactionRepo) Create(ctx context.Context, reaction *reactions.Reaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			log.Printf("Failed to rollback reaction create for %s: %v", reaction.URI, err)
		}
	}()

	insertQuery := `
		INSERT INTO reactions (
			uri, cid, rkey, author_did,
			subject_uri, subject_cid, reaction_type, community_id,
			created_at, indexed_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, NOW()
		)
		ON CONFLICT DO NOTHING
		RETURNING indexed_at
	`

	err = tx.QueryRowContext(
		ctx, insertQuery,
		reaction.URI, reaction.CID, reaction.RKey, reaction.AuthorDID,
		reaction.SubjectURI, reaction.SubjectCID, reaction.Type, reaction.CommunityID,
		reaction.CreatedAt,
	).Scan(&reaction.IndexedAt)

	// Conflict on either the URI or the (author, subject, type) unique
	// index: already indexed, skip aggregates (firehose replay)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to insert reaction: %w", err)
	}

	table := subjectTable(reaction.SubjectURI)
	if table == "" {
		log.Printf("Warning: Reaction %s on unknown subject collection: %s", reaction.URI, reaction.SubjectURI)
		return tx.Commit()
	}

	bumpQuery := fmt.Sprintf(`
		UPDATE %s
		SET reaction_count = reaction_count + 1
		WHERE uri = $1
		RETURNING author_did
	`, table)

	var subjectAuthor string
	err = tx.QueryRowContext(ctx, bumpQuery, reaction.SubjectURI).Scan(&subjectAuthor)
	if err == sql.ErrNoRows {
		log.Printf("Warning: Reaction %s references unindexed subject %s", reaction.URI, reaction.SubjectURI)
		return tx.Commit()
	}
	if err != nil {
		return fmt.Errorf("failed to bump subject reaction count: %w", err)
	}

	if subjectAuthor != reaction.AuthorDID {
		edgeQuery := `
			INSERT INTO interaction_edges (source_did, target_did, community_id, kind, weight, first_seen_at, last_seen_at)
			VALUES ($1, $2, $3, 'reaction', 1, NOW(), NOW())
			ON CONFLICT (source_did, target_did, community_id, kind)
			DO UPDATE SET weight = interaction_edges.weight + 1, last_seen_at = NOW()
		`
		if _, err := tx.ExecContext(ctx, edgeQuery,
			reaction.AuthorDID, subjectAuthor, reaction.CommunityID,
		); err != nil {
			return fmt.Errorf("failed to upsert reaction edge: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reaction create: %w", err)
	}
	return nil
}

// Delete tombstones a reaction via deleted_at and decrements the subject's
// reaction_count, floored at zero. The subject URI comes from the stored row.
// Rows are tombstoned rather than removed so firehose replays of the delete
// stay no-ops and the row survives as an audit trail; the uniqueness index
// on (author, subject, type) is partial over deleted_at IS NULL, so the same
// reaction can be recreated after deletion.
// Idempotent: returns ErrReactionNotFound if already gone, which consumers
// treat as success.
func (r *postgresReactionRepo) Delete(ctx context.Context, uri string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			log.Printf("Failed to rollback reaction delete for %s: %v", uri, err)
		}
	}()

	deleteQuery := `
		UPDATE reactions
		SET deleted_at = NOW()
		WHERE uri = $1 AND deleted_at IS NULL
		RETURNING subject_uri
	`
	var subjectURI string
	err = tx.QueryRowContext(ctx, deleteQuery, uri).Scan(&subjectURI)
	if err == sql.ErrNoRows {
		return reactions.ErrReactionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete reaction: %w", err)
	}

	if table := subjectTable(subjectURI); table != "" {
		decrementQuery := fmt.Sprintf(`
			UPDATE %s
			SET reaction_count = GREATEST(0, reaction_count - 1)
			WHERE uri = $1
		`, table)
		if _, err := tx.ExecContext(ctx, decrementQuery, subjectURI); err != nil {
			return fmt.Errorf("failed to decrement subject reaction count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reaction delete: %w", err)
	}
	return nil
}

// GetByURI retrieves an active reaction by its AT-URI
func (r *postgresReactionRepo) GetByURI(ctx context.Context, uri string) (*reactions.Reaction, error) {
	query := `
		SELECT
			uri, cid, rkey, author_did,
			subject_uri, subject_cid, reaction_type, community_id,
			created_at, indexed_at, deleted_at
		FROM reactions
		WHERE uri = $1 AND deleted_at IS NULL
	`

	var reaction reactions.Reaction

	err := r.db.QueryRowContext(ctx, query, uri).Scan(
		&reaction.URI, &reaction.CID, &reaction.RKey, &reaction.AuthorDID,
		&reaction.SubjectURI, &reaction.SubjectCID, &reaction.Type, &reaction.CommunityID,
		&reaction.CreatedAt, &reaction.IndexedAt, &reaction.DeletedAt,
	)

	if err == sql.ErrNoRows {
		return nil, reactions.ErrReactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reaction by URI: %w", err)
	}

	return &reaction, nil
}
