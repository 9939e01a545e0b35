package postgres

import (
	"Threadline/internal/core/replies"
	"context"
	"database/sql"
	"fmt"
	"log"
)

type postgresReplyRepo struct {
	db *sql.DB
}

// NewReplyRepository creates a new PostgreSQL reply repository
func NewReplyRepository(db *sql.DB) replies.Repository {
	return &postgresReplyRepo{db: db}
}

// Create inserts a reply, bumps the root topic's aggregates, and maintains
// the interaction graph, all in one transaction:
//   - reply_count + 1 and last_activity_at on the root topic
//   - a "reply" edge from the reply author to the topic author
//   - "topic-coparticipation" edges to distinct prior repliers on the root
//
// Idempotent: a duplicate URI rolls back to a no-op.
func (r *postgresReplyRepo) Create(ctx context.Context, reply *replies.Reply) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			log.Printf("Failed to rollback reply create for %s: %v", reply.URI, err)
		}
	}()

	insertQuery := `
		INSERT INTO replies (
			uri, cid, rkey, author_did, content,
			root_uri, root_cid, parent_uri, parent_cid,
			community_id, self_labels, trust_status, mod_status,
			created_at, indexed_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13,
			$14, NOW()
		)
		ON CONFLICT (uri) DO NOTHING
		RETURNING indexed_at
	`

	err = tx.QueryRowContext(
		ctx, insertQuery,
		reply.URI, reply.CID, reply.RKey, reply.AuthorDID, reply.Content,
		reply.RootURI, reply.RootCID, reply.ParentURI, reply.ParentCID,
		reply.CommunityID, reply.SelfLabels, reply.TrustStatus, reply.ModStatus,
		reply.CreatedAt,
	).Scan(&reply.IndexedAt)

	// Duplicate URI: already indexed, skip aggregates (firehose replay)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to insert reply: %w", err)
	}

	// Coparticipation edges go to authors who replied before this one.
	// Must run before the reply_count bump so "prior" excludes this reply
	// only via the URI predicate, not ordering assumptions.
	coparticipationQuery := `
		INSERT INTO interaction_edges (source_did, target_did, community_id, kind, weight, first_seen_at, last_seen_at)
		SELECT DISTINCT $1, author_did, $3, 'topic-coparticipation', 1, NOW(), NOW()
		FROM replies
		WHERE root_uri = $2 AND uri != $4 AND author_did != $1 AND deleted_at IS NULL
		ON CONFLICT (source_did, target_did, community_id, kind)
		DO UPDATE SET weight = interaction_edges.weight + 1, last_seen_at = NOW()
	`
	if _, err := tx.ExecContext(ctx, coparticipationQuery,
		reply.AuthorDID, reply.RootURI, reply.CommunityID, reply.URI,
	); err != nil {
		return fmt.Errorf("failed to upsert coparticipation edges: %w", err)
	}

	// Reply edge to the topic author, plus the aggregate bump. Self-replies
	// bump the count but produce no self-edge. The activity bump uses the
	// record timestamp, not NOW(): a backfilled reply must not resurface an
	// old topic, and GREATEST keeps out-of-order live events monotone.
	bumpQuery := `
		UPDATE topics
		SET reply_count = reply_count + 1,
		    last_activity_at = GREATEST(last_activity_at, $2)
		WHERE uri = $1
		RETURNING author_did
	`
	var topicAuthor string
	err = tx.QueryRowContext(ctx, bumpQuery, reply.RootURI, reply.CreatedAt).Scan(&topicAuthor)
	if err == sql.ErrNoRows {
		// Root topic never indexed (out-of-order delivery). Keep the reply;
		// aggregates catch up if the topic arrives later via backfill.
		log.Printf("Warning: Reply %s references unindexed root %s", reply.URI, reply.RootURI)
		return tx.Commit()
	}
	if err != nil {
		return fmt.Errorf("failed to bump topic aggregates: %w", err)
	}

	if topicAuthor != reply.AuthorDID {
		replyEdgeQuery := `
			INSERT INTO interaction_edges (source_did, target_did, community_id, kind, weight, first_seen_at, last_seen_at)
			VALUES ($1, $2, $3, 'reply', 1, NOW(), NOW())
			ON CONFLICT (source_did, target_did, community_id, kind)
			DO UPDATE SET weight = interaction_edges.weight + 1, last_seen_at = NOW()
		`
		if _, err := tx.ExecContext(ctx, replyEdgeQuery,
			reply.AuthorDID, topicAuthor, reply.CommunityID,
		); err != nil {
			return fmt.Errorf("failed to upsert reply edge: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reply create: %w", err)
	}
	return nil
}

// Update overwrites the mutable projection of a reply record
func (r *postgresReplyRepo) Update(ctx context.Context, update *replies.ReplyUpdate) error {
	query := `
		UPDATE replies
		SET cid = $2, content = $3, self_labels = $4, indexed_at = NOW()
		WHERE uri = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query,
		update.URI, update.CID, update.Content, update.SelfLabels,
	)
	if err != nil {
		return fmt.Errorf("failed to update reply: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rowsAffected == 0 {
		return replies.ErrReplyNotFound
	}

	return nil
}

// SoftDelete marks the reply deleted and decrements the root topic's
// reply_count, floored at zero. The root URI comes from the stored row
// since firehose deletes carry no record body.
func (r *postgresReplyRepo) SoftDelete(ctx context.Context, uri string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			log.Printf("Failed to rollback reply delete for %s: %v", uri, err)
		}
	}()

	deleteQuery := `
		UPDATE replies
		SET deleted_at = NOW()
		WHERE uri = $1 AND deleted_at IS NULL
		RETURNING root_uri
	`
	var rootURI string
	err = tx.QueryRowContext(ctx, deleteQuery, uri).Scan(&rootURI)
	if err == sql.ErrNoRows {
		return replies.ErrReplyNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete reply: %w", err)
	}

	decrementQuery := `
		UPDATE topics
		SET reply_count = GREATEST(0, reply_count - 1)
		WHERE uri = $1
	`
	if _, err := tx.ExecContext(ctx, decrementQuery, rootURI); err != nil {
		return fmt.Errorf("failed to decrement topic reply count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reply delete: %w", err)
	}
	return nil
}

// GetByURI retrieves an active reply by its AT-URI
func (r *postgresReplyRepo) GetByURI(ctx context.Context, uri string) (*replies.Reply, error) {
	query := `
		SELECT
			uri, cid, rkey, author_did, content,
			root_uri, root_cid, parent_uri, parent_cid,
			community_id, self_labels, reaction_count,
			trust_status, mod_status,
			created_at, indexed_at, deleted_at
		FROM replies
		WHERE uri = $1 AND deleted_at IS NULL
	`

	var reply replies.Reply

	err := r.db.QueryRowContext(ctx, query, uri).Scan(
		&reply.URI, &reply.CID, &reply.RKey, &reply.AuthorDID, &reply.Content,
		&reply.RootURI, &reply.RootCID, &reply.ParentURI, &reply.ParentCID,
		&reply.CommunityID, &reply.SelfLabels, &reply.ReactionCount,
		&reply.TrustStatus, &reply.ModStatus,
		&reply.CreatedAt, &reply.IndexedAt, &reply.DeletedAt,
	)

	if err == sql.ErrNoRows {
		return nil, replies.ErrReplyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reply by URI: %w", err)
	}

	return &reply, nil
}
