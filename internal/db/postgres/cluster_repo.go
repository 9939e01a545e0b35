package postgres

import (
	"Threadline/internal/core/trust"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"github.com/lib/pq"
)

type postgresClusterRepo struct {
	db *sql.DB
}

// NewClusterRepository creates the sybil cluster repository
func NewClusterRepository(db *sql.DB) trust.ClusterRepository {
	return &postgresClusterRepo{db: db}
}

// GetStatus returns the stored status for a cluster hash
func (r *postgresClusterRepo) GetStatus(ctx context.Context, hash string) (string, error) {
	var status string
	err := r.db.QueryRowContext(ctx,
		`SELECT status FROM sybil_clusters WHERE cluster_hash = $1`, hash,
	).Scan(&status)

	if err == sql.ErrNoRows {
		return "", trust.ErrClusterNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get cluster status: %w", err)
	}
	return status, nil
}

// Upsert writes the cluster row and replaces its member list in one
// transaction. Re-detection of a known cluster refreshes edge counts and
// updated_at but never overwrites a moderator-set status.
func (r *postgresClusterRepo) Upsert(ctx context.Context, cluster *trust.SybilCluster, members []trust.ClusterMember) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			log.Printf("Failed to rollback cluster upsert for %s: %v", cluster.Hash, err)
		}
	}()

	clusterQuery := `
		INSERT INTO sybil_clusters (
			cluster_hash, community_id, internal_edges, external_edges,
			member_count, status, detected_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (cluster_hash)
		DO UPDATE SET
			internal_edges = $3, external_edges = $4,
			member_count = $5, updated_at = NOW()
	`
	if _, err := tx.ExecContext(ctx, clusterQuery,
		cluster.Hash, cluster.CommunityID, cluster.InternalEdges,
		cluster.ExternalEdges, cluster.MemberCount, cluster.Status,
	); err != nil {
		return fmt.Errorf("failed to upsert sybil cluster: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM sybil_cluster_members WHERE cluster_hash = $1`, cluster.Hash,
	); err != nil {
		return fmt.Errorf("failed to clear cluster members: %w", err)
	}

	memberQuery := `
		INSERT INTO sybil_cluster_members (cluster_hash, did, role)
		VALUES ($1, $2, $3)
	`
	for _, m := range members {
		if _, err := tx.ExecContext(ctx, memberQuery, cluster.Hash, m.DID, m.Role); err != nil {
			return fmt.Errorf("failed to insert cluster member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cluster upsert: %w", err)
	}
	return nil
}

type postgresFlagRepo struct {
	db *sql.DB
}

// NewFlagRepository creates the behavioral flag repository
func NewFlagRepository(db *sql.DB) trust.FlagRepository {
	return &postgresFlagRepo{db: db}
}

// Insert appends one heuristic finding. Details go in as JSONB.
func (r *postgresFlagRepo) Insert(ctx context.Context, flag *trust.BehavioralFlag) error {
	details, err := json.Marshal(flag.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal flag details: %w", err)
	}

	query := `
		INSERT INTO behavioral_flags (flag_type, affected_dids, details, detected_at)
		VALUES ($1, $2, $3, NOW())
	`
	if _, err := r.db.ExecContext(ctx, query,
		flag.Type, pq.Array(flag.AffectedDIDs), details,
	); err != nil {
		return fmt.Errorf("failed to insert behavioral flag: %w", err)
	}
	return nil
}
