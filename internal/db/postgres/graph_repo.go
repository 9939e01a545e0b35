package postgres

import (
	"Threadline/internal/core/trust"
	"context"
	"database/sql"
	"fmt"
)

type postgresGraphRepo struct {
	db *sql.DB
}

// NewGraphRepository creates the interaction graph + trust score repository
func NewGraphRepository(db *sql.DB) trust.GraphRepository {
	return &postgresGraphRepo{db: db}
}

// UpsertEdge increments the weight of one directed edge. Most edges are
// written inline by the content repos; this path exists for backfill tools.
func (r *postgresGraphRepo) UpsertEdge(ctx context.Context, edge *trust.Edge) error {
	query := `
		INSERT INTO interaction_edges (source_did, target_did, community_id, kind, weight, first_seen_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (source_did, target_did, community_id, kind)
		DO UPDATE SET weight = interaction_edges.weight + $5, last_seen_at = NOW()
	`
	weight := edge.Weight
	if weight <= 0 {
		weight = 1
	}
	if _, err := r.db.ExecContext(ctx, query,
		edge.SourceDID, edge.TargetDID, edge.CommunityID, edge.Kind, weight,
	); err != nil {
		return fmt.Errorf("failed to upsert interaction edge: %w", err)
	}
	return nil
}

// GetEdges returns all edges for a scope. The global scope sees every edge
// regardless of community.
func (r *postgresGraphRepo) GetEdges(ctx context.Context, scope string) ([]trust.Edge, error) {
	query := `
		SELECT source_did, target_did, community_id, kind, weight, first_seen_at, last_seen_at
		FROM interaction_edges
	`
	var rows *sql.Rows
	var err error
	if scope == trust.GlobalScope {
		rows, err = r.db.QueryContext(ctx, query)
	} else {
		rows, err = r.db.QueryContext(ctx, query+` WHERE community_id = $1`, scope)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get interaction edges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var edges []trust.Edge
	for rows.Next() {
		var e trust.Edge
		if err := rows.Scan(
			&e.SourceDID, &e.TargetDID, &e.CommunityID, &e.Kind,
			&e.Weight, &e.FirstSeenAt, &e.LastSeenAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan interaction edge: %w", err)
		}
		edges = append(edges, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating interaction edges: %w", err)
	}
	return edges, nil
}

// GetSeeds returns the explicitly configured seed DIDs for a scope
func (r *postgresGraphRepo) GetSeeds(ctx context.Context, scope string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT did FROM trust_seeds WHERE community_id = $1 ORDER BY did`, scope,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get trust seeds: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var dids []string
	for rows.Next() {
		var did string
		if err := rows.Scan(&did); err != nil {
			return nil, fmt.Errorf("failed to scan trust seed: %w", err)
		}
		dids = append(dids, did)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trust seeds: %w", err)
	}
	return dids, nil
}

// UpsertScore persists one score row
func (r *postgresGraphRepo) UpsertScore(ctx context.Context, did, scope string, score float64) error {
	query := `
		INSERT INTO trust_scores (did, community_id, score, computed_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (did, community_id)
		DO UPDATE SET score = $3, computed_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, did, scope, score); err != nil {
		return fmt.Errorf("failed to upsert trust score: %w", err)
	}
	return nil
}

// GetScore returns the persisted score or ErrScoreNotFound
func (r *postgresGraphRepo) GetScore(ctx context.Context, did, scope string) (float64, error) {
	var score float64
	err := r.db.QueryRowContext(ctx,
		`SELECT score FROM trust_scores WHERE did = $1 AND community_id = $2`,
		did, scope,
	).Scan(&score)

	if err == sql.ErrNoRows {
		return 0, trust.ErrScoreNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get trust score: %w", err)
	}
	return score, nil
}

// GetScores returns every persisted score for a scope as did → score
func (r *postgresGraphRepo) GetScores(ctx context.Context, scope string) (map[string]float64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT did, score FROM trust_scores WHERE community_id = $1`, scope,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get trust scores: %w", err)
	}
	defer func() { _ = rows.Close() }()

	scores := make(map[string]float64)
	for rows.Next() {
		var did string
		var score float64
		if err := rows.Scan(&did, &score); err != nil {
			return nil, fmt.Errorf("failed to scan trust score: %w", err)
		}
		scores[did] = score
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trust scores: %w", err)
	}
	return scores, nil
}
