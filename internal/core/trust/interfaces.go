package trust

import (
	"context"
	"time"
)

// GraphRepository persists the interaction graph, trust seeds, and scores.
type GraphRepository interface {
	// UpsertEdge increments the weight of (source, target, community, kind)
	// and advances last_seen_at. Meant to run inside the indexer's
	// transaction via the repository implementation.
	UpsertEdge(ctx context.Context, edge *Edge) error

	// GetEdges returns all edges for a scope. GlobalScope returns every
	// edge regardless of community.
	GetEdges(ctx context.Context, scope string) ([]Edge, error)

	// GetSeeds returns the configured seed DIDs for a scope (admins and
	// moderators are added separately by the engine).
	GetSeeds(ctx context.Context, scope string) ([]string, error)

	// UpsertScore persists one (did, scope, score) row with computed_at = now().
	UpsertScore(ctx context.Context, did, scope string, score float64) error

	// GetScore returns the persisted score or ErrScoreNotFound.
	GetScore(ctx context.Context, did, scope string) (float64, error)

	// GetScores returns all persisted scores for a scope as did → score.
	GetScores(ctx context.Context, scope string) (map[string]float64, error)
}

// ClusterRepository persists sybil clusters and their member lists.
type ClusterRepository interface {
	// GetStatus returns the stored status for a cluster hash, or
	// ErrClusterNotFound if no such cluster has been recorded.
	GetStatus(ctx context.Context, hash string) (string, error)

	// Upsert writes the cluster row and replaces its member list.
	Upsert(ctx context.Context, cluster *SybilCluster, members []ClusterMember) error
}

// FlagRepository persists behavioral flags.
type FlagRepository interface {
	Insert(ctx context.Context, flag *BehavioralFlag) error
}

// ActivityRepository exposes the scan queries the behavioral heuristics need.
type ActivityRepository interface {
	// ReactionBursts returns per-author reaction counts within the window,
	// for authors exceeding threshold.
	ReactionBursts(ctx context.Context, window time.Duration, threshold int) (map[string]int, error)

	// RecentContents returns (uri, author, text) for topics and replies
	// created within the window.
	RecentContents(ctx context.Context, window time.Duration) ([]AuthoredText, error)

	// ReactionDiversity returns per-author total reaction count and
	// distinct subject count, for authors with more than minReactions.
	ReactionDiversity(ctx context.Context, minReactions int) (map[string]Diversity, error)
}

// AuthoredText is one piece of content considered by the similarity detector.
type AuthoredText struct {
	URI       string
	AuthorDID string
	Text      string
}

// Diversity pairs an author's reaction volume with its subject spread.
type Diversity struct {
	Reactions        int
	DistinctSubjects int
}
