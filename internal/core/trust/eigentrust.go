package trust

import (
	"context"
	"fmt"
	"log"
	"math"

	"Threadline/internal/core/users"
)

const (
	// maxIterations bounds the power iteration; runs that don't converge
	// report Converged = false.
	maxIterations = 20

	// convergenceEpsilon is the max per-node delta below which iteration stops.
	convergenceEpsilon = 1e-3

	// seedDamping splits each node's score between the seed prior and the
	// inflow term. Seeds keep non-trivial mass even in sparse graphs, and
	// trust can't concentrate entirely in seeds.
	seedDamping = 0.5

	// DefaultScore is returned for users with no persisted score.
	DefaultScore = 0.1
)

// ComputeTrust runs the damped EigenTrust iteration over a directed weighted
// graph. Edge kinds collapse by summation into a single weight per
// (source, target). Double-buffering keeps the result independent of node
// iteration order.
func ComputeTrust(edges []Edge, seeds map[string]bool) ComputeResult {
	type pair struct{ src, dst string }

	weights := make(map[pair]float64)
	nodes := make(map[string]bool)
	for _, e := range edges {
		if e.Weight <= 0 {
			continue
		}
		weights[pair{e.SourceDID, e.TargetDID}] += float64(e.Weight)
		nodes[e.SourceDID] = true
		nodes[e.TargetDID] = true
	}
	for did := range seeds {
		nodes[did] = true
	}

	if len(seeds) == 0 {
		// No seeds means no trust to propagate.
		zeros := make(map[string]float64, len(nodes))
		for did := range nodes {
			zeros[did] = 0
		}
		return ComputeResult{Scores: zeros, Iterations: 0, Converged: true}
	}

	// Outgoing weight totals per source, for row normalization.
	outTotal := make(map[string]float64)
	for p, w := range weights {
		outTotal[p.src] += w
	}

	// Incoming adjacency for the inflow term.
	type inEdge struct {
		src string
		w   float64
	}
	incoming := make(map[string][]inEdge)
	for p, w := range weights {
		incoming[p.dst] = append(incoming[p.dst], inEdge{src: p.src, w: w})
	}

	scores := make(map[string]float64, len(nodes))
	for did := range nodes {
		if seeds[did] {
			scores[did] = 1.0
		}
	}

	iterations := 0
	converged := false
	for i := 0; i < maxIterations; i++ {
		iterations = i + 1
		next := make(map[string]float64, len(nodes))

		maxDelta := 0.0
		for did := range nodes {
			var inflow float64
			for _, in := range incoming[did] {
				if total := outTotal[in.src]; total > 0 {
					inflow += scores[in.src] * in.w / total
				}
			}
			var seedTerm float64
			if seeds[did] {
				seedTerm = 1.0
			}
			v := seedDamping*seedTerm + (1-seedDamping)*inflow
			next[did] = v

			if delta := math.Abs(v - scores[did]); delta > maxDelta {
				maxDelta = delta
			}
		}

		scores = next
		if maxDelta < convergenceEpsilon {
			converged = true
			break
		}
	}

	return ComputeResult{Scores: scores, Iterations: iterations, Converged: converged}
}

// Engine loads the interaction graph, runs EigenTrust, and persists scores.
type Engine struct {
	graphRepo GraphRepository
	userRepo  users.UserRepository
}

// NewEngine creates a reputation engine backed by the given repositories
func NewEngine(graphRepo GraphRepository, userRepo users.UserRepository) *Engine {
	return &Engine{graphRepo: graphRepo, userRepo: userRepo}
}

// RunResult reports one engine run for a scope.
type RunResult struct {
	Scope      string `json:"scope"`
	Nodes      int    `json:"nodes"`
	Iterations int    `json:"iterations"`
	Converged  bool   `json:"converged"`
}

// Run computes and persists trust scores for a scope. The computation is
// entirely in memory; writes upsert one row at a time so no long-lived
// transaction is held.
func (e *Engine) Run(ctx context.Context, scope string) (*RunResult, error) {
	edges, err := e.graphRepo.GetEdges(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to load interaction edges: %w", err)
	}

	seedDIDs, err := e.graphRepo.GetSeeds(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to load trust seeds: %w", err)
	}

	// Admins and moderators are implicit seeds in every scope.
	modDIDs, err := e.userRepo.ListModeratorDIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load moderator seeds: %w", err)
	}

	seeds := make(map[string]bool, len(seedDIDs)+len(modDIDs))
	for _, did := range seedDIDs {
		seeds[did] = true
	}
	for _, did := range modDIDs {
		seeds[did] = true
	}

	result := ComputeTrust(edges, seeds)

	for did, score := range result.Scores {
		if err := e.graphRepo.UpsertScore(ctx, did, scope, score); err != nil {
			return nil, fmt.Errorf("failed to persist score for %s: %w", did, err)
		}
	}

	if !result.Converged {
		log.Printf("Warning: EigenTrust did not converge for scope %q after %d iterations", scope, result.Iterations)
	}

	return &RunResult{
		Scope:      scope,
		Nodes:      len(result.Scores),
		Iterations: result.Iterations,
		Converged:  result.Converged,
	}, nil
}

// GetTrustScore returns the persisted score for (did, scope), falling back
// to DefaultScore when none has been computed yet.
func (e *Engine) GetTrustScore(ctx context.Context, did, scope string) (float64, error) {
	score, err := e.graphRepo.GetScore(ctx, did, scope)
	if err != nil {
		if err == ErrScoreNotFound {
			return DefaultScore, nil
		}
		return 0, err
	}
	return score, nil
}
