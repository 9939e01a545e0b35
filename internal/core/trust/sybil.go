package trust

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
)

const (
	// lowTrustThreshold marks a user as low-trust in a scope.
	lowTrustThreshold = 0.05

	// minClusterSize discards tiny components before ratio analysis.
	minClusterSize = 3

	// internalRatioThreshold flags components whose interactions are
	// overwhelmingly internal.
	internalRatioThreshold = 0.8
)

// Detector finds sybil clusters among low-trust users. Runs after the
// reputation engine so scores are fresh.
type Detector struct {
	graphRepo   GraphRepository
	clusterRepo ClusterRepository
}

// NewDetector creates a sybil detector backed by the given repositories
func NewDetector(graphRepo GraphRepository, clusterRepo ClusterRepository) *Detector {
	return &Detector{graphRepo: graphRepo, clusterRepo: clusterRepo}
}

// Run detects and persists sybil clusters for a scope.
func (d *Detector) Run(ctx context.Context, scope string) (*SybilReport, error) {
	start := time.Now()

	scores, err := d.graphRepo.GetScores(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to load scope scores: %w", err)
	}
	globalScores := scores
	if scope != GlobalScope {
		globalScores, err = d.graphRepo.GetScores(ctx, GlobalScope)
		if err != nil {
			return nil, fmt.Errorf("failed to load global scores: %w", err)
		}
	}

	// Low-trust set: below threshold in this scope or the global scope.
	lowTrust := make(map[string]bool)
	for did, s := range scores {
		if s < lowTrustThreshold {
			lowTrust[did] = true
		}
	}
	for did, s := range globalScores {
		if s < lowTrustThreshold {
			lowTrust[did] = true
		}
	}

	edges, err := d.graphRepo.GetEdges(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to load interaction edges: %w", err)
	}

	components := lowTrustComponents(edges, lowTrust)

	detected := 0
	for _, component := range components {
		if len(component) < minClusterSize {
			continue
		}

		internal, external := edgeSplit(edges, component)
		total := internal + external
		if total == 0 {
			continue
		}
		ratio := float64(internal) / float64(total)
		if ratio <= internalRatioThreshold {
			continue
		}

		hash := ClusterHash(component)

		status, err := d.clusterRepo.GetStatus(ctx, hash)
		if err != nil && err != ErrClusterNotFound {
			return nil, fmt.Errorf("failed to check cluster status: %w", err)
		}
		if err == nil && status == ClusterDismissed {
			// An operator dismissed this exact member set; never re-flag it.
			log.Printf("Skipping dismissed sybil cluster %s (%d members)", hash[:12], len(component))
			continue
		}

		now := time.Now()
		cluster := &SybilCluster{
			Hash:          hash,
			CommunityID:   scope,
			InternalEdges: internal,
			ExternalEdges: external,
			MemberCount:   len(component),
			Status:        ClusterFlagged,
			DetectedAt:    now,
			UpdatedAt:     now,
		}

		members := memberRoles(edges, component)
		if err := d.clusterRepo.Upsert(ctx, cluster, members); err != nil {
			return nil, fmt.Errorf("failed to persist cluster %s: %w", hash[:12], err)
		}
		detected++

		log.Printf("✓ Flagged sybil cluster %s: %d members, %d internal / %d external edges (ratio %.2f)",
			hash[:12], len(component), internal, external, ratio)
	}

	return &SybilReport{
		ClustersDetected:  detected,
		TotalLowTrustDIDs: len(lowTrust),
		DurationMS:        time.Since(start).Milliseconds(),
	}, nil
}

// ClusterHash computes the stable identity of a member set:
// SHA-256 over the sorted, comma-joined member DIDs.
func ClusterHash(members map[string]bool) string {
	sorted := make([]string, 0, len(members))
	for did := range members {
		sorted = append(sorted, did)
	}
	sort.Strings(sorted)

	sum := sha256.Sum256([]byte(strings.Join(sorted, ",")))
	return hex.EncodeToString(sum[:])
}

// lowTrustComponents builds the undirected subgraph restricted to low-trust
// endpoints and returns its connected components via BFS.
func lowTrustComponents(edges []Edge, lowTrust map[string]bool) []map[string]bool {
	adjacency := make(map[string][]string)
	for _, e := range edges {
		if !lowTrust[e.SourceDID] || !lowTrust[e.TargetDID] {
			continue
		}
		adjacency[e.SourceDID] = append(adjacency[e.SourceDID], e.TargetDID)
		adjacency[e.TargetDID] = append(adjacency[e.TargetDID], e.SourceDID)
	}

	visited := make(map[string]bool)
	var components []map[string]bool

	// Deterministic iteration keeps component order stable for tests.
	nodes := make([]string, 0, len(adjacency))
	for did := range adjacency {
		nodes = append(nodes, did)
	}
	sort.Strings(nodes)

	for _, start := range nodes {
		if visited[start] {
			continue
		}
		component := make(map[string]bool)
		queue := []string{start}
		visited[start] = true
		for len(queue) > 0 {
			did := queue[0]
			queue = queue[1:]
			component[did] = true
			for _, next := range adjacency[did] {
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}
		components = append(components, component)
	}

	return components
}

// edgeSplit counts directed edges internal to the component (both endpoints
// inside) vs external (source inside, target outside).
func edgeSplit(edges []Edge, component map[string]bool) (internal, external int) {
	for _, e := range edges {
		if !component[e.SourceDID] {
			continue
		}
		if component[e.TargetDID] {
			internal++
		} else {
			external++
		}
	}
	return internal, external
}

// memberRoles classifies members: internal degree above the median is core,
// the rest peripheral.
func memberRoles(edges []Edge, component map[string]bool) []ClusterMember {
	degree := make(map[string]int, len(component))
	for _, e := range edges {
		if component[e.SourceDID] && component[e.TargetDID] {
			degree[e.SourceDID]++
			degree[e.TargetDID]++
		}
	}

	sorted := make([]string, 0, len(component))
	for did := range component {
		sorted = append(sorted, did)
	}
	sort.Strings(sorted)

	degrees := make([]int, 0, len(sorted))
	for _, did := range sorted {
		degrees = append(degrees, degree[did])
	}
	median := medianInt(degrees)

	members := make([]ClusterMember, 0, len(sorted))
	for _, did := range sorted {
		role := MemberPeripheral
		if degree[did] > median {
			role = MemberCore
		}
		members = append(members, ClusterMember{DID: did, Role: role})
	}
	return members
}

func medianInt(values []int) int {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)
	return sorted[len(sorted)/2]
}
