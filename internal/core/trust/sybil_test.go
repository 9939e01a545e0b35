package trust

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockClusterRepo struct {
	statuses map[string]string
	upserts  []SybilCluster
	members  map[string][]ClusterMember
}

func newMockClusterRepo() *mockClusterRepo {
	return &mockClusterRepo{
		statuses: make(map[string]string),
		members:  make(map[string][]ClusterMember),
	}
}

func (m *mockClusterRepo) GetStatus(ctx context.Context, hash string) (string, error) {
	if s, ok := m.statuses[hash]; ok {
		return s, nil
	}
	return "", ErrClusterNotFound
}

func (m *mockClusterRepo) Upsert(ctx context.Context, cluster *SybilCluster, members []ClusterMember) error {
	m.statuses[cluster.Hash] = cluster.Status
	m.upserts = append(m.upserts, *cluster)
	m.members[cluster.Hash] = members
	return nil
}

// seedDetectorGraph builds a graph repo with a tight three-account
// low-trust cluster plus a healthy user, scores already persisted.
func seedDetectorGraph() *mockGraphRepo {
	graphRepo := newMockGraphRepo()
	graphRepo.edges = []Edge{
		edge("did:plc:sybilA", "did:plc:sybilB", 4),
		edge("did:plc:sybilB", "did:plc:sybilA", 4),
		edge("did:plc:sybilB", "did:plc:sybilC", 3),
		edge("did:plc:sybilC", "did:plc:sybilB", 3),
		edge("did:plc:sybilA", "did:plc:sybilC", 2),
		// One outbound edge to a healthy user keeps the ratio below 1.0.
		edge("did:plc:sybilA", "did:plc:healthy", 1),
	}
	graphRepo.scores[GlobalScope] = map[string]float64{
		"did:plc:sybilA":  0.0,
		"did:plc:sybilB":  0.01,
		"did:plc:sybilC":  0.02,
		"did:plc:healthy": 0.6,
	}
	return graphRepo
}

func TestDetectorFlagsTightLowTrustCluster(t *testing.T) {
	graphRepo := seedDetectorGraph()
	clusterRepo := newMockClusterRepo()
	detector := NewDetector(graphRepo, clusterRepo)

	report, err := detector.Run(context.Background(), GlobalScope)

	require.NoError(t, err)
	assert.Equal(t, 1, report.ClustersDetected)
	assert.Equal(t, 3, report.TotalLowTrustDIDs)

	require.Len(t, clusterRepo.upserts, 1)
	cluster := clusterRepo.upserts[0]
	assert.Equal(t, ClusterFlagged, cluster.Status)
	assert.Equal(t, 3, cluster.MemberCount)
	assert.Equal(t, 5, cluster.InternalEdges)
	assert.Equal(t, 1, cluster.ExternalEdges)
}

func TestDetectorIgnoresSmallComponents(t *testing.T) {
	graphRepo := newMockGraphRepo()
	graphRepo.edges = []Edge{
		edge("did:plc:sybilA", "did:plc:sybilB", 5),
		edge("did:plc:sybilB", "did:plc:sybilA", 5),
	}
	graphRepo.scores[GlobalScope] = map[string]float64{
		"did:plc:sybilA": 0.0,
		"did:plc:sybilB": 0.0,
	}
	detector := NewDetector(graphRepo, newMockClusterRepo())

	report, err := detector.Run(context.Background(), GlobalScope)

	require.NoError(t, err)
	assert.Zero(t, report.ClustersDetected)
}

func TestDetectorIgnoresOutwardFacingClusters(t *testing.T) {
	graphRepo := newMockGraphRepo()
	// Three low-trust users who mostly interact with the outside world.
	graphRepo.edges = []Edge{
		edge("did:plc:sybilA", "did:plc:sybilB", 1),
		edge("did:plc:sybilB", "did:plc:sybilC", 1),
		edge("did:plc:sybilA", "did:plc:healthy1", 3),
		edge("did:plc:sybilB", "did:plc:healthy2", 3),
		edge("did:plc:sybilC", "did:plc:healthy3", 3),
	}
	graphRepo.scores[GlobalScope] = map[string]float64{
		"did:plc:sybilA": 0.0,
		"did:plc:sybilB": 0.0,
		"did:plc:sybilC": 0.0,
	}
	detector := NewDetector(graphRepo, newMockClusterRepo())

	report, err := detector.Run(context.Background(), GlobalScope)

	require.NoError(t, err)
	assert.Zero(t, report.ClustersDetected)
}

func TestDetectorSkipsDismissedCluster(t *testing.T) {
	graphRepo := seedDetectorGraph()
	clusterRepo := newMockClusterRepo()

	hash := ClusterHash(map[string]bool{
		"did:plc:sybilA": true,
		"did:plc:sybilB": true,
		"did:plc:sybilC": true,
	})
	clusterRepo.statuses[hash] = ClusterDismissed

	detector := NewDetector(graphRepo, clusterRepo)
	report, err := detector.Run(context.Background(), GlobalScope)

	require.NoError(t, err)
	assert.Zero(t, report.ClustersDetected)
	assert.Empty(t, clusterRepo.upserts, "dismissed clusters must never be re-flagged")
}

func TestClusterHashStableAcrossOrdering(t *testing.T) {
	a := ClusterHash(map[string]bool{"did:plc:x": true, "did:plc:y": true, "did:plc:z": true})
	b := ClusterHash(map[string]bool{"did:plc:z": true, "did:plc:x": true, "did:plc:y": true})

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestMemberRolesSplitAtMedianDegree(t *testing.T) {
	component := map[string]bool{
		"did:plc:hub":   true,
		"did:plc:leafA": true,
		"did:plc:leafB": true,
	}
	edges := []Edge{
		edge("did:plc:hub", "did:plc:leafA", 1),
		edge("did:plc:hub", "did:plc:leafB", 1),
		edge("did:plc:leafA", "did:plc:hub", 1),
		edge("did:plc:leafB", "did:plc:hub", 1),
	}

	members := memberRoles(edges, component)

	roles := make(map[string]string)
	for _, m := range members {
		roles[m.DID] = m.Role
	}
	assert.Equal(t, MemberCore, roles["did:plc:hub"])
	assert.Equal(t, MemberPeripheral, roles["did:plc:leafA"])
	assert.Equal(t, MemberPeripheral, roles["did:plc:leafB"])
}
