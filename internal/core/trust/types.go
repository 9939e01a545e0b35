package trust

import (
	"time"
)

// GlobalScope is the community id used for global-scope rows.
// The empty string (not NULL) keeps composite uniqueness working in postgres.
const GlobalScope = ""

// Interaction edge kinds. Kinds collapse by summation into a single weight
// per (source, target) when the engine builds its matrix.
const (
	EdgeKindReply           = "reply"
	EdgeKindReaction        = "reaction"
	EdgeKindCoparticipation = "topic-coparticipation"
)

// Edge is a directed, weighted interaction between two users within a
// community scope.
type Edge struct {
	SourceDID   string    `json:"sourceDid" db:"source_did"`
	TargetDID   string    `json:"targetDid" db:"target_did"`
	CommunityID string    `json:"community" db:"community_id"`
	Kind        string    `json:"kind" db:"kind"`
	Weight      int       `json:"weight" db:"weight"`
	FirstSeenAt time.Time `json:"firstSeenAt" db:"first_seen_at"`
	LastSeenAt  time.Time `json:"lastSeenAt" db:"last_seen_at"`
}

// Score is a persisted trust score for a user in a scope.
type Score struct {
	DID        string    `json:"did" db:"did"`
	Scope      string    `json:"scope" db:"community_id"`
	Score      float64   `json:"score" db:"score"`
	ComputedAt time.Time `json:"computedAt" db:"computed_at"`
}

// ComputeResult is the outcome of one EigenTrust computation.
type ComputeResult struct {
	Scores     map[string]float64
	Iterations int
	Converged  bool
}

// Sybil cluster statuses. A dismissed cluster is never re-flagged by a
// future run that produces the same hash.
const (
	ClusterFlagged    = "flagged"
	ClusterDismissed  = "dismissed"
	ClusterMonitoring = "monitoring"
	ClusterBanned     = "banned"
)

// Cluster member roles, split at the median internal degree.
const (
	MemberCore       = "core"
	MemberPeripheral = "peripheral"
)

// SybilCluster is a flagged connected component of low-trust users.
// Hash is stable for a given member set across runs.
type SybilCluster struct {
	Hash          string    `json:"hash" db:"cluster_hash"`
	CommunityID   string    `json:"community" db:"community_id"`
	InternalEdges int       `json:"internalEdges" db:"internal_edges"`
	ExternalEdges int       `json:"externalEdges" db:"external_edges"`
	MemberCount   int       `json:"memberCount" db:"member_count"`
	Status        string    `json:"status" db:"status"`
	DetectedAt    time.Time `json:"detectedAt" db:"detected_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

// ClusterMember ties a DID to a cluster with its role.
type ClusterMember struct {
	DID  string `json:"did" db:"did"`
	Role string `json:"role" db:"role"`
}

// SybilReport summarizes one detector run.
type SybilReport struct {
	ClustersDetected  int   `json:"clustersDetected"`
	TotalLowTrustDIDs int   `json:"totalLowTrustDids"`
	DurationMS        int64 `json:"durationMs"`
}

// Behavioral flag types emitted by the heuristics detectors.
const (
	FlagBurstVoting       = "burst-voting"
	FlagContentSimilarity = "content-similarity"
	FlagLowDiversity      = "low-diversity"
)

// BehavioralFlag is one heuristic finding over a scan window.
type BehavioralFlag struct {
	Type         string            `json:"type" db:"flag_type"`
	AffectedDIDs []string          `json:"affectedDids" db:"affected_dids"`
	Details      map[string]string `json:"details" db:"details"`
	DetectedAt   time.Time         `json:"detectedAt" db:"detected_at"`
}

// Job states for the periodic reputation run.
const (
	JobIdle      = "idle"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// JobStatus is a snapshot of the reputation job for one scope.
type JobStatus struct {
	State      string     `json:"state"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	LastError  string     `json:"lastError,omitempty"`
}
