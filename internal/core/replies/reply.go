package replies

import (
	"time"
)

// Trust status values assigned at indexing time.
const (
	TrustStatusTrusted = "trusted"
	TrustStatusNew     = "new"
)

// Moderation status values for indexed content.
const (
	ModStatusApproved = "approved"
	ModStatusHeld     = "held"
	ModStatusRejected = "rejected"
)

// Reply represents a topic reply indexed from the firehose.
// Root points at the topic, parent at the immediate ancestor (the topic
// itself for top-level replies).
type Reply struct {
	URI           string     `json:"uri" db:"uri"`
	CID           string     `json:"cid" db:"cid"`
	RKey          string     `json:"rkey" db:"rkey"`
	AuthorDID     string     `json:"authorDid" db:"author_did"`
	Content       string     `json:"content" db:"content"`
	RootURI       string     `json:"rootUri" db:"root_uri"`
	RootCID       string     `json:"rootCid" db:"root_cid"`
	ParentURI     string     `json:"parentUri" db:"parent_uri"`
	ParentCID     string     `json:"parentCid" db:"parent_cid"`
	CommunityID   string     `json:"community" db:"community_id"`
	SelfLabels    *string    `json:"labels,omitempty" db:"self_labels"`
	ReactionCount int        `json:"reactionCount" db:"reaction_count"`
	TrustStatus   string     `json:"trustStatus" db:"trust_status"`
	ModStatus     string     `json:"modStatus" db:"mod_status"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
	IndexedAt     time.Time  `json:"indexedAt" db:"indexed_at"`
	DeletedAt     *time.Time `json:"deletedAt,omitempty" db:"deleted_at"`
}

// ReplyUpdate carries the mutable projection of a reply record.
type ReplyUpdate struct {
	URI        string
	CID        string
	Content    string
	SelfLabels *string
}
