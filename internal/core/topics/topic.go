package topics

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

// Topic represents a forum topic indexed from the firehose.
// The record itself lives in the author's repository; this row is the
// AppView's queryable projection plus aggregates maintained by the
// reply and reaction indexers.
type Topic struct {
	URI           string     `json:"uri" db:"uri"`
	CID           string     `json:"cid" db:"cid"`
	RKey          string     `json:"rkey" db:"rkey"`
	AuthorDID     string     `json:"authorDid" db:"author_did"`
	CommunityID   string     `json:"community" db:"community_id"`
	Title         string     `json:"title" db:"title"`
	Content       string     `json:"content" db:"content"`
	Category      string     `json:"category" db:"category"`
	Tags          []string   `json:"tags,omitempty" db:"tags"`
	SelfLabels    *string    `json:"labels,omitempty" db:"self_labels"`
	ReplyCount    int        `json:"replyCount" db:"reply_count"`
	ReactionCount int        `json:"reactionCount" db:"reaction_count"`
	TrustStatus   string     `json:"trustStatus" db:"trust_status"`
	ModStatus     string     `json:"modStatus" db:"mod_status"`
	LastActivityAt time.Time `json:"lastActivityAt" db:"last_activity_at"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
	IndexedAt     time.Time  `json:"indexedAt" db:"indexed_at"`
	DeletedAt     *time.Time `json:"deletedAt,omitempty" db:"deleted_at"`
}

// TopicUpdate carries the mutable projection of a topic record.
// Applied on firehose update events; created_at and aggregates are untouched.
type TopicUpdate struct {
	URI        string
	CID        string
	Title      string
	Content    string
	Category   string
	Tags       []string
	SelfLabels *string
}
