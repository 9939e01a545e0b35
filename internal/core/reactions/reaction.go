package reactions

import (
	"time"
)

// MaxTypeGraphemes caps the reaction type length, counted in grapheme
// clusters so multi-rune emoji count as one.
const MaxTypeGraphemes = 30

// Reaction represents a reaction record indexed from the firehose.
// (author, subject URI, type) is unique; a second identical reaction from
// the same author is a duplicate create and ignored.
type Reaction struct {
	URI         string     `json:"uri" db:"uri"`
	CID         string     `json:"cid" db:"cid"`
	RKey        string     `json:"rkey" db:"rkey"`
	AuthorDID   string     `json:"authorDid" db:"author_did"`
	SubjectURI  string     `json:"subjectUri" db:"subject_uri"`
	SubjectCID  string     `json:"subjectCid" db:"subject_cid"`
	Type        string     `json:"type" db:"reaction_type"`
	CommunityID string     `json:"community" db:"community_id"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	IndexedAt   time.Time  `json:"indexedAt" db:"indexed_at"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty" db:"deleted_at"`
}
