package jetstream

import (
	"encoding/json"
	"fmt"
	"time"
)

// Collection NSIDs indexed by this AppView. Records in any other collection
// are silently ignored.
const (
	CollectionTopic    = "forum.threadline.topic.post"
	CollectionReply    = "forum.threadline.topic.reply"
	CollectionReaction = "forum.threadline.interaction.reaction"
)

// Record event actions.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Identity event statuses.
const (
	StatusActive      = "active"
	StatusTakendown   = "takendown"
	StatusSuspended   = "suspended"
	StatusDeactivated = "deactivated"
	StatusDeleted     = "deleted"
)

// StreamEvent is the envelope the upstream indexer emits: exactly one of
// Record or Identity is set, discriminated by Kind.
type StreamEvent struct {
	Kind     string         `json:"kind"` // "record" | "identity"
	Record   *RecordEvent   `json:"record,omitempty"`
	Identity *IdentityEvent `json:"identity,omitempty"`
}

// RecordEvent is one record operation from a tracked repository.
// Live is true for freshly observed events and false for backfill replays;
// backfill events use the record's claimed timestamp verbatim.
type RecordEvent struct {
	ID         int64                  `json:"id"`
	Action     string                 `json:"action"`
	DID        string                 `json:"did"`
	Rev        string                 `json:"rev"`
	Collection string                 `json:"collection"`
	RKey       string                 `json:"rkey"`
	Record     map[string]interface{} `json:"record,omitempty"`
	CID        string                 `json:"cid,omitempty"`
	Live       bool                   `json:"live"`
}

// URI builds the at:// URI of the record this event describes.
func (e *RecordEvent) URI() string {
	return fmt.Sprintf("at://%s/%s/%s", e.DID, e.Collection, e.RKey)
}

// IdentityEvent is an identity-lifecycle operation for a repository.
type IdentityEvent struct {
	ID       int64  `json:"id"`
	DID      string `json:"did"`
	Handle   string `json:"handle"`
	IsActive bool   `json:"isActive"`
	Status   string `json:"status"`
}

// StrongRef is a URI + content-hash reference to another record.
type StrongRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// SelfLabels is the author-declared label set on a record.
type SelfLabels struct {
	Values []struct {
		Val string `json:"val"`
	} `json:"values"`
}

// TopicRecord is the payload of a forum.threadline.topic.post record.
type TopicRecord struct {
	Title         string      `json:"title"`
	Content       string      `json:"content"`
	ContentFormat string      `json:"contentFormat,omitempty"`
	Category      string      `json:"category"`
	Tags          []string    `json:"tags,omitempty"`
	Community     string      `json:"community"`
	Labels        *SelfLabels `json:"labels,omitempty"`
	CreatedAt     string      `json:"createdAt"`
}

// ReplyRecord is the payload of a forum.threadline.topic.reply record.
type ReplyRecord struct {
	Content       string      `json:"content"`
	ContentFormat string      `json:"contentFormat,omitempty"`
	Root          StrongRef   `json:"root"`
	Parent        StrongRef   `json:"parent"`
	Community     string      `json:"community"`
	Labels        *SelfLabels `json:"labels,omitempty"`
	CreatedAt     string      `json:"createdAt"`
}

// ReactionRecord is the payload of a forum.threadline.interaction.reaction record.
type ReactionRecord struct {
	Subject   StrongRef `json:"subject"`
	Type      string    `json:"type"`
	Community string    `json:"community"`
	CreatedAt string    `json:"createdAt"`
}

// decodeRecord converts a raw record map into a typed payload.
// Marshal-then-unmarshal keeps type conversion in one place.
func decodeRecord(record map[string]interface{}, out interface{}) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return nil
}

// Clamp bounds for live-event timestamps. A live record claiming a time in
// the future or implausibly far in the past gets the server wall clock
// instead; backfill events keep the stored record's timestamp verbatim.
const (
	maxClockSkewFuture = 5 * time.Minute
	maxClockSkewPast   = 30 * 24 * time.Hour
)

// parseCreatedAt parses a record's createdAt, clamping live events to the
// server wall clock when the claim is implausible.
func parseCreatedAt(raw string, live bool) time.Time {
	now := time.Now()
	createdAt, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return now
	}
	if !live {
		return createdAt
	}
	if createdAt.After(now.Add(maxClockSkewFuture)) || createdAt.Before(now.Add(-maxClockSkewPast)) {
		return now
	}
	return createdAt
}

// marshalLabels serializes a self-label set for storage, or nil when absent.
func marshalLabels(labels *SelfLabels) *string {
	if labels == nil || len(labels.Values) == 0 {
		return nil
	}
	data, err := json.Marshal(labels)
	if err != nil {
		return nil
	}
	s := string(data)
	return &s
}
