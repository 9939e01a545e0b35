package moderation

import (
	"errors"
	"time"
)

// ErrFilterNotFound is returned when a target has no account-filter row.
var ErrFilterNotFound = errors.New("account filter not found")

// Moderation action kinds relevant to ban propagation. Other action kinds
// (content holds, label overrides) flow through the same log but don't
// trigger recomputation.
const (
	ActionBan   = "ban"
	ActionUnban = "unban"
)

// Account filter statuses.
const (
	FilterStatusFiltered = "filtered"
	FilterStatusCleared  = "cleared"
)

// ModAction is one entry in the append-only moderation log.
type ModAction struct {
	ID           int64     `json:"id" db:"id"`
	CommunityID  string    `json:"community" db:"community_id"`
	ModeratorDID string    `json:"moderatorDid" db:"moderator_did"`
	TargetDID    string    `json:"targetDid" db:"target_did"`
	Action       string    `json:"action" db:"action"`
	Reason       string    `json:"reason,omitempty" db:"reason"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// AccountFilter is the platform-global filter row produced when a target is
// banned in two or more communities.
type AccountFilter struct {
	TargetDID string    `json:"targetDid" db:"target_did"`
	Status    string    `json:"status" db:"status"`
	BanCount  int       `json:"banCount" db:"ban_count"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
