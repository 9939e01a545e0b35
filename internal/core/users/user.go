package users

import (
	"time"
)

// User roles recognized by the moderation and auth layers.
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// User represents an atProto user tracked in the Threadline AppView
// This is NOT the user's repository - that lives on their PDS
// This table only tracks metadata for efficient AppView queries
type User struct {
	DID              string     `json:"did" db:"did"`
	Handle           string     `json:"handle" db:"handle"`
	Role             string     `json:"role" db:"role"`
	Banned           bool       `json:"banned" db:"banned"`
	Reputation       float64    `json:"reputation" db:"reputation"`
	FirstSeenAt      time.Time  `json:"firstSeenAt" db:"first_seen_at"`
	LastActiveAt     time.Time  `json:"lastActiveAt" db:"last_active_at"`
	AccountCreatedAt *time.Time `json:"accountCreatedAt,omitempty" db:"account_created_at"`
	DeclaredAge      *int       `json:"declaredAge,omitempty" db:"declared_age"`
	MaturityPref     string     `json:"maturityPref" db:"maturity_pref"`
}

// CreateUserRequest represents the input for creating a new user
type CreateUserRequest struct {
	DID              string     `json:"did"`
	Handle           string     `json:"handle"`
	AccountCreatedAt *time.Time `json:"accountCreatedAt,omitempty"`
}

// ProfileStats contains aggregated user statistics
type ProfileStats struct {
	TopicCount    int     `json:"topicCount"`
	ReplyCount    int     `json:"replyCount"`
	ReactionCount int     `json:"reactionCount"`
	Reputation    float64 `json:"reputation"` // Global trust score
}

// ProfileViewDetailed is the full profile response
type ProfileViewDetailed struct {
	DID         string        `json:"did"`
	Handle      string        `json:"handle,omitempty"`
	Role        string        `json:"role"`
	FirstSeenAt time.Time     `json:"firstSeenAt"`
	Stats       *ProfileStats `json:"stats,omitempty"`
}

// IsModerator reports whether the user holds moderator or admin privileges.
func (u *User) IsModerator() bool {
	return u.Role == RoleModerator || u.Role == RoleAdmin
}
