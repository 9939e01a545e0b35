package oauth

import (
	"context"
	"time"
)

// Default TTLs, overridable from config.
const (
	DefaultStateTTL       = 300 * time.Second
	DefaultSessionTTL     = 7 * 24 * time.Hour
	DefaultAccessTokenTTL = 15 * time.Minute
)

// AuthRequest is the temporary OAuth authorization flow state.
// Stored during the redirect to the auth server, deleted after callback.
type AuthRequest struct {
	State        string    `json:"state"`
	DID          string    `json:"did"`
	Handle       string    `json:"handle"`
	PKCEVerifier string    `json:"pkceVerifier"`
	ReturnURL    string    `json:"returnUrl"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Session is a long-lived authenticated user session, keyed by an opaque
// session id and stored in the KV store with the configured session TTL.
type Session struct {
	ID        string    `json:"id"`
	DID       string    `json:"did"`
	Handle    string    `json:"handle"`
	Scopes    []string  `json:"scopes"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Store is the KV-backed persistence behind the token authority.
// Lookups return (nil, nil) on miss/expiry; errors indicate KV transport
// failures only, which the HTTP surface maps to 502.
type Store interface {
	// OAuth flow state (TTL: state TTL, default 300s)
	SaveRequest(ctx context.Context, req *AuthRequest) error
	GetRequest(ctx context.Context, state string) (*AuthRequest, error)
	DeleteRequest(ctx context.Context, state string) error

	// Sessions (TTL: session TTL)
	SaveSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Access-token map: opaque token → session id (TTL: access-token TTL)
	SaveAccessToken(ctx context.Context, token, sessionID string) error
	GetAccessToken(ctx context.Context, token string) (string, error)
	DeleteAccessToken(ctx context.Context, token string) error
}
