package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuthService is the session and token authority. It owns the KV-backed
// stores and hands out opaque bearer tokens; the OAuth redirect flow against
// the external identity provider feeds CreateSession on callback.
type AuthService struct {
	store          Store
	sessionTTL     time.Duration
	accessTokenTTL time.Duration
}

// NewAuthService creates the token authority with the configured TTLs.
// Zero TTLs fall back to the defaults.
func NewAuthService(store Store, sessionTTL, accessTokenTTL time.Duration) *AuthService {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	if accessTokenTTL <= 0 {
		accessTokenTTL = DefaultAccessTokenTTL
	}
	return &AuthService{
		store:          store,
		sessionTTL:     sessionTTL,
		accessTokenTTL: accessTokenTTL,
	}
}

// BeginAuthFlow stores the redirect state for the authorization-code flow.
// The state key doubles as the CSRF token on the callback.
func (s *AuthService) BeginAuthFlow(ctx context.Context, did, handle, pkceVerifier, returnURL string) (*AuthRequest, error) {
	req := &AuthRequest{
		State:        uuid.NewString(),
		DID:          did,
		Handle:       handle,
		PKCEVerifier: pkceVerifier,
		ReturnURL:    returnURL,
		CreatedAt:    time.Now(),
	}
	if err := s.store.SaveRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to save oauth state: %w", err)
	}
	return req, nil
}

// CompleteAuthFlow consumes the redirect state. The state is deleted
// whether or not it matched, so it can't be replayed.
func (s *AuthService) CompleteAuthFlow(ctx context.Context, state string) (*AuthRequest, error) {
	req, err := s.store.GetRequest(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("failed to load oauth state: %w", err)
	}
	if req == nil {
		return nil, ErrStateNotFound
	}
	if err := s.store.DeleteRequest(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to delete oauth state: %w", err)
	}
	return req, nil
}

// CreateSession establishes a session for an authenticated user and issues
// the first access token.
func (s *AuthService) CreateSession(ctx context.Context, did, handle string, scopes []string) (*Session, string, error) {
	now := time.Now()
	session := &Session{
		ID:        uuid.NewString(),
		DID:       did,
		Handle:    handle,
		Scopes:    scopes,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.store.SaveSession(ctx, session); err != nil {
		return nil, "", fmt.Errorf("failed to save session: %w", err)
	}

	token, err := s.IssueAccessToken(ctx, session.ID)
	if err != nil {
		return nil, "", err
	}
	return session, token, nil
}

// IssueAccessToken mints a new short-lived opaque bearer token for an
// existing session.
func (s *AuthService) IssueAccessToken(ctx context.Context, sessionID string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}
	if err := s.store.SaveAccessToken(ctx, token, sessionID); err != nil {
		return "", fmt.Errorf("failed to save access token: %w", err)
	}
	return token, nil
}

// ValidateAccessToken resolves a bearer token to its session.
// Returns (nil, nil) on miss or expiry; errors indicate KV transport
// failures only. Session TTL is deliberately not refreshed here: reads are
// cheap and a sliding TTL would amplify every request into a write.
func (s *AuthService) ValidateAccessToken(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, nil
	}

	sessionID, err := s.store.GetAccessToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to look up access token: %w", err)
	}
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return session, nil
}

// GetSession loads a session by id. Returns (nil, nil) when the session
// has expired or never existed.
func (s *AuthService) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, nil
	}
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return session, nil
}

// DeleteSession logs a user out. The access-token mapping ages out on its
// own short TTL.
func (s *AuthService) DeleteSession(ctx context.Context, sessionID string) error {
	return s.store.DeleteSession(ctx, sessionID)
}

// SessionTTL exposes the configured session lifetime (for cookie Max-Age).
func (s *AuthService) SessionTTL() time.Duration {
	return s.sessionTTL
}

// generateToken returns a 256-bit random opaque token, base64url encoded.
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
