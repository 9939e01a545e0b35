// Package redis implements the KV-backed stores: OAuth state, sessions,
// the access-token map, and the moderation/label caches.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"Threadline/internal/core/oauth"
)

// Key namespaces. Every key this process writes lives under one of these.
const (
	stateKeyPrefix         = "oauth:state:"
	sessionKeyPrefix       = "oauth:session:"
	accessTokenKeyPrefix   = "oauth:token:"
	accountFilterKeyPrefix = "account-filter:"
	labelsKeyPrefix        = "ozone:labels:"

	labelsTTL = time.Hour
)

// Store is the go-redis implementation of oauth.Store plus the moderation
// and label caches. Misses return zero values with a nil error; a non-nil
// error always means the KV transport failed.
type Store struct {
	client         *redis.Client
	stateTTL       time.Duration
	sessionTTL     time.Duration
	accessTokenTTL time.Duration
}

// NewStore creates a redis-backed store with the configured TTLs.
// Zero TTLs fall back to the oauth package defaults.
func NewStore(client *redis.Client, stateTTL, sessionTTL, accessTokenTTL time.Duration) *Store {
	if stateTTL <= 0 {
		stateTTL = oauth.DefaultStateTTL
	}
	if sessionTTL <= 0 {
		sessionTTL = oauth.DefaultSessionTTL
	}
	if accessTokenTTL <= 0 {
		accessTokenTTL = oauth.DefaultAccessTokenTTL
	}
	return &Store{
		client:         client,
		stateTTL:       stateTTL,
		sessionTTL:     sessionTTL,
		accessTokenTTL: accessTokenTTL,
	}
}

// SaveRequest stores OAuth redirect state under oauth:state:<state>.
func (s *Store) SaveRequest(ctx context.Context, req *oauth.AuthRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal oauth state: %w", err)
	}
	if err := s.client.Set(ctx, stateKeyPrefix+req.State, data, s.stateTTL).Err(); err != nil {
		return fmt.Errorf("failed to save oauth state: %w", err)
	}
	return nil
}

// GetRequest loads OAuth redirect state. Returns (nil, nil) on miss.
func (s *Store) GetRequest(ctx context.Context, state string) (*oauth.AuthRequest, error) {
	data, err := s.client.Get(ctx, stateKeyPrefix+state).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get oauth state: %w", err)
	}
	var req oauth.AuthRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal oauth state: %w", err)
	}
	return &req, nil
}

// DeleteRequest removes OAuth redirect state.
func (s *Store) DeleteRequest(ctx context.Context, state string) error {
	if err := s.client.Del(ctx, stateKeyPrefix+state).Err(); err != nil {
		return fmt.Errorf("failed to delete oauth state: %w", err)
	}
	return nil
}

// SaveSession stores a session under oauth:session:<id>.
func (s *Store) SaveSession(ctx context.Context, session *oauth.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+session.ID, data, s.sessionTTL).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// GetSession loads a session. Returns (nil, nil) on miss or expiry.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*oauth.Session, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	var session oauth.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// DeleteSession removes a session.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// SaveAccessToken maps an opaque bearer token to a session id.
func (s *Store) SaveAccessToken(ctx context.Context, token, sessionID string) error {
	if err := s.client.Set(ctx, accessTokenKeyPrefix+token, sessionID, s.accessTokenTTL).Err(); err != nil {
		return fmt.Errorf("failed to save access token: %w", err)
	}
	return nil
}

// GetAccessToken resolves a bearer token to its session id.
// Returns ("", nil) on miss or expiry.
func (s *Store) GetAccessToken(ctx context.Context, token string) (string, error) {
	sessionID, err := s.client.Get(ctx, accessTokenKeyPrefix+token).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get access token: %w", err)
	}
	return sessionID, nil
}

// DeleteAccessToken revokes a bearer token before its TTL.
func (s *Store) DeleteAccessToken(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, accessTokenKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("failed to delete access token: %w", err)
	}
	return nil
}

// InvalidateAccountFilter drops the cached account-filter entry and label
// list for a DID. Implements moderation.Cache.
func (s *Store) InvalidateAccountFilter(ctx context.Context, targetDID string) error {
	if err := s.client.Del(ctx, accountFilterKeyPrefix+targetDID, labelsKeyPrefix+targetDID).Err(); err != nil {
		return fmt.Errorf("failed to invalidate account filter: %w", err)
	}
	return nil
}

// CacheLabels stores a moderation label list for a subject URI (TTL 1h).
func (s *Store) CacheLabels(ctx context.Context, uri string, labels []string) error {
	data, err := json.Marshal(labels)
	if err != nil {
		return fmt.Errorf("failed to marshal labels: %w", err)
	}
	if err := s.client.Set(ctx, labelsKeyPrefix+uri, data, labelsTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache labels: %w", err)
	}
	return nil
}

// GetCachedLabels loads a cached label list. Returns (nil, nil) on miss.
func (s *Store) GetCachedLabels(ctx context.Context, uri string) ([]string, error) {
	data, err := s.client.Get(ctx, labelsKeyPrefix+uri).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached labels: %w", err)
	}
	var labels []string
	if err := json.Unmarshal(data, &labels); err != nil {
		return nil, fmt.Errorf("failed to unmarshal labels: %w", err)
	}
	return labels, nil
}
