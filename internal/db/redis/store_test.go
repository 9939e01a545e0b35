package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Threadline/internal/core/oauth"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(client, 0, 0, 0), mr
}

func TestSessionRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	session := &oauth.Session{
		ID:        "session-123",
		DID:       "did:plc:alice",
		Handle:    "alice.example.com",
		Scopes:    []string{"read"},
		CreatedAt: time.Now().Truncate(time.Second),
		ExpiresAt: time.Now().Add(time.Hour).Truncate(time.Second),
	}
	require.NoError(t, store.SaveSession(ctx, session))

	got, err := store.GetSession(ctx, "session-123")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, session.DID, got.DID)
	assert.Equal(t, session.Scopes, got.Scopes)
}

func TestSessionMissReturnsNilNil(t *testing.T) {
	store, _ := newTestStore(t)

	got, err := store.GetSession(context.Background(), "never-existed")

	require.NoError(t, err, "a miss is not a transport failure")
	assert.Nil(t, got)
}

func TestSessionExpiresWithTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	session := &oauth.Session{ID: "session-123", DID: "did:plc:alice"}
	require.NoError(t, store.SaveSession(ctx, session))

	mr.FastForward(oauth.DefaultSessionTTL + time.Second)

	got, err := store.GetSession(ctx, "session-123")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteSession(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSession(ctx, &oauth.Session{ID: "session-123"}))
	require.NoError(t, store.DeleteSession(ctx, "session-123"))

	got, err := store.GetSession(ctx, "session-123")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAccessTokenMap(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveAccessToken(ctx, "opaque-token", "session-123"))

	sessionID, err := store.GetAccessToken(ctx, "opaque-token")
	require.NoError(t, err)
	assert.Equal(t, "session-123", sessionID)

	// Tokens age out on the short access-token TTL.
	mr.FastForward(oauth.DefaultAccessTokenTTL + time.Second)
	sessionID, err = store.GetAccessToken(ctx, "opaque-token")
	require.NoError(t, err)
	assert.Empty(t, sessionID)
}

func TestAuthRequestRoundTripAndTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	req := &oauth.AuthRequest{
		State:        "state-abc",
		DID:          "did:plc:alice",
		PKCEVerifier: "verifier",
		ReturnURL:    "/topics",
		CreatedAt:    time.Now().Truncate(time.Second),
	}
	require.NoError(t, store.SaveRequest(ctx, req))

	got, err := store.GetRequest(ctx, "state-abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "verifier", got.PKCEVerifier)

	mr.FastForward(oauth.DefaultStateTTL + time.Second)
	got, err = store.GetRequest(ctx, "state-abc")
	require.NoError(t, err)
	assert.Nil(t, got, "redirect state must age out on the state TTL")
}

func TestInvalidateAccountFilter(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	mr.Set(accountFilterKeyPrefix+"did:plc:banned", `{"filter":"hide"}`)
	mr.Set(labelsKeyPrefix+"did:plc:banned", `["account-filtered"]`)

	require.NoError(t, store.InvalidateAccountFilter(ctx, "did:plc:banned"))
	assert.False(t, mr.Exists(accountFilterKeyPrefix+"did:plc:banned"))
	assert.False(t, mr.Exists(labelsKeyPrefix+"did:plc:banned"), "the derived label list goes with the filter entry")
}

func TestLabelCache(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	uri := "at://did:plc:alice/forum.threadline.topic.post/3k2a4b"
	require.NoError(t, store.CacheLabels(ctx, uri, []string{"spam", "rude"}))

	labels, err := store.GetCachedLabels(ctx, uri)
	require.NoError(t, err)
	assert.Equal(t, []string{"spam", "rude"}, labels)

	mr.FastForward(labelsTTL + time.Second)
	labels, err = store.GetCachedLabels(ctx, uri)
	require.NoError(t, err)
	assert.Nil(t, labels)
}

func TestTransportFailureSurfacesAsError(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	_, err := store.GetSession(context.Background(), "session-123")
	assert.Error(t, err)
}
