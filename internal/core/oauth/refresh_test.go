package oauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var refreshSecret = []byte("refresh-signing-secret-for-tests")

func TestRefreshTokenRoundTrip(t *testing.T) {
	raw, err := IssueRefreshToken(refreshSecret, "session-123", "did:plc:alice", time.Hour)
	require.NoError(t, err)

	claims, err := ParseRefreshToken(refreshSecret, raw)
	require.NoError(t, err)
	assert.Equal(t, "session-123", claims.SessionID)
	assert.Equal(t, "did:plc:alice", claims.DID)
}

func TestRefreshTokenWrongSecret(t *testing.T) {
	raw, err := IssueRefreshToken(refreshSecret, "session-123", "did:plc:alice", time.Hour)
	require.NoError(t, err)

	_, err = ParseRefreshToken([]byte("a completely different secret!!!"), raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshTokenExpired(t *testing.T) {
	raw, err := IssueRefreshToken(refreshSecret, "session-123", "did:plc:alice", -time.Minute)
	require.NoError(t, err)

	_, err = ParseRefreshToken(refreshSecret, raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshTokenGarbage(t *testing.T) {
	_, err := ParseRefreshToken(refreshSecret, "not.a.jws")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
