package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validSecret = "0123456789abcdef0123456789abcdef"

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SESSION_SECRET", validSecret)
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ModeSingle, cfg.CommunityMode)
	assert.False(t, cfg.IsGlobalMode())
	assert.Equal(t, 7*24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, time.Hour, cfg.ReputationInterval)
	assert.Equal(t, 100, cfg.RateLimits.ReadAnon)
	assert.Equal(t, 300, cfg.RateLimits.ReadAuth)
}

func TestLoadRejectsShortSessionSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "too-short")

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_SECRET")
}

func TestLoadRejectsUnknownCommunityMode(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("COMMUNITY_MODE", "federated")

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "COMMUNITY_MODE")
}

func TestLoadParsesOperatorDIDs(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("COMMUNITY_MODE", ModeGlobal)
	t.Setenv("OPERATOR_DIDS", "did:plc:op1, did:plc:op2 ,,")

	cfg, err := Load()

	require.NoError(t, err)
	assert.True(t, cfg.IsGlobalMode())
	assert.Equal(t, []string{"did:plc:op1", "did:plc:op2"}, cfg.OperatorDIDs)
	assert.True(t, cfg.IsOperator("did:plc:op1"))
	assert.False(t, cfg.IsOperator("did:plc:stranger"))
}

func TestLoadParsesTTLSeconds(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("OAUTH_SESSION_TTL", "3600")
	t.Setenv("OAUTH_ACCESS_TOKEN_TTL", "120")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Equal(t, 2*time.Minute, cfg.AccessTokenTTL)
}

func TestLoadRejectsMalformedTTL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("OAUTH_SESSION_TTL", "one hour")

	_, err := Load()

	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "OAUTH_SESSION_TTL"))
}

func TestLoadRejectsNonPositiveTTL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("OAUTH_ACCESS_TOKEN_TTL", "0")

	_, err := Load()

	assert.Error(t, err)
}

func TestRateLimitFallbackOnGarbage(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RATE_LIMIT_WRITE", "lots")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 60, cfg.RateLimits.Write)
}
