package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Threadline/internal/config"
	"Threadline/internal/core/oauth"
	"Threadline/internal/core/users"
)

// mockOAuthStore backs the token authority in tests. Set failNext to make
// the next lookup return a transport error.
type mockOAuthStore struct {
	sessions map[string]*oauth.Session
	tokens   map[string]string
	failNext bool
}

func newMockOAuthStore() *mockOAuthStore {
	return &mockOAuthStore{
		sessions: make(map[string]*oauth.Session),
		tokens:   make(map[string]string),
	}
}

func (m *mockOAuthStore) fail() error {
	if m.failNext {
		m.failNext = false
		return errors.New("kv unavailable")
	}
	return nil
}

func (m *mockOAuthStore) SaveRequest(ctx context.Context, req *oauth.AuthRequest) error { return nil }
func (m *mockOAuthStore) GetRequest(ctx context.Context, state string) (*oauth.AuthRequest, error) {
	return nil, nil
}
func (m *mockOAuthStore) DeleteRequest(ctx context.Context, state string) error { return nil }

func (m *mockOAuthStore) SaveSession(ctx context.Context, session *oauth.Session) error {
	m.sessions[session.ID] = session
	return nil
}

func (m *mockOAuthStore) GetSession(ctx context.Context, sessionID string) (*oauth.Session, error) {
	if err := m.fail(); err != nil {
		return nil, err
	}
	return m.sessions[sessionID], nil
}

func (m *mockOAuthStore) DeleteSession(ctx context.Context, sessionID string) error {
	delete(m.sessions, sessionID)
	return nil
}

func (m *mockOAuthStore) SaveAccessToken(ctx context.Context, token, sessionID string) error {
	m.tokens[token] = sessionID
	return nil
}

func (m *mockOAuthStore) GetAccessToken(ctx context.Context, token string) (string, error) {
	if err := m.fail(); err != nil {
		return "", err
	}
	return m.tokens[token], nil
}

func (m *mockOAuthStore) DeleteAccessToken(ctx context.Context, token string) error {
	delete(m.tokens, token)
	return nil
}

type mockUserService struct {
	users map[string]*users.User
}

func (m *mockUserService) CreateUser(ctx context.Context, req users.CreateUserRequest) (*users.User, error) {
	return nil, errors.New("not implemented")
}

func (m *mockUserService) GetUserByDID(ctx context.Context, did string) (*users.User, error) {
	if u, ok := m.users[did]; ok {
		return u, nil
	}
	return nil, users.ErrUserNotFound
}

func (m *mockUserService) GetUserByHandle(ctx context.Context, handle string) (*users.User, error) {
	return nil, users.ErrUserNotFound
}

func (m *mockUserService) UpdateHandle(ctx context.Context, did, newHandle string) (*users.User, error) {
	return nil, users.ErrUserNotFound
}

func (m *mockUserService) SetAccountCreatedAt(ctx context.Context, did string, createdAt time.Time) error {
	return nil
}

func (m *mockUserService) PurgeUser(ctx context.Context, did string) error { return nil }

func (m *mockUserService) GetProfile(ctx context.Context, did string) (*users.ProfileViewDetailed, error) {
	return nil, users.ErrUserNotFound
}

type authFixture struct {
	middleware *AuthMiddleware
	store      *mockOAuthStore
	userSvc    *mockUserService
	token      string
	did        string
}

func newAuthFixture(t *testing.T, cfg *config.Config) *authFixture {
	t.Helper()
	store := newMockOAuthStore()
	authService := oauth.NewAuthService(store, 0, 0)

	did := "did:plc:alice"
	_, token, err := authService.CreateSession(context.Background(), did, "alice.example.com", nil)
	require.NoError(t, err)

	userSvc := &mockUserService{users: map[string]*users.User{
		did: {DID: did, Handle: "alice.example.com", Role: users.RoleUser},
	}}

	if cfg == nil {
		cfg = &config.Config{CommunityMode: config.ModeSingle}
	}
	return &authFixture{
		middleware: NewAuthMiddleware(authService, userSvc, cfg),
		store:      store,
		userSvc:    userSvc,
		token:      token,
		did:        did,
	}
}

// echoDID writes the authenticated DID so tests can assert context wiring.
func echoDID() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(GetUserDID(r)))
	})
}

func doRequest(handler http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/xrpc/test", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRequireAuthValidToken(t *testing.T) {
	f := newAuthFixture(t, nil)

	rec := doRequest(f.middleware.RequireAuth(echoDID()), f.token)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, f.did, rec.Body.String())
}

func TestRequireAuthMissingToken(t *testing.T) {
	f := newAuthFixture(t, nil)

	rec := doRequest(f.middleware.RequireAuth(echoDID()), "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "AuthenticationRequired")
}

func TestRequireAuthUnknownToken(t *testing.T) {
	f := newAuthFixture(t, nil)

	rec := doRequest(f.middleware.RequireAuth(echoDID()), "no-such-token")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid or expired token")
}

func TestRequireAuthStoreFailureIs502(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.store.failNext = true

	rec := doRequest(f.middleware.RequireAuth(echoDID()), f.token)

	assert.Equal(t, http.StatusBadGateway, rec.Code, "a kv outage is not the client's fault")
	assert.Contains(t, rec.Body.String(), "ServiceUnavailable")
}

func TestOptionalAuthDegradesToAnonymous(t *testing.T) {
	f := newAuthFixture(t, nil)

	rec := doRequest(f.middleware.OptionalAuth(echoDID()), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	// Store failure: still 200, still anonymous.
	f.store.failNext = true
	rec = doRequest(f.middleware.OptionalAuth(echoDID()), f.token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = doRequest(f.middleware.OptionalAuth(echoDID()), f.token)
	assert.Equal(t, f.did, rec.Body.String())
}

func TestRequireModeratorRoles(t *testing.T) {
	f := newAuthFixture(t, nil)

	rec := doRequest(f.middleware.RequireModerator(echoDID()), f.token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Moderator access required")

	f.userSvc.users[f.did].Role = users.RoleModerator
	rec = doRequest(f.middleware.RequireModerator(echoDID()), f.token)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Admin implies moderator.
	f.userSvc.users[f.did].Role = users.RoleAdmin
	rec = doRequest(f.middleware.RequireModerator(echoDID()), f.token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAdminRejectsModerator(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.userSvc.users[f.did].Role = users.RoleModerator

	rec := doRequest(f.middleware.RequireAdmin(echoDID()), f.token)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Admin access required")
}

func TestRequireOperatorHiddenOutsideGlobalMode(t *testing.T) {
	f := newAuthFixture(t, &config.Config{CommunityMode: config.ModeSingle})

	rec := doRequest(f.middleware.RequireOperator(echoDID()), f.token)

	assert.Equal(t, http.StatusNotFound, rec.Code, "operator routes must not exist outside global mode")
}

func TestRequireOperatorInGlobalMode(t *testing.T) {
	f := newAuthFixture(t, &config.Config{
		CommunityMode: config.ModeGlobal,
		OperatorDIDs:  []string{"did:plc:operator"},
	})

	// Authenticated but not an operator.
	rec := doRequest(f.middleware.RequireOperator(echoDID()), f.token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Operator access required")
}
