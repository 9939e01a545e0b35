package profile

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Threadline/internal/core/users"
)

type mockUserService struct {
	profiles map[string]*users.ProfileViewDetailed
	byHandle map[string]*users.User
}

func (m *mockUserService) CreateUser(ctx context.Context, req users.CreateUserRequest) (*users.User, error) {
	return nil, errors.New("not implemented")
}

func (m *mockUserService) GetUserByDID(ctx context.Context, did string) (*users.User, error) {
	return nil, users.ErrUserNotFound
}

func (m *mockUserService) GetUserByHandle(ctx context.Context, handle string) (*users.User, error) {
	if u, ok := m.byHandle[handle]; ok {
		return u, nil
	}
	return nil, users.ErrUserNotFound
}

func (m *mockUserService) UpdateHandle(ctx context.Context, did, newHandle string) (*users.User, error) {
	return nil, errors.New("not implemented")
}

func (m *mockUserService) SetAccountCreatedAt(ctx context.Context, did string, createdAt time.Time) error {
	return errors.New("not implemented")
}

func (m *mockUserService) PurgeUser(ctx context.Context, did string) error {
	return errors.New("not implemented")
}

func (m *mockUserService) GetProfile(ctx context.Context, did string) (*users.ProfileViewDetailed, error) {
	if p, ok := m.profiles[did]; ok {
		return p, nil
	}
	return nil, users.ErrUserNotFound
}

type mockLabelSource struct {
	labels map[string][]string
	err    error
}

func (m *mockLabelSource) AccountLabels(ctx context.Context, did string) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.labels[did], nil
}

func getProfile(t *testing.T, h *GetProfileHandler, actor string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/xrpc/forum.threadline.actor.getProfile?actor="+actor, nil)
	rec := httptest.NewRecorder()
	h.HandleGetProfile(rec, req)
	return rec
}

func TestGetProfileAttachesLabels(t *testing.T) {
	svc := &mockUserService{profiles: map[string]*users.ProfileViewDetailed{
		"did:plc:bad": {DID: "did:plc:bad", Handle: "bad.example.com", Role: users.RoleUser},
	}}
	labels := &mockLabelSource{labels: map[string][]string{
		"did:plc:bad": {"account-filtered"},
	}}
	h := NewGetProfileHandler(svc, labels)

	rec := getProfile(t, h, "did:plc:bad")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		DID    string   `json:"did"`
		Labels []string `json:"labels"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "did:plc:bad", body.DID)
	assert.Equal(t, []string{"account-filtered"}, body.Labels)
}

func TestGetProfileLabelFailureDegrades(t *testing.T) {
	svc := &mockUserService{profiles: map[string]*users.ProfileViewDetailed{
		"did:plc:alice": {DID: "did:plc:alice", Role: users.RoleUser},
	}}
	h := NewGetProfileHandler(svc, &mockLabelSource{err: errors.New("redis down")})

	rec := getProfile(t, h, "did:plc:alice")

	require.Equal(t, http.StatusOK, rec.Code, "a label outage must not hide the profile")
	var body struct {
		Labels []string `json:"labels"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Labels)
}

func TestGetProfileResolvesHandle(t *testing.T) {
	svc := &mockUserService{
		profiles: map[string]*users.ProfileViewDetailed{
			"did:plc:alice": {DID: "did:plc:alice", Handle: "alice.example.com", Role: users.RoleUser},
		},
		byHandle: map[string]*users.User{
			"alice.example.com": {DID: "did:plc:alice", Handle: "alice.example.com"},
		},
	}
	h := NewGetProfileHandler(svc, &mockLabelSource{})

	rec := getProfile(t, h, "alice.example.com")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		DID string `json:"did"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "did:plc:alice", body.DID)
}

func TestGetProfileUnknownActor(t *testing.T) {
	h := NewGetProfileHandler(&mockUserService{}, &mockLabelSource{})

	rec := getProfile(t, h, "did:plc:nobody")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
