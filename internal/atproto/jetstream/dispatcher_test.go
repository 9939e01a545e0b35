package jetstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Threadline/internal/atproto/identity"
	"Threadline/internal/core/topics"
	"Threadline/internal/core/users"
)

type mockTopicRepo struct {
	created []topics.Topic
	deleted []string
}

func (m *mockTopicRepo) Create(ctx context.Context, topic *topics.Topic) error {
	m.created = append(m.created, *topic)
	return nil
}

func (m *mockTopicRepo) Update(ctx context.Context, update *topics.TopicUpdate) error {
	return nil
}

func (m *mockTopicRepo) SoftDelete(ctx context.Context, uri string) error {
	m.deleted = append(m.deleted, uri)
	return nil
}

func (m *mockTopicRepo) GetByURI(ctx context.Context, uri string) (*topics.Topic, error) {
	return nil, topics.ErrTopicNotFound
}

type dispatchUserService struct {
	users     map[string]*users.User
	created   []users.CreateUserRequest
	backfills map[string]time.Time
	err       error
}

func newDispatchUserService() *dispatchUserService {
	return &dispatchUserService{
		users:     make(map[string]*users.User),
		backfills: make(map[string]time.Time),
	}
}

func (m *dispatchUserService) CreateUser(ctx context.Context, req users.CreateUserRequest) (*users.User, error) {
	m.created = append(m.created, req)
	u := &users.User{DID: req.DID, Handle: req.Handle, AccountCreatedAt: req.AccountCreatedAt}
	m.users[req.DID] = u
	return u, nil
}

func (m *dispatchUserService) GetUserByDID(ctx context.Context, did string) (*users.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	if u, ok := m.users[did]; ok {
		return u, nil
	}
	return nil, users.ErrUserNotFound
}

func (m *dispatchUserService) GetUserByHandle(ctx context.Context, handle string) (*users.User, error) {
	return nil, users.ErrUserNotFound
}

func (m *dispatchUserService) UpdateHandle(ctx context.Context, did, newHandle string) (*users.User, error) {
	return nil, users.ErrUserNotFound
}

func (m *dispatchUserService) SetAccountCreatedAt(ctx context.Context, did string, createdAt time.Time) error {
	m.backfills[did] = createdAt
	return nil
}

func (m *dispatchUserService) PurgeUser(ctx context.Context, did string) error { return nil }

func (m *dispatchUserService) GetProfile(ctx context.Context, did string) (*users.ProfileViewDetailed, error) {
	return nil, users.ErrUserNotFound
}

// plcOracle serves an audit log whose first entry carries the given
// creation time, for any DID asked.
func plcOracle(t *testing.T, createdAt time.Time) *identity.AccountAgeOracle {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `[{"createdAt":%q}]`, createdAt.Format(time.RFC3339))
	}))
	t.Cleanup(server.Close)
	return identity.NewAccountAgeOracle(server.URL)
}

func dispatcherFixture(t *testing.T, oracle *identity.AccountAgeOracle) (*Dispatcher, *mockTopicRepo, *dispatchUserService) {
	t.Helper()
	topicRepo := &mockTopicRepo{}
	userSvc := newDispatchUserService()
	d := NewDispatcher(
		NewTopicEventConsumer(topicRepo),
		nil, // reply consumer unused in these tests
		nil, // reaction consumer unused in these tests
		userSvc,
		oracle,
	)
	return d, topicRepo, userSvc
}

func topicCreateEvent(did string) *RecordEvent {
	return &RecordEvent{
		ID:         1,
		Action:     ActionCreate,
		DID:        did,
		Collection: CollectionTopic,
		RKey:       "3k2a4b",
		CID:        testCID,
		Record: map[string]interface{}{
			"title":     "Welcome thread",
			"content":   "Introduce yourself here.",
			"category":  "general",
			"community": "at://did:plc:community/community.record/general",
			"createdAt": time.Now().UTC().Format(time.RFC3339),
		},
		Live: true,
	}
}

func TestDispatcherIgnoresUnknownCollections(t *testing.T) {
	d, topicRepo, _ := dispatcherFixture(t, plcOracle(t, time.Now().Add(-48*time.Hour)))

	event := topicCreateEvent("did:plc:alice")
	event.Collection = "app.bsky.feed.like"
	err := d.HandleRecordEvent(context.Background(), event)

	require.NoError(t, err, "foreign collections advance the cursor without erroring")
	assert.Empty(t, topicRepo.created)
}

func TestDispatcherSkipsInvalidRecords(t *testing.T) {
	d, topicRepo, _ := dispatcherFixture(t, plcOracle(t, time.Now().Add(-48*time.Hour)))

	event := topicCreateEvent("did:plc:alice")
	delete(event.Record, "title")
	err := d.HandleRecordEvent(context.Background(), event)

	require.NoError(t, err, "a bad record must not stall the stream")
	assert.Empty(t, topicRepo.created)
}

func TestDispatcherFirstContactCreatesUserAndGatesNewAccounts(t *testing.T) {
	// The directory says the account is two hours old.
	d, topicRepo, userSvc := dispatcherFixture(t, plcOracle(t, time.Now().Add(-2*time.Hour)))

	err := d.HandleRecordEvent(context.Background(), topicCreateEvent("did:plc:newbie"))

	require.NoError(t, err)
	require.Len(t, userSvc.created, 1)
	assert.Equal(t, "did:plc:newbie", userSvc.created[0].DID)
	assert.Equal(t, "did:plc:newbie", userSvc.created[0].Handle, "handle stubbed to DID until the identity event")

	require.Len(t, topicRepo.created, 1)
	assert.Equal(t, topics.TrustStatusNew, topicRepo.created[0].TrustStatus)
}

func TestDispatcherKnownAccountAgeSkipsOracle(t *testing.T) {
	// Oracle would classify "new"; the stored age must win.
	d, topicRepo, userSvc := dispatcherFixture(t, plcOracle(t, time.Now().Add(-time.Hour)))

	old := time.Now().Add(-30 * 24 * time.Hour)
	userSvc.users["did:plc:veteran"] = &users.User{DID: "did:plc:veteran", AccountCreatedAt: &old}

	err := d.HandleRecordEvent(context.Background(), topicCreateEvent("did:plc:veteran"))

	require.NoError(t, err)
	require.Len(t, topicRepo.created, 1)
	assert.Equal(t, topics.TrustStatusTrusted, topicRepo.created[0].TrustStatus)
	assert.Empty(t, userSvc.created)
}

func TestDispatcherBackfillsMissingAccountAge(t *testing.T) {
	created := time.Now().Add(-72 * time.Hour)
	d, _, userSvc := dispatcherFixture(t, plcOracle(t, created))

	userSvc.users["did:plc:alice"] = &users.User{DID: "did:plc:alice"}

	err := d.HandleRecordEvent(context.Background(), topicCreateEvent("did:plc:alice"))

	require.NoError(t, err)
	backfilled, ok := userSvc.backfills["did:plc:alice"]
	require.True(t, ok, "resolved age must be written back to the row")
	assert.WithinDuration(t, created, backfilled, time.Second)
}

func TestDispatcherFailsOpenOnUserLookupError(t *testing.T) {
	d, topicRepo, userSvc := dispatcherFixture(t, plcOracle(t, time.Now().Add(-time.Hour)))
	userSvc.err = errors.New("db down")

	err := d.HandleRecordEvent(context.Background(), topicCreateEvent("did:plc:alice"))

	require.NoError(t, err)
	require.Len(t, topicRepo.created, 1)
	assert.Equal(t, topics.TrustStatusTrusted, topicRepo.created[0].TrustStatus)
}

func TestDispatcherDeleteSkipsValidationAndGating(t *testing.T) {
	d, topicRepo, userSvc := dispatcherFixture(t, plcOracle(t, time.Now()))

	event := &RecordEvent{
		ID:         2,
		Action:     ActionDelete,
		DID:        "did:plc:alice",
		Collection: CollectionTopic,
		RKey:       "3k2a4b",
	}
	err := d.HandleRecordEvent(context.Background(), event)

	require.NoError(t, err)
	assert.Equal(t, []string{event.URI()}, topicRepo.deleted)
	assert.Empty(t, userSvc.created, "deletes never touch trust gating")
}
