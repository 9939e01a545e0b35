package jetstream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCursorRepo struct {
	mu     sync.Mutex
	saved  []int64
	stored int64
	exists bool
	fail   bool
}

func (m *mockCursorRepo) Get(ctx context.Context) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stored, m.exists, nil
}

func (m *mockCursorRepo) Save(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("db unavailable")
	}
	m.saved = append(m.saved, id)
	m.stored = id
	m.exists = true
	return nil
}

func (m *mockCursorRepo) savedIDs() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.saved...)
}

func TestCursorStoreDebouncesToHighestID(t *testing.T) {
	repo := &mockCursorRepo{}
	store := NewCursorStore(repo, time.Hour) // timer never fires in-test

	store.Save(100)
	store.Save(250)
	store.Save(180) // lower than buffered, ignored

	require.NoError(t, store.Flush(context.Background()))

	assert.Equal(t, []int64{250}, repo.savedIDs(), "only the highest buffered id is written")
}

func TestCursorStoreFlushWithoutSaves(t *testing.T) {
	repo := &mockCursorRepo{}
	store := NewCursorStore(repo, time.Hour)

	require.NoError(t, store.Flush(context.Background()))
	assert.Empty(t, repo.savedIDs())
}

func TestCursorStoreTimerPersists(t *testing.T) {
	repo := &mockCursorRepo{}
	store := NewCursorStore(repo, 20*time.Millisecond)

	store.Save(42)

	assert.Eventually(t, func() bool {
		ids := repo.savedIDs()
		return len(ids) == 1 && ids[0] == 42
	}, time.Second, 5*time.Millisecond)
}

func TestCursorStoreRetriesAfterFailedWrite(t *testing.T) {
	repo := &mockCursorRepo{fail: true}
	store := NewCursorStore(repo, 10*time.Millisecond)

	store.Save(7)
	time.Sleep(50 * time.Millisecond) // let the failing timer write happen

	repo.mu.Lock()
	repo.fail = false
	repo.mu.Unlock()

	// The buffered id survived the failure; Flush persists it.
	require.NoError(t, store.Flush(context.Background()))
	assert.Equal(t, []int64{7}, repo.savedIDs())
}

func TestCursorStoreGetPassesThrough(t *testing.T) {
	repo := &mockCursorRepo{stored: 99, exists: true}
	store := NewCursorStore(repo, time.Hour)

	id, found, err := store.Get(context.Background())

	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(99), id)
}
