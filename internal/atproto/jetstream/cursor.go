package jetstream

import (
	"context"
	"log"
	"sync"
	"time"
)

// DefaultCursorDebounce is the write-coalescing interval for cursor saves.
const DefaultCursorDebounce = 5 * time.Second

// CursorRepository is the durable side of the cursor store: an idempotent
// upsert of the singleton cursor row.
type CursorRepository interface {
	// Get returns the persisted cursor and whether one exists.
	Get(ctx context.Context) (int64, bool, error)

	// Save writes the cursor. Never writes a value lower than the stored one.
	Save(ctx context.Context, id int64) error
}

// CursorStore is the debounced checkpoint of the last applied event id.
// Save buffers the highest id seen and schedules one write per debounce
// interval; Flush cancels the timer and writes immediately. The persisted
// value may lag by up to one interval, so restart gives at-least-once
// delivery and indexers must be idempotent.
type CursorStore struct {
	repo     CursorRepository
	interval time.Duration

	mu      sync.Mutex
	pending int64
	dirty   bool
	timer   *time.Timer
}

// NewCursorStore creates a cursor store with the given debounce interval.
// A non-positive interval falls back to the default.
func NewCursorStore(repo CursorRepository, interval time.Duration) *CursorStore {
	if interval <= 0 {
		interval = DefaultCursorDebounce
	}
	return &CursorStore{repo: repo, interval: interval}
}

// Get returns the persisted cursor position, or (0, false) when the stream
// has never been checkpointed.
func (s *CursorStore) Get(ctx context.Context) (int64, bool, error) {
	return s.repo.Get(ctx)
}

// Save buffers an applied event id. Only the highest id within the debounce
// interval is written; calls with a lower id than the buffered one are
// no-ops. The write itself happens on the timer goroutine.
func (s *CursorStore) Save(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id <= s.pending && s.dirty {
		return
	}
	if id > s.pending {
		s.pending = id
	}
	s.dirty = true

	if s.timer == nil {
		s.timer = time.AfterFunc(s.interval, s.persistFromTimer)
	}
}

// Flush cancels any scheduled write and persists the buffered cursor now.
// Must be awaited on shutdown so the last observed id is durable.
func (s *CursorStore) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	id := s.pending
	s.dirty = false
	s.mu.Unlock()

	return s.repo.Save(ctx, id)
}

// persistFromTimer runs on the debounce timer.
func (s *CursorStore) persistFromTimer() {
	s.mu.Lock()
	s.timer = nil
	if !s.dirty {
		s.mu.Unlock()
		return
	}
	id := s.pending
	s.dirty = false
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.repo.Save(ctx, id); err != nil {
		// Leave the id buffered so the next Save or Flush retries it.
		log.Printf("Failed to persist firehose cursor %d: %v", id, err)
		s.mu.Lock()
		if id > s.pending {
			s.pending = id
		}
		s.dirty = true
		s.mu.Unlock()
	}
}
