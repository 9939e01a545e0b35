package jetstream

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"Threadline/internal/metrics"
)

// IngestionService owns the firehose subscription lifecycle. It restores
// the tracked-repo set, resumes from the persisted cursor, applies events
// sequentially through the dispatcher, and checkpoints after each apply.
// Failed events are logged and skipped; the cursor still advances so one
// poison record cannot wedge the stream.
type IngestionService struct {
	connector        *Connector
	dispatcher       *Dispatcher
	identityConsumer *IdentityEventConsumer
	tracker          *RepoTracker
	cursor           *CursorStore

	connected   atomic.Bool
	lastEventID atomic.Int64

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
}

// IngestionStatus is the operational snapshot served by the status route.
type IngestionStatus struct {
	Connected   bool  `json:"connected"`
	LastEventID int64 `json:"last_event_id"`
}

// NewIngestionService wires the ingestion pipeline together.
func NewIngestionService(
	connector *Connector,
	dispatcher *Dispatcher,
	identityConsumer *IdentityEventConsumer,
	tracker *RepoTracker,
	cursor *CursorStore,
) *IngestionService {
	return &IngestionService{
		connector:        connector,
		dispatcher:       dispatcher,
		identityConsumer: identityConsumer,
		tracker:          tracker,
		cursor:           cursor,
	}
}

// Start restores upstream state and begins consuming in the background.
// Returns an error if the service is already running or restore fails.
func (s *IngestionService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("ingestion already started")
	}

	if err := s.tracker.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore tracked repos: %w", err)
	}

	cursorID, found, err := s.cursor.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to load firehose cursor: %w", err)
	}
	if found {
		s.connector.SetCursor(cursorID)
		s.lastEventID.Store(cursorID)
		log.Printf("Resuming firehose from cursor %d", cursorID)
	} else {
		log.Println("No firehose cursor found, starting from live")
	}

	s.connector.SetCallbacks(Callbacks{
		OnRecord:   s.handleRecord,
		OnIdentity: s.handleIdentity,
		OnError: func(err error) {
			s.connected.Store(false)
			metrics.FirehoseConnected.Set(0)
		},
	})

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.started = true

	go func() {
		if err := s.connector.Start(runCtx); err != nil && err != context.Canceled {
			log.Printf("Firehose connector exited: %v", err)
		}
	}()

	s.connected.Store(true)
	metrics.FirehoseConnected.Set(1)
	log.Println("✓ Ingestion started")
	return nil
}

// handleRecord applies one record event, then checkpoints its id. Events
// run sequentially on the connector's read loop.
func (s *IngestionService) handleRecord(ctx context.Context, event *RecordEvent) {
	s.connected.Store(true)
	metrics.FirehoseConnected.Set(1)

	if err := s.dispatcher.HandleRecordEvent(ctx, event); err != nil {
		metrics.EventsFailed.Inc()
		log.Printf("Failed to apply record event %d (%s %s): %v", event.ID, event.Collection, event.Action, err)
	} else {
		metrics.EventsProcessed.WithLabelValues(event.Collection, event.Action).Inc()
	}

	s.advance(event.ID)
}

// handleIdentity applies one identity event, then checkpoints its id.
func (s *IngestionService) handleIdentity(ctx context.Context, event *IdentityEvent) {
	s.connected.Store(true)
	metrics.FirehoseConnected.Set(1)

	if err := s.identityConsumer.HandleEvent(ctx, event); err != nil {
		metrics.EventsFailed.Inc()
		log.Printf("Failed to apply identity event %d (%s): %v", event.ID, event.DID, err)
	} else {
		metrics.EventsProcessed.WithLabelValues("identity", event.Status).Inc()
	}

	s.advance(event.ID)
}

// advance records an applied event id and buffers the cursor write.
func (s *IngestionService) advance(id int64) {
	if id <= 0 {
		return
	}
	s.lastEventID.Store(id)
	metrics.FirehoseCursor.Set(float64(id))
	s.cursor.Save(id)
}

// Stop tears down the subscription and flushes the cursor. Idempotent.
func (s *IngestionService) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.connector.Destroy()
	s.connected.Store(false)
	metrics.FirehoseConnected.Set(0)

	if err := s.cursor.Flush(ctx); err != nil {
		return fmt.Errorf("failed to flush firehose cursor: %w", err)
	}

	log.Println("✓ Ingestion stopped")
	return nil
}

// Status returns the operational snapshot.
func (s *IngestionService) Status() IngestionStatus {
	return IngestionStatus{
		Connected:   s.connected.Load(),
		LastEventID: s.lastEventID.Load(),
	}
}
