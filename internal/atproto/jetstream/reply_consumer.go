package jetstream

import (
	"context"
	"fmt"
	"log"
	"time"

	"Threadline/internal/content"
	"Threadline/internal/core/replies"
)

// ReplyEventConsumer indexes forum.threadline.topic.reply events.
// Create and delete maintain the root topic's reply_count and
// last_activity_at inside the repository transaction.
type ReplyEventConsumer struct {
	replyRepo replies.Repository
}

// NewReplyEventConsumer creates a new consumer for reply events
func NewReplyEventConsumer(replyRepo replies.Repository) *ReplyEventConsumer {
	return &ReplyEventConsumer{replyRepo: replyRepo}
}

// HandleEvent processes one reply record event.
func (c *ReplyEventConsumer) HandleEvent(ctx context.Context, event *RecordEvent, trustStatus string) error {
	switch event.Action {
	case ActionCreate:
		return c.createReply(ctx, event, trustStatus)
	case ActionUpdate:
		return c.updateReply(ctx, event)
	case ActionDelete:
		return c.deleteReply(ctx, event)
	}
	return nil
}

// createReply indexes a new reply and bumps the root topic's aggregates
func (c *ReplyEventConsumer) createReply(ctx context.Context, event *RecordEvent, trustStatus string) error {
	var record ReplyRecord
	if err := decodeRecord(event.Record, &record); err != nil {
		return fmt.Errorf("failed to parse reply record: %w", err)
	}

	reply := &replies.Reply{
		URI:         event.URI(),
		CID:         event.CID,
		RKey:        event.RKey,
		AuthorDID:   event.DID,
		Content:     content.Body(record.Content),
		RootURI:     record.Root.URI,
		RootCID:     record.Root.CID,
		ParentURI:   record.Parent.URI,
		ParentCID:   record.Parent.CID,
		CommunityID: record.Community,
		SelfLabels:  marshalLabels(record.Labels),
		TrustStatus: trustStatus,
		ModStatus:   replies.ModStatusApproved,
		CreatedAt:   parseCreatedAt(record.CreatedAt, event.Live),
		IndexedAt:   time.Now(),
	}

	if err := c.replyRepo.Create(ctx, reply); err != nil {
		return fmt.Errorf("failed to index reply: %w", err)
	}

	log.Printf("✓ Indexed reply: %s (root: %s)", reply.URI, reply.RootURI)
	return nil
}

// updateReply overwrites content/labels/cid
func (c *ReplyEventConsumer) updateReply(ctx context.Context, event *RecordEvent) error {
	var record ReplyRecord
	if err := decodeRecord(event.Record, &record); err != nil {
		return fmt.Errorf("failed to parse reply record: %w", err)
	}

	update := &replies.ReplyUpdate{
		URI:        event.URI(),
		CID:        event.CID,
		Content:    content.Body(record.Content),
		SelfLabels: marshalLabels(record.Labels),
	}

	if err := c.replyRepo.Update(ctx, update); err != nil {
		if err == replies.ErrReplyNotFound {
			log.Printf("Reply not indexed, skipping update: %s", update.URI)
			return nil
		}
		return fmt.Errorf("failed to update reply: %w", err)
	}

	log.Printf("✓ Updated reply: %s", update.URI)
	return nil
}

// deleteReply soft-deletes the reply. Delete events carry no record body,
// so the repository reads the root URI from the stored row before
// decrementing the root topic's reply_count.
func (c *ReplyEventConsumer) deleteReply(ctx context.Context, event *RecordEvent) error {
	uri := event.URI()
	if err := c.replyRepo.SoftDelete(ctx, uri); err != nil {
		if err == replies.ErrReplyNotFound {
			log.Printf("Reply already deleted or not found: %s", uri)
			return nil
		}
		return fmt.Errorf("failed to delete reply: %w", err)
	}

	log.Printf("✓ Soft-deleted reply: %s", uri)
	return nil
}
