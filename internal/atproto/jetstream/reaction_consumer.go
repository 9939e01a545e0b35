package jetstream

import (
	"context"
	"fmt"
	"log"
	"time"

	"Threadline/internal/content"
	"Threadline/internal/core/reactions"
)

// ReactionEventConsumer indexes forum.threadline.interaction.reaction events.
// Reactions have no update path; only CREATE and DELETE are handled.
type ReactionEventConsumer struct {
	reactionRepo reactions.Repository
}

// NewReactionEventConsumer creates a new consumer for reaction events
func NewReactionEventConsumer(reactionRepo reactions.Repository) *ReactionEventConsumer {
	return &ReactionEventConsumer{reactionRepo: reactionRepo}
}

// HandleEvent processes one reaction record event.
func (c *ReactionEventConsumer) HandleEvent(ctx context.Context, event *RecordEvent, trustStatus string) error {
	switch event.Action {
	case ActionCreate:
		return c.createReaction(ctx, event)
	case ActionDelete:
		return c.deleteReaction(ctx, event)
	}
	// Reactions are immutable; updates are silently ignored.
	return nil
}

// createReaction indexes a reaction and bumps the subject's reaction count
func (c *ReactionEventConsumer) createReaction(ctx context.Context, event *RecordEvent) error {
	var record ReactionRecord
	if err := decodeRecord(event.Record, &record); err != nil {
		return fmt.Errorf("failed to parse reaction record: %w", err)
	}

	reaction := &reactions.Reaction{
		URI:         event.URI(),
		CID:         event.CID,
		RKey:        event.RKey,
		AuthorDID:   event.DID,
		SubjectURI:  record.Subject.URI,
		SubjectCID:  record.Subject.CID,
		Type:        content.Plain(record.Type),
		CommunityID: record.Community,
		CreatedAt:   parseCreatedAt(record.CreatedAt, event.Live),
		IndexedAt:   time.Now(),
	}

	if err := c.reactionRepo.Create(ctx, reaction); err != nil {
		return fmt.Errorf("failed to index reaction: %w", err)
	}

	log.Printf("✓ Indexed reaction: %s (%s on %s)", reaction.URI, reaction.Type, reaction.SubjectURI)
	return nil
}

// deleteReaction removes the reaction and decrements the subject's count
func (c *ReactionEventConsumer) deleteReaction(ctx context.Context, event *RecordEvent) error {
	uri := event.URI()
	if err := c.reactionRepo.Delete(ctx, uri); err != nil {
		if err == reactions.ErrReactionNotFound {
			// Idempotent: already deleted or never indexed.
			log.Printf("Reaction already deleted or not found: %s", uri)
			return nil
		}
		return fmt.Errorf("failed to delete reaction: %w", err)
	}

	log.Printf("✓ Deleted reaction: %s", uri)
	return nil
}
