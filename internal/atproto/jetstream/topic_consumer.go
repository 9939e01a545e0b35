package jetstream

import (
	"context"
	"fmt"
	"log"
	"time"

	"Threadline/internal/content"
	"Threadline/internal/core/topics"
)

// TopicEventConsumer indexes forum.threadline.topic.post events.
// Handles CREATE, UPDATE, and DELETE operations.
type TopicEventConsumer struct {
	topicRepo topics.Repository
}

// NewTopicEventConsumer creates a new consumer for topic events
func NewTopicEventConsumer(topicRepo topics.Repository) *TopicEventConsumer {
	return &TopicEventConsumer{topicRepo: topicRepo}
}

// HandleEvent processes one topic record event. trustStatus is resolved by
// the dispatcher before dispatch and stored on created topics.
func (c *TopicEventConsumer) HandleEvent(ctx context.Context, event *RecordEvent, trustStatus string) error {
	switch event.Action {
	case ActionCreate:
		return c.createTopic(ctx, event, trustStatus)
	case ActionUpdate:
		return c.updateTopic(ctx, event)
	case ActionDelete:
		return c.deleteTopic(ctx, event)
	}
	return nil
}

// createTopic indexes a new topic from the firehose
func (c *TopicEventConsumer) createTopic(ctx context.Context, event *RecordEvent, trustStatus string) error {
	var record TopicRecord
	if err := decodeRecord(event.Record, &record); err != nil {
		return fmt.Errorf("failed to parse topic record: %w", err)
	}

	createdAt := parseCreatedAt(record.CreatedAt, event.Live)

	tags := make([]string, 0, len(record.Tags))
	for _, tag := range record.Tags {
		if t := content.Plain(tag); t != "" {
			tags = append(tags, t)
		}
	}

	topic := &topics.Topic{
		URI:            event.URI(),
		CID:            event.CID,
		RKey:           event.RKey,
		AuthorDID:      event.DID,
		CommunityID:    record.Community,
		Title:          content.Title(record.Title),
		Content:        content.Body(record.Content),
		Category:       content.Plain(record.Category),
		Tags:           tags,
		SelfLabels:     marshalLabels(record.Labels),
		TrustStatus:    trustStatus,
		ModStatus:      topics.ModStatusApproved,
		LastActivityAt: createdAt,
		CreatedAt:      createdAt,
		IndexedAt:      time.Now(),
	}

	if err := c.topicRepo.Create(ctx, topic); err != nil {
		return fmt.Errorf("failed to index topic: %w", err)
	}

	log.Printf("✓ Indexed topic: %s (author: %s, community: %s)", topic.URI, topic.AuthorDID, topic.CommunityID)
	return nil
}

// updateTopic overwrites the mutable projection; created_at and the
// aggregates are untouched, indexed_at advances.
func (c *TopicEventConsumer) updateTopic(ctx context.Context, event *RecordEvent) error {
	var record TopicRecord
	if err := decodeRecord(event.Record, &record); err != nil {
		return fmt.Errorf("failed to parse topic record: %w", err)
	}

	tags := make([]string, 0, len(record.Tags))
	for _, tag := range record.Tags {
		if t := content.Plain(tag); t != "" {
			tags = append(tags, t)
		}
	}

	update := &topics.TopicUpdate{
		URI:        event.URI(),
		CID:        event.CID,
		Title:      content.Title(record.Title),
		Content:    content.Body(record.Content),
		Category:   content.Plain(record.Category),
		Tags:       tags,
		SelfLabels: marshalLabels(record.Labels),
	}

	if err := c.topicRepo.Update(ctx, update); err != nil {
		if err == topics.ErrTopicNotFound {
			// Update for a topic we never indexed; nothing to do.
			log.Printf("Topic not indexed, skipping update: %s", update.URI)
			return nil
		}
		return fmt.Errorf("failed to update topic: %w", err)
	}

	log.Printf("✓ Updated topic: %s", update.URI)
	return nil
}

// deleteTopic soft-deletes: the row and its aggregates remain so replies
// and reactions keep a referent.
func (c *TopicEventConsumer) deleteTopic(ctx context.Context, event *RecordEvent) error {
	uri := event.URI()
	if err := c.topicRepo.SoftDelete(ctx, uri); err != nil {
		if err == topics.ErrTopicNotFound {
			// Idempotent: already deleted or never indexed.
			log.Printf("Topic already deleted or not found: %s", uri)
			return nil
		}
		return fmt.Errorf("failed to delete topic: %w", err)
	}

	log.Printf("✓ Soft-deleted topic: %s", uri)
	return nil
}
