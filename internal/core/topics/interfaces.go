package topics

import "context"

// Repository defines the interface for topic persistence
type Repository interface {
	// Create upserts a topic keyed by URI. Duplicate creates are a no-op.
	Create(ctx context.Context, topic *Topic) error

	// Update overwrites the mutable projection and advances indexed_at.
	Update(ctx context.Context, update *TopicUpdate) error

	// SoftDelete marks the topic author-deleted. The row and its
	// aggregates remain for referential integrity.
	SoftDelete(ctx context.Context, uri string) error

	GetByURI(ctx context.Context, uri string) (*Topic, error)
}
