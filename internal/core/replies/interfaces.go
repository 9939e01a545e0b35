package replies

import "context"

// Repository defines the interface for reply persistence.
// Create and SoftDelete maintain the root topic's reply_count and
// last_activity_at aggregates in the same transaction.
type Repository interface {
	// Create inserts a reply and increments the root topic's reply_count.
	// Duplicate creates for the same URI are a no-op.
	Create(ctx context.Context, reply *Reply) error

	// Update overwrites content/labels/cid and advances indexed_at.
	Update(ctx context.Context, update *ReplyUpdate) error

	// SoftDelete marks the reply deleted and decrements the root topic's
	// reply_count (floored at zero). The root URI is read from the stored
	// row, so firehose deletes (which carry no record body) still decrement.
	SoftDelete(ctx context.Context, uri string) error

	GetByURI(ctx context.Context, uri string) (*Reply, error)
}
