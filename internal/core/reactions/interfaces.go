package reactions

import "context"

// Repository defines the interface for reaction persistence.
// Create and Delete maintain the subject's reaction_count aggregate in the
// same transaction, on either the topic or the reply row depending on the
// subject URI's collection segment.
type Repository interface {
	// Create inserts a reaction and increments the subject's reaction
	// count. Duplicate creates (same URI, or same author+subject+type)
	// are a no-op.
	Create(ctx context.Context, reaction *Reaction) error

	// Delete removes the reaction and decrements the subject's reaction
	// count (floored at zero). Reactions have no update path.
	Delete(ctx context.Context, uri string) error

	GetByURI(ctx context.Context, uri string) (*Reaction, error)
}
