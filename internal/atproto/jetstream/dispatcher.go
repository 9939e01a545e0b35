package jetstream

import (
	"context"
	"errors"
	"log"

	"Threadline/internal/atproto/identity"
	"Threadline/internal/core/users"
	"Threadline/internal/metrics"
)

// Dispatcher orchestrates one record event: validation, trust gating for
// creates, then dispatch to the per-collection indexer. Unknown collections
// are silently ignored; validation failures skip the event. The dispatcher
// never returns an error for a bad record - only for infrastructure
// failures the caller may want to surface.
type Dispatcher struct {
	topicConsumer    *TopicEventConsumer
	replyConsumer    *ReplyEventConsumer
	reactionConsumer *ReactionEventConsumer
	userService      users.UserService
	oracle           *identity.AccountAgeOracle
}

// NewDispatcher creates the record dispatcher
func NewDispatcher(
	topicConsumer *TopicEventConsumer,
	replyConsumer *ReplyEventConsumer,
	reactionConsumer *ReactionEventConsumer,
	userService users.UserService,
	oracle *identity.AccountAgeOracle,
) *Dispatcher {
	return &Dispatcher{
		topicConsumer:    topicConsumer,
		replyConsumer:    replyConsumer,
		reactionConsumer: reactionConsumer,
		userService:      userService,
		oracle:           oracle,
	}
}

// HandleRecordEvent processes one record event end to end.
func (d *Dispatcher) HandleRecordEvent(ctx context.Context, event *RecordEvent) error {
	switch event.Collection {
	case CollectionTopic, CollectionReply, CollectionReaction:
	default:
		// Not ours; the cursor still advances.
		metrics.EventsSkipped.WithLabelValues("unknown_collection").Inc()
		return nil
	}

	// Delete events carry no record body; there is nothing to validate.
	if event.Action != ActionDelete {
		if err := ValidateRecord(event.Collection, event.Record); err != nil {
			log.Printf("Rejected %s %s from %s: %v", event.Collection, event.Action, event.DID, err)
			metrics.EventsSkipped.WithLabelValues("validation").Inc()
			return nil
		}
	}

	trustStatus := identity.TrustStatusTrusted
	if event.Action == ActionCreate {
		trustStatus = d.resolveTrustStatus(ctx, event.DID)
	}

	switch event.Collection {
	case CollectionTopic:
		return d.topicConsumer.HandleEvent(ctx, event, trustStatus)
	case CollectionReply:
		return d.replyConsumer.HandleEvent(ctx, event, trustStatus)
	case CollectionReaction:
		return d.reactionConsumer.HandleEvent(ctx, event, trustStatus)
	}
	return nil
}

// resolveTrustStatus classifies the author's account age, creating or
// back-filling the user row along the way. Fails open: any oracle or DB
// error yields "trusted" so a flaky directory never blocks indexing.
func (d *Dispatcher) resolveTrustStatus(ctx context.Context, did string) string {
	user, err := d.userService.GetUserByDID(ctx, did)
	switch {
	case err == nil && user.AccountCreatedAt != nil:
		// Known account age; classify directly.
		return identity.DetermineTrustStatus(user.AccountCreatedAt)

	case err == nil:
		// User row exists without an account age; resolve and back-fill.
		createdAt := d.oracle.ResolveCreationDate(ctx, did)
		if createdAt != nil {
			if err := d.userService.SetAccountCreatedAt(ctx, did, *createdAt); err != nil {
				log.Printf("Warning: Failed to back-fill account age for %s: %v", did, err)
			}
		}
		return identity.DetermineTrustStatus(createdAt)

	case errors.Is(err, users.ErrUserNotFound):
		// First encounter: resolve, then insert the row. The handle is
		// stubbed to the DID; the identity handler corrects it later.
		createdAt := d.oracle.ResolveCreationDate(ctx, did)
		if _, err := d.userService.CreateUser(ctx, users.CreateUserRequest{
			DID:              did,
			Handle:           did,
			AccountCreatedAt: createdAt,
		}); err != nil {
			log.Printf("Warning: Failed to create user row for %s: %v", did, err)
		}
		return identity.DetermineTrustStatus(createdAt)

	default:
		log.Printf("Warning: Trust gating failed open for %s: %v", did, err)
		return identity.TrustStatusTrusted
	}
}
