package jetstream

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/ipfs/go-cid"
	"github.com/rivo/uniseg"

	"Threadline/internal/core/reactions"
)

// maxRecordSize caps the serialized record payload. A record of exactly
// this size is accepted; one byte more is rejected.
const maxRecordSize = 64 * 1024

// ValidationError describes why a record was rejected. Validation failures
// skip the event; they never stall the stream.
type ValidationError struct {
	Collection string
	Reason     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s record: %s", e.Collection, e.Reason)
}

func invalid(collection, format string, args ...interface{}) error {
	return &ValidationError{Collection: collection, Reason: fmt.Sprintf(format, args...)}
}

// ValidateRecord checks a record payload against the per-collection schema.
// Returns nil for valid records, a *ValidationError otherwise.
func ValidateRecord(collection string, record map[string]interface{}) error {
	switch collection {
	case CollectionTopic, CollectionReply, CollectionReaction:
	default:
		return invalid(collection, "unsupported collection")
	}

	if record == nil {
		return invalid(collection, "missing record payload")
	}

	serialized, err := json.Marshal(record)
	if err != nil {
		return invalid(collection, "unserializable record: %v", err)
	}
	if len(serialized) > maxRecordSize {
		return invalid(collection, "record exceeds %d bytes (%d)", maxRecordSize, len(serialized))
	}

	switch collection {
	case CollectionTopic:
		return validateTopic(record)
	case CollectionReply:
		return validateReply(record)
	case CollectionReaction:
		return validateReaction(record)
	}
	return nil
}

func validateTopic(record map[string]interface{}) error {
	var topic TopicRecord
	if err := decodeRecord(record, &topic); err != nil {
		return invalid(CollectionTopic, "malformed payload: %v", err)
	}
	if topic.Title == "" {
		return invalid(CollectionTopic, "missing title")
	}
	if topic.Content == "" {
		return invalid(CollectionTopic, "missing content")
	}
	if topic.Category == "" {
		return invalid(CollectionTopic, "missing category")
	}
	if topic.Community == "" {
		return invalid(CollectionTopic, "missing community")
	}
	if err := validateCreatedAt(CollectionTopic, topic.CreatedAt); err != nil {
		return err
	}
	return nil
}

func validateReply(record map[string]interface{}) error {
	var reply ReplyRecord
	if err := decodeRecord(record, &reply); err != nil {
		return invalid(CollectionReply, "malformed payload: %v", err)
	}
	if reply.Content == "" {
		return invalid(CollectionReply, "missing content")
	}
	if err := validateStrongRef(CollectionReply, "root", reply.Root); err != nil {
		return err
	}
	if err := validateStrongRef(CollectionReply, "parent", reply.Parent); err != nil {
		return err
	}
	if reply.Community == "" {
		return invalid(CollectionReply, "missing community")
	}
	if err := validateCreatedAt(CollectionReply, reply.CreatedAt); err != nil {
		return err
	}
	return nil
}

func validateReaction(record map[string]interface{}) error {
	var reaction ReactionRecord
	if err := decodeRecord(record, &reaction); err != nil {
		return invalid(CollectionReaction, "malformed payload: %v", err)
	}
	if err := validateStrongRef(CollectionReaction, "subject", reaction.Subject); err != nil {
		return err
	}
	if reaction.Type == "" {
		return invalid(CollectionReaction, "missing type")
	}
	if n := uniseg.GraphemeClusterCount(reaction.Type); n > reactions.MaxTypeGraphemes {
		return invalid(CollectionReaction, "type exceeds %d graphemes (%d)", reactions.MaxTypeGraphemes, n)
	}
	if reaction.Community == "" {
		return invalid(CollectionReaction, "missing community")
	}
	if err := validateCreatedAt(CollectionReaction, reaction.CreatedAt); err != nil {
		return err
	}
	return nil
}

// validateStrongRef checks a URI + CID reference: the URI must be a valid
// at:// URI and the CID must be well-formed.
func validateStrongRef(collection, field string, ref StrongRef) error {
	if ref.URI == "" || ref.CID == "" {
		return invalid(collection, "%s must have both uri and cid", field)
	}
	if _, err := syntax.ParseATURI(ref.URI); err != nil {
		return invalid(collection, "%s.uri is not a valid at-uri: %v", field, err)
	}
	if _, err := cid.Decode(ref.CID); err != nil {
		return invalid(collection, "%s.cid is not a valid cid: %v", field, err)
	}
	return nil
}

func validateCreatedAt(collection, raw string) error {
	if raw == "" {
		return invalid(collection, "missing createdAt")
	}
	if _, err := time.Parse(time.RFC3339, raw); err != nil {
		return invalid(collection, "createdAt is not RFC3339: %v", err)
	}
	return nil
}
