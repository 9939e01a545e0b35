package topic

import (
	"encoding/json"
	"log"
	"net/http"

	"Threadline/internal/api/handlers"
	"Threadline/internal/core/topics"
)

// GetTopicHandler serves single-topic reads.
type GetTopicHandler struct {
	topicRepo topics.Repository
}

// NewGetTopicHandler creates a new topic read handler
func NewGetTopicHandler(topicRepo topics.Repository) *GetTopicHandler {
	return &GetTopicHandler{topicRepo: topicRepo}
}

// HandleGetTopic returns one topic projection by AT-URI
// GET /xrpc/forum.threadline.topic.getTopic?uri=at://...
func (h *GetTopicHandler) HandleGetTopic(w http.ResponseWriter, r *http.Request) {
	uri := r.URL.Query().Get("uri")
	if uri == "" {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "uri parameter is required")
		return
	}

	topic, err := h.topicRepo.GetByURI(r.Context(), uri)
	if err != nil {
		if err == topics.ErrTopicNotFound {
			handlers.WriteError(w, http.StatusNotFound, "TopicNotFound", "Topic not found")
			return
		}
		log.Printf("Failed to load topic %s: %v", uri, err)
		handlers.WriteError(w, http.StatusInternalServerError, "InternalError", "Failed to load topic")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(topic); err != nil {
		log.Printf("Failed to encode topic response: %v", err)
	}
}
