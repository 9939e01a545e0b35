package modaction

import (
	"encoding/json"
	"log"
	"net/http"

	"Threadline/internal/api/handlers"
	"Threadline/internal/api/middleware"
	"Threadline/internal/core/moderation"
)

// RecordActionHandler handles moderation log writes.
type RecordActionHandler struct {
	service *moderation.Service
}

// NewRecordActionHandler creates a new moderation action handler
func NewRecordActionHandler(service *moderation.Service) *RecordActionHandler {
	return &RecordActionHandler{service: service}
}

// HandleRecordAction appends a moderation action and triggers ban
// propagation for ban/unban actions
// POST /xrpc/forum.threadline.moderation.recordAction (moderator)
//
// Request body: { "community": "...", "target": "did:...", "action": "ban", "reason": "..." }
func (h *RecordActionHandler) HandleRecordAction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Community string `json:"community"`
		Target    string `json:"target"`
		Action    string `json:"action"`
		Reason    string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "Invalid request body")
		return
	}
	if req.Target == "" {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "target is required")
		return
	}
	if req.Community == "" {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "community is required")
		return
	}
	if req.Action == "" {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "action is required")
		return
	}

	action := &moderation.ModAction{
		CommunityID:  req.Community,
		ModeratorDID: middleware.GetUserDID(r),
		TargetDID:    req.Target,
		Action:       req.Action,
		Reason:       req.Reason,
	}

	recorded, err := h.service.RecordAction(r.Context(), action)
	if err != nil {
		log.Printf("Failed to record mod action: %v", err)
		handlers.WriteError(w, http.StatusInternalServerError, "InternalError", "Failed to record moderation action")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(recorded); err != nil {
		log.Printf("Failed to encode mod action response: %v", err)
	}
}
