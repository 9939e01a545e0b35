package profile

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"Threadline/internal/api/handlers"
	"Threadline/internal/core/users"
)

// LabelSource resolves moderation labels for an account.
type LabelSource interface {
	AccountLabels(ctx context.Context, did string) ([]string, error)
}

// GetProfileHandler serves user profiles with aggregated stats and
// moderation labels.
type GetProfileHandler struct {
	userService users.UserService
	labels      LabelSource
}

// NewGetProfileHandler creates a new profile handler
func NewGetProfileHandler(userService users.UserService, labels LabelSource) *GetProfileHandler {
	return &GetProfileHandler{userService: userService, labels: labels}
}

type profileResponse struct {
	*users.ProfileViewDetailed
	Labels []string `json:"labels"`
}

// HandleGetProfile returns a user's profile by DID or handle
// GET /xrpc/forum.threadline.actor.getProfile?actor=<did-or-handle>
func (h *GetProfileHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	actor := r.URL.Query().Get("actor")
	if actor == "" {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "actor parameter is required")
		return
	}

	var did string
	if strings.HasPrefix(actor, "did:") {
		did = actor
	} else {
		user, err := h.userService.GetUserByHandle(r.Context(), actor)
		if err != nil {
			if err == users.ErrUserNotFound {
				handlers.WriteError(w, http.StatusNotFound, "ProfileNotFound", "Profile not found")
				return
			}
			log.Printf("Failed to resolve handle %s: %v", actor, err)
			handlers.WriteError(w, http.StatusInternalServerError, "InternalError", "Failed to load profile")
			return
		}
		did = user.DID
	}

	profile, err := h.userService.GetProfile(r.Context(), did)
	if err != nil {
		if err == users.ErrUserNotFound {
			handlers.WriteError(w, http.StatusNotFound, "ProfileNotFound", "Profile not found")
			return
		}
		log.Printf("Failed to load profile for %s: %v", did, err)
		handlers.WriteError(w, http.StatusInternalServerError, "InternalError", "Failed to load profile")
		return
	}

	// Label lookup failures degrade to an unlabeled profile.
	labels, err := h.labels.AccountLabels(r.Context(), did)
	if err != nil {
		log.Printf("Failed to load labels for %s: %v", did, err)
		labels = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(profileResponse{ProfileViewDetailed: profile, Labels: labels}); err != nil {
		log.Printf("Failed to encode profile response: %v", err)
	}
}
