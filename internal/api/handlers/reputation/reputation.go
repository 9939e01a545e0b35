package reputation

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"Threadline/internal/api/handlers"
	"Threadline/internal/core/trust"
)

// Handler serves trust score reads and reputation job control.
type Handler struct {
	engine *trust.Engine
	job    *trust.Job
}

// NewHandler creates the reputation handler
func NewHandler(engine *trust.Engine, job *trust.Job) *Handler {
	return &Handler{engine: engine, job: job}
}

// HandleGetScore returns a user's trust score in a scope
// GET /xrpc/forum.threadline.trust.getScore?did=...&community=...
// Absent scores report the default, same as the engine's own fallback.
func (h *Handler) HandleGetScore(w http.ResponseWriter, r *http.Request) {
	did := r.URL.Query().Get("did")
	if did == "" {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "did parameter is required")
		return
	}
	scope := r.URL.Query().Get("community")

	score, err := h.engine.GetTrustScore(r.Context(), did, scope)
	if err != nil {
		log.Printf("Failed to get trust score for %s: %v", did, err)
		handlers.WriteError(w, http.StatusInternalServerError, "InternalError", "Failed to load trust score")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"did":       did,
		"community": scope,
		"score":     score,
	}); err != nil {
		log.Printf("Failed to encode score response: %v", err)
	}
}

// HandleJobStatus returns the reputation job state for a scope
// GET /xrpc/forum.threadline.trust.getJobStatus?community=... (moderator)
func (h *Handler) HandleJobStatus(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("community")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(h.job.Status(scope)); err != nil {
		log.Printf("Failed to encode job status response: %v", err)
	}
}

// HandleRunScope triggers an immediate reputation run for a scope
// POST /xrpc/forum.threadline.trust.runScope (operator)
//
// Request body: { "community": "..." } (empty string = global)
func (h *Handler) HandleRunScope(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Community string `json:"community"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "Invalid request body")
		return
	}

	if err := h.job.RunScope(r.Context(), req.Community); err != nil {
		if errors.Is(err, trust.ErrJobRunning) {
			handlers.WriteError(w, http.StatusConflict, "JobRunning", "A reputation run is already in progress for this scope")
			return
		}
		log.Printf("Reputation run failed for scope %q: %v", req.Community, err)
		handlers.WriteError(w, http.StatusInternalServerError, "InternalError", "Reputation run failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(h.job.Status(req.Community)); err != nil {
		log.Printf("Failed to encode run response: %v", err)
	}
}
