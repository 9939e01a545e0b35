package status

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"Threadline/internal/atproto/jetstream"

	"github.com/redis/go-redis/v9"
)

// Handler serves the health and ingestion status endpoints.
type Handler struct {
	db        *sql.DB
	redis     *redis.Client
	ingestion *jetstream.IngestionService
}

// NewHandler creates the status handler
func NewHandler(db *sql.DB, redisClient *redis.Client, ingestion *jetstream.IngestionService) *Handler {
	return &Handler{db: db, redis: redisClient, ingestion: ingestion}
}

// HandleHealth reports process liveness plus dependency reachability
// GET /health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbOK := h.db.PingContext(ctx) == nil
	redisOK := h.redis.Ping(ctx).Err() == nil

	status := "ok"
	code := http.StatusOK
	if !dbOK || !redisOK {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   status,
		"database": dbOK,
		"redis":    redisOK,
	}); err != nil {
		log.Printf("Failed to encode health response: %v", err)
	}
}

// HandleIngestionStatus reports the firehose subscription state
// GET /xrpc/forum.threadline.admin.getIngestionStatus (moderator)
func (h *Handler) HandleIngestionStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(h.ingestion.Status()); err != nil {
		log.Printf("Failed to encode ingestion status: %v", err)
	}
}
