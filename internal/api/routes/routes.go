package routes

import (
	"database/sql"
	"net/http"
	"time"

	"Threadline/internal/api/handlers/auth"
	"Threadline/internal/api/handlers/modaction"
	"Threadline/internal/api/handlers/profile"
	"Threadline/internal/api/handlers/reputation"
	"Threadline/internal/api/handlers/status"
	"Threadline/internal/api/handlers/topic"
	"Threadline/internal/api/middleware"
	"Threadline/internal/atproto/jetstream"
	"Threadline/internal/config"
	"Threadline/internal/core/moderation"
	"Threadline/internal/core/oauth"
	"Threadline/internal/core/topics"
	"Threadline/internal/core/trust"
	"Threadline/internal/core/users"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// Deps carries everything the router needs.
type Deps struct {
	Config      *config.Config
	DB          *sql.DB
	Redis       *redis.Client
	AuthService *oauth.AuthService
	UserService users.UserService
	TopicRepo   topics.Repository
	Moderation  *moderation.Service
	TrustEngine *trust.Engine
	TrustJob    *trust.Job
	Ingestion   *jetstream.IngestionService
}

// New builds the full HTTP router: middleware stack, rate-limit buckets,
// public reads, session lifecycle, and the moderator/operator surface.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	authMw := middleware.NewAuthMiddleware(d.AuthService, d.UserService, d.Config)

	authLimiter := middleware.NewRateLimiter(d.Config.RateLimits.Auth, time.Minute)
	writeLimiter := middleware.NewRateLimiter(d.Config.RateLimits.Write, time.Minute)
	readLimiter := middleware.NewReadLimiter(d.Config.RateLimits.ReadAnon, d.Config.RateLimits.ReadAuth)

	statusHandler := status.NewHandler(d.DB, d.Redis, d.Ingestion)
	sessionHandler := auth.NewSessionHandler(d.AuthService, d.Config)
	profileHandler := profile.NewGetProfileHandler(d.UserService, d.Moderation)
	topicHandler := topic.NewGetTopicHandler(d.TopicRepo)
	modHandler := modaction.NewRecordActionHandler(d.Moderation)
	repHandler := reputation.NewHandler(d.TrustEngine, d.TrustJob)

	// Operational surface: no auth, no rate limit
	r.Get("/health", statusHandler.HandleHealth)
	r.Handle("/metrics", promhttp.Handler())

	// Session lifecycle
	r.Group(func(r chi.Router) {
		r.Use(authLimiter.Middleware)
		r.Post("/auth/refresh", sessionHandler.HandleRefresh)
		r.Post("/auth/logout", sessionHandler.HandleLogout)
		r.Post("/auth/exchange", sessionHandler.HandleExchangeSealed)
		r.With(authMw.RequireAuth).Get("/auth/session", sessionHandler.HandleGetSession)
		r.With(authMw.RequireAuth).Post("/auth/seal", sessionHandler.HandleSealToken)
	})

	// Public reads
	r.Group(func(r chi.Router) {
		r.Use(authMw.OptionalAuth)
		r.Use(readLimiter.Middleware)
		r.Get("/xrpc/forum.threadline.actor.getProfile", profileHandler.HandleGetProfile)
		r.Get("/xrpc/forum.threadline.topic.getTopic", topicHandler.HandleGetTopic)
		r.Get("/xrpc/forum.threadline.trust.getScore", repHandler.HandleGetScore)
	})

	// Moderator surface
	r.Group(func(r chi.Router) {
		r.Use(writeLimiter.Middleware)
		r.With(authMw.RequireModerator).Post("/xrpc/forum.threadline.moderation.recordAction", modHandler.HandleRecordAction)
		r.With(authMw.RequireModerator).Get("/xrpc/forum.threadline.admin.getIngestionStatus", statusHandler.HandleIngestionStatus)
		r.With(authMw.RequireModerator).Get("/xrpc/forum.threadline.trust.getJobStatus", repHandler.HandleJobStatus)
	})

	// Operator surface: 404 outside global community mode
	r.With(writeLimiter.Middleware, authMw.RequireOperator).
		Post("/xrpc/forum.threadline.trust.runScope", repHandler.HandleRunScope)

	return r
}
