package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	authhandlers "Threadline/internal/api/handlers/auth"
	"Threadline/internal/api/routes"
	"Threadline/internal/atproto/identity"
	"Threadline/internal/atproto/jetstream"
	"Threadline/internal/config"
	"Threadline/internal/core/moderation"
	"Threadline/internal/core/oauth"
	"Threadline/internal/core/trust"
	"Threadline/internal/core/users"
	postgresRepo "Threadline/internal/db/postgres"
	redisdb "Threadline/internal/db/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database: ", err)
	}
	log.Println("Connected to AppView database")

	// Run migrations
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatal("Failed to set goose dialect: ", err)
	}
	if err := goose.Up(db, "internal/db/migrations"); err != nil {
		log.Fatal("Failed to run migrations: ", err)
	}
	log.Println("Migrations completed successfully")

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal("Invalid REDIS_URL: ", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Failed to ping redis: ", err)
	}
	log.Println("Connected to redis")

	if err := authhandlers.InitCookieStore(cfg.SessionSecret, int(cfg.SessionTTL.Seconds())); err != nil {
		log.Fatal("Failed to initialize cookie store: ", err)
	}

	// Repositories
	userRepo := postgresRepo.NewUserRepository(db)
	topicRepo := postgresRepo.NewTopicRepository(db)
	replyRepo := postgresRepo.NewReplyRepository(db)
	reactionRepo := postgresRepo.NewReactionRepository(db)
	cursorRepo := postgresRepo.NewCursorRepository(db)
	trackedRepo := postgresRepo.NewTrackedRepoRepository(db)
	graphRepo := postgresRepo.NewGraphRepository(db)
	clusterRepo := postgresRepo.NewClusterRepository(db)
	flagRepo := postgresRepo.NewFlagRepository(db)
	activityRepo := postgresRepo.NewActivityRepository(db)
	modRepo := postgresRepo.NewModerationRepository(db)

	kvStore := redisdb.NewStore(redisClient, oauth.DefaultStateTTL, cfg.SessionTTL, cfg.AccessTokenTTL)

	// Services
	userService := users.NewUserService(userRepo)
	authService := oauth.NewAuthService(kvStore, cfg.SessionTTL, cfg.AccessTokenTTL)
	modService := moderation.NewService(modRepo, kvStore)

	// Reputation pipeline
	engine := trust.NewEngine(graphRepo, userRepo)
	detector := trust.NewDetector(graphRepo, clusterRepo)
	heuristics := trust.NewHeuristics(activityRepo, flagRepo)
	scopes := func(ctx context.Context) ([]string, error) {
		rows, err := db.QueryContext(ctx,
			`SELECT DISTINCT community_id FROM interaction_edges WHERE community_id != ''`)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		var ids []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		return ids, rows.Err()
	}
	trustJob := trust.NewJob(engine, detector, heuristics, scopes, cfg.ReputationInterval)

	// Ingestion pipeline
	oracle := identity.NewAccountAgeOracle(cfg.PLCDirectoryURL)
	connector := jetstream.NewConnector(cfg.JetstreamURL, cfg.JetstreamAdminPass)
	tracker := jetstream.NewRepoTracker(trackedRepo, connector)
	dispatcher := jetstream.NewDispatcher(
		jetstream.NewTopicEventConsumer(topicRepo),
		jetstream.NewReplyEventConsumer(replyRepo),
		jetstream.NewReactionEventConsumer(reactionRepo),
		userService,
		oracle,
	)
	identityConsumer := jetstream.NewIdentityEventConsumer(userService, tracker)
	cursorStore := jetstream.NewCursorStore(cursorRepo, jetstream.DefaultCursorDebounce)
	ingestion := jetstream.NewIngestionService(connector, dispatcher, identityConsumer, tracker, cursorStore)

	router := routes.New(routes.Deps{
		Config:      cfg,
		DB:          db,
		Redis:       redisClient,
		AuthService: authService,
		UserService: userService,
		TopicRepo:   topicRepo,
		Moderation:  modService,
		TrustEngine: engine,
		TrustJob:    trustJob,
		Ingestion:   ingestion,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("Threadline AppView starting on port %s (mode: %s)", cfg.Port, cfg.CommunityMode)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := ingestion.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return ingestion.Stop(shutdownCtx)
	})

	g.Go(func() error {
		trustJob.Start(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Fatal("Server exited with error: ", err)
	}
	log.Println("Shutdown complete")
}
