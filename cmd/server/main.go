package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/reelmates/match-server-go/internal/config"
	"github.com/reelmates/match-server-go/internal/database"
	"github.com/reelmates/match-server-go/internal/handler"
	"github.com/reelmates/match-server-go/internal/jobs"
	"github.com/reelmates/match-server-go/internal/middleware"
	"github.com/reelmates/match-server-go/internal/redis"
	"github.com/reelmates/match-server-go/internal/relay"
	"github.com/reelmates/match-server-go/internal/repository"
	"github.com/reelmates/match-server-go/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	if err := db.Migrate(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	userRepo := repository.NewUserRepository(db.DB)
	sessionRepo := repository.NewSessionRepository(db.DB)
	memberRepo := repository.NewMemberRepository(db.DB)
	swipeRepo := repository.NewSwipeRepository(db.DB)
	eventRepo := repository.NewEventRepository(db.DB)
	statsRepo := repository.NewStatsRepository(db.DB)

	evaluator := service.NewMatchEvaluator(swipeRepo, memberRepo, eventRepo)
	sessionService := service.NewSessionService(
		db, sessionRepo, memberRepo, swipeRepo, eventRepo, userRepo,
		evaluator, cfg.EncryptionKey,
	)
	swipeService := service.NewSwipeService(
		db, sessionRepo, memberRepo, swipeRepo, eventRepo, evaluator,
	)
	credentialService := service.NewCredentialService(
		sessionRepo, memberRepo, userRepo, cfg.EncryptionKey,
	)

	if cfg.EncryptionKey != "" {
		migrated, err := credentialService.MigrateLegacyCredentials(context.Background())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to migrate legacy credentials")
		}
		if migrated > 0 {
			log.Info().Int("count", migrated).Msg("migrated legacy plaintext credentials")
		}
	}

	streamer := relay.NewStreamer(eventRepo, cfg.EventPollInterval())

	authMiddleware := middleware.NewAuthMiddleware(userRepo)
	rateLimitMiddleware := middleware.NewRedisRateLimitMiddleware(redisClient.Client)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)

	sessionHandler := handler.NewSessionHandler(sessionService)
	swipeHandler := handler.NewSwipeHandler(swipeService)
	eventsHandler := handler.NewEventsHandler(streamer, sessionService)
	adminHandler := handler.NewAdminHandler(statsRepo, cfg.AdminPasswordHash)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Use(rateLimitMiddleware.Handler)

		// The events stream outlives the request timeout on purpose.
		r.Get("/events", eventsHandler.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
			r.Mount("/sessions", sessionHandler.Routes())
			r.Mount("/swipes", swipeHandler.Routes())
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		r.Mount("/", adminHandler.Routes())
	})

	cleanupJob := jobs.NewCleanupJob(
		sessionRepo, userRepo, sessionService,
		cfg.SessionMaxAge(), config.CleanupJobInterval,
	)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
