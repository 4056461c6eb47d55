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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/allinone-studio/remote-support-server/internal/config"
	"github.com/allinone-studio/remote-support-server/internal/database"
	"github.com/allinone-studio/remote-support-server/internal/handler"
	"github.com/allinone-studio/remote-support-server/internal/jobs"
	"github.com/allinone-studio/remote-support-server/internal/middleware"
	"github.com/allinone-studio/remote-support-server/internal/redis"
	"github.com/allinone-studio/remote-support-server/internal/service"
	"github.com/allinone-studio/remote-support-server/internal/sse"
	"github.com/allinone-studio/remote-support-server/internal/store"
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

	var redisClient *redis.Client
	if cfg.RedisEnabled() {
		redisClient, err = redis.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		log.Info().Msg("redis connected")
	}

	sessionStore, cleanup, err := buildStore(cfg, redisClient)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize session store")
	}
	defer cleanup()
	log.Info().Str("backend", cfg.StoreBackend).Msg("session store ready")

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	sessionService := service.NewSessionService(sessionStore, broker, cfg.SessionTTL(), cfg.ExposeDebugInfo)
	signalingService := service.NewSignalingService(sessionStore, broker)
	transferService := service.NewTransferService(sessionStore)
	chatService := service.NewChatService(sessionStore, broker)

	sessionHandler := handler.NewSessionHandler(sessionService)
	signalingHandler := handler.NewSignalingHandler(signalingService)
	transferHandler := handler.NewTransferHandler(transferService)
	chatHandler := handler.NewChatHandler(chatService)
	eventsHandler := handler.NewEventsHandler(broker, sessionService)

	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/remote", func(r chi.Router) {
		if redisClient != nil {
			rateLimitMiddleware := middleware.NewRedisRateLimitMiddleware(redisClient.Client, cfg.RateLimitPerMin)
			r.Use(rateLimitMiddleware.Handler)
		}
		r.Mount("/session", sessionHandler.Routes())
		r.Mount("/signal", signalingHandler.Routes())
		r.Mount("/transfer", transferHandler.Routes())
		r.Mount("/chat", chatHandler.Routes())
		r.Get("/events", eventsHandler.ServeHTTP)
	})

	cleanupJob := jobs.NewCleanupJob(sessionStore, config.CleanupJobInterval)
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

// buildStore picks the session store backend. The returned cleanup releases
// whatever the backend owns; the shared redis client is closed in main.
func buildStore(cfg *config.Config, redisClient *redis.Client) (store.SessionStore, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreBackendRedis:
		return store.NewRedisStore(redisClient.Client), func() {}, nil

	case config.StoreBackendPostgres:
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}

		ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Info().Msg("database connected")

		return store.NewPostgresStore(db), func() { db.Close() }, nil

	default:
		return store.NewMemoryStore(), func() {}, nil
	}
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
