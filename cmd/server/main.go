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

	"github.com/wavelink/bridge-server-go/internal/channel"
	"github.com/wavelink/bridge-server-go/internal/config"
	"github.com/wavelink/bridge-server-go/internal/database"
	"github.com/wavelink/bridge-server-go/internal/delivery"
	"github.com/wavelink/bridge-server-go/internal/handler"
	"github.com/wavelink/bridge-server-go/internal/jobs"
	"github.com/wavelink/bridge-server-go/internal/message"
	"github.com/wavelink/bridge-server-go/internal/middleware"
	"github.com/wavelink/bridge-server-go/internal/persist"
	"github.com/wavelink/bridge-server-go/internal/redis"
	"github.com/wavelink/bridge-server-go/internal/registry"
	"github.com/wavelink/bridge-server-go/internal/repository"
	"github.com/wavelink/bridge-server-go/internal/responder"
	"github.com/wavelink/bridge-server-go/internal/session"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	setLogLevel(cfg.LogLevel)

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

	sessionRepo := repository.NewSessionRecordRepository(db)
	persister := persist.NewService(sessionRepo)

	reg := registry.New()
	factory := channel.NewGatewayFactory(cfg.ChannelGatewayURL)
	pipeline := delivery.NewPipeline(delivery.FromAppConfig(cfg))

	manager := session.NewManager(reg, factory, pipeline, persister)

	rsp := responder.NewHTTPResponder(cfg.ResponderURL, cfg.ResponderTimeout())
	msgManager := message.NewManager(reg, rsp, pipeline, cfg.InboundQueueCap, cfg.ResponderTimeout())
	manager.SetInboundHandler(msgManager.HandleInbound)

	restoreSessions(manager, persister, cfg.AutoReconnect)

	bridgeHandler := handler.NewBridgeHandler(manager, reg, persister)
	eventsHandler := handler.NewChannelEventsHandler(factory)
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
			"sessions":  reg.Len(),
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/v1/bridge/sessions", func(r chi.Router) {
		if cfg.RedisURL != "" {
			redisClient, err := redis.NewClient(cfg.RedisURL)
			if err != nil {
				log.Fatal().Err(err).Msg("failed to connect to redis")
			}
			log.Info().Msg("redis connected")
			r.Use(middleware.NewRedisRateLimitMiddleware(redisClient.Client, cfg.RateLimitPerMin).Handler)
		}
		r.Mount("/", bridgeHandler.Routes())
	})

	r.Post("/internal/channel/events", eventsHandler.Webhook)

	snapshotJob := jobs.NewSnapshotJob(reg, persister, cfg.SnapshotInterval())
	snapshotJob.Start()

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

	snapshotJob.Stop()
	msgManager.Close()

	// Final sweep so a restart restores fresh metadata.
	if saved, err := persister.SaveAll(shutdownCtx, reg.ListAll()); err != nil {
		log.Error().Err(err).Msg("final snapshot failed")
	} else {
		log.Info().Int("saved", saved).Msg("final snapshot written")
	}

	log.Info().Msg("server stopped")
}

// restoreSessions seeds the registry from the store. Restored records are
// metadata only; reconnection happens only when AUTO_RECONNECT is set.
func restoreSessions(manager *session.Manager, persister *persist.Service, autoReconnect bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	records, err := persister.RestoreAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to restore sessions from store")
		return
	}

	manager.Restore(records)

	if autoReconnect {
		started := manager.ReconnectAll()
		log.Info().Int("reconnecting", started).Msg("auto-reconnect triggered")
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
