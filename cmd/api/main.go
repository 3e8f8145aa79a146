package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pestops-sync/internal/application"
	"pestops-sync/internal/application/webhook_handlers"
	"pestops-sync/internal/config"
	"pestops-sync/internal/infrastructure/api"
	"pestops-sync/internal/infrastructure/cache"
	"pestops-sync/internal/infrastructure/encryption"
	"pestops-sync/internal/infrastructure/lock"
	"pestops-sync/internal/infrastructure/metrics"
	"pestops-sync/internal/infrastructure/pubsub"
	"pestops-sync/internal/infrastructure/quickbooks"
	"pestops-sync/internal/infrastructure/repository"
	"pestops-sync/internal/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// stores groups the persistence ports selected by storage.driver.
type stores struct {
	integrations ports.IntegrationRepository
	mappings     ports.MappingRepository
	syncLogs     ports.SyncLogRepository
	schedules    ports.ScheduleConfigRepository
	entities     ports.EntityRepository
}

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger := newLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage
	var st stores
	switch cfg.Storage.Driver {
	case "memory":
		logger.Warn().Msg("Using in-memory storage; data is lost on restart")
		mem := repository.NewMemoryStore()
		st = stores{integrations: mem, mappings: mem, syncLogs: mem, schedules: mem, entities: mem}
	default:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
		}
		defer client.Disconnect(context.Background())

		db := client.Database(cfg.Mongo.Database)
		if err := repository.EnsureIndexes(ctx, db); err != nil {
			logger.Fatal().Err(err).Msg("Failed to create MongoDB indexes")
		}
		st = stores{
			integrations: repository.NewMongoIntegrationRepository(db),
			mappings:     repository.NewMongoMappingRepository(db),
			syncLogs:     repository.NewMongoSyncLogRepository(db),
			schedules:    repository.NewMongoScheduleConfigRepository(db),
			entities:     repository.NewMongoEntityRepository(db),
		}
	}

	// Shared key/value store for sync locks and OAuth state
	var kv ports.KeyValueStore
	if cfg.Redis.Addr != "" {
		rs := cache.NewRedisStore(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Redis.Prefix)
		if err := rs.Ping(ctx); err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to connect to Redis")
		}
		defer rs.Close()
		kv = rs
	} else {
		logger.Info().Msg("Redis not configured, sync locks are process-local")
		kv = cache.NewMemoryStore()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewRecorder(registry)

	encryptionService, err := encryption.NewService(cfg.Encryption.Key)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}

	// QuickBooks adapters
	httpClient := &http.Client{Timeout: cfg.QuickBooks.RequestTimeout}
	oauthClient := quickbooks.NewOAuthClient(quickbooks.OAuthConfig{
		ClientID:     cfg.QuickBooks.ClientID,
		ClientSecret: cfg.QuickBooks.ClientSecret,
		RedirectURL:  cfg.QuickBooks.RedirectURL,
	}, httpClient)
	baseURL := cfg.QuickBooksBaseURL()
	tokenManager := quickbooks.NewTokenManager(st.integrations, encryptionService, oauthClient, httpClient, baseURL, recorder, logger)
	providerClient := quickbooks.NewClient(st.integrations, tokenManager, httpClient, quickbooks.ClientConfig{
		BaseURL:        baseURL,
		MinorVersion:   cfg.QuickBooks.MinorVersion,
		PageSize:       cfg.QuickBooks.PageSize,
		RequestTimeout: cfg.QuickBooks.RequestTimeout,
	}, logger)
	if cfg.QuickBooks.WebhookVerifierToken == "" {
		logger.Warn().Msg("quickbooks.webhook_verifier_token is empty; all webhooks will be rejected")
	}
	verifier := quickbooks.NewWebhookVerifier(cfg.QuickBooks.WebhookVerifierToken)

	// Application services
	events := pubsub.NewSyncEventPubSub(logger)
	audit := application.NewAuditLog(st.syncLogs, events, logger)
	locker := lock.NewLocker(kv, cfg.Sync.LockTTL, logger)
	executor := application.NewSyncExecutor(
		providerClient,
		st.integrations,
		st.mappings,
		st.entities,
		audit,
		locker,
		application.SyncExecutorOptions{Incremental: cfg.Sync.Incremental, Metrics: recorder},
		logger,
	)
	processor := application.NewWebhookProcessor(st.integrations, []webhook_handlers.Handler{
		webhook_handlers.NewResyncHandler(executor, logger),
		webhook_handlers.NewDeletedUpstreamHandler(audit, st.mappings, logger),
	}, recorder, logger)
	integrationService := application.NewIntegrationService(st.integrations, oauthClient, encryptionService, kv, audit, logger)

	scheduler := application.NewScheduleController(st.schedules, executor, cfg.BusinessHours(), logger)
	if err := scheduler.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start schedule controller")
	}
	recommender := application.NewRecommendationEngine(audit, scheduler, logger)

	router := api.NewRouter(api.Deps{
		Sync:             executor,
		Integrations:     integrationService,
		Schedules:        scheduler,
		Recommender:      recommender,
		Webhooks:         processor,
		History:          audit,
		Events:           events,
		Verifier:         verifier,
		Metrics:          recorder,
		Gatherer:         registry,
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		DefaultReturnURL: cfg.QuickBooks.DefaultReturnURL,
	}, logger)

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().
			Str("addr", cfg.Server.HTTPAddr).
			Str("storage", cfg.Storage.Driver).
			Str("quickbooks", baseURL).
			Msg("Starting API server")
		logger.Info().Msg("Swagger documentation available at " + cfg.Server.AppURL + "/swagger/index.html")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	scheduler.Stop(shutdownCtx)
}

func newLogger(c config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil || c.Level == "" {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if c.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Logger()
}
