// --- File: cmd/registryservice/runregistryservice.go ---
package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/tinywideclouds/go-interest-registry/internal/storage/cache"
	"github.com/tinywideclouds/go-interest-registry/internal/storage/file"
	fsStore "github.com/tinywideclouds/go-interest-registry/internal/storage/firestore"
	"github.com/tinywideclouds/go-interest-registry/internal/storage/memory"
	"github.com/tinywideclouds/go-interest-registry/internal/storage/postgres"
	"github.com/tinywideclouds/go-interest-registry/internal/storage/sqlite"
	"github.com/tinywideclouds/go-interest-registry/pkg/registrar"
	"github.com/tinywideclouds/go-interest-registry/pkg/registry"

	"github.com/tinywideclouds/go-interest-registry/registryservice"
	"github.com/tinywideclouds/go-interest-registry/registryservice/config"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gopkg.in/yaml.v3"
)

//go:embed local.yaml
var configFile []byte

func main() {
	var logLevel slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug", "DEBUG":
		logLevel = slog.LevelDebug
	case "info", "INFO":
		logLevel = slog.LevelInfo
	case "warn", "WARN":
		logLevel = slog.LevelWarn
	case "error", "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})).With("service", "go-interest-registry")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Config Loading ---
	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(configFile, &yamlCfg); err != nil {
		logger.Error("Failed to unmarshal embedded yaml config", "err", err)
		os.Exit(1)
	}
	baseCfg, _ := config.NewConfigFromYaml(&yamlCfg, logger)
	cfg, err := config.UpdateConfigWithEnvOverrides(baseCfg, logger)
	if err != nil {
		logger.Error("Config failed", "err", err)
		os.Exit(1)
	}

	// --- Repository ---
	repo, closeRepo, err := newRepository(ctx, cfg, logger)
	if err != nil {
		logger.Error("Repository initialization failed", "backend", cfg.Storage.Backend, "err", err)
		os.Exit(1)
	}
	defer closeRepo()
	logger.Info("Repository initialized", "type", cfg.Storage.Backend)

	if cfg.Storage.SerializeAccess {
		repo = registry.Serialized(repo)
		logger.Info("Repository access serialized")
	}

	if cfg.Redis.Enabled {
		logger.Info("Initializing Redis Cache layer...", "addr", cfg.Redis.Addr)
		redisClient, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Error("Failed to connect to Redis", "err", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		ttl := time.Duration(cfg.Redis.TTLHours) * time.Hour
		repo = cache.NewCachedRepository(repo, redisClient, ttl, logger)
		logger.Info("Repository upgraded", "type", "redis_cached_"+cfg.Storage.Backend)
	}

	reg := registrar.New(repo, logger)

	// --- Auth ---
	authMiddleware := func(h http.Handler) http.Handler { return h }
	if identityURL := os.Getenv("IDENTITY_SERVICE_URL"); identityURL != "" {
		jwksURL, err := middleware.DiscoverAndValidateJWTConfig(identityURL, middleware.RSA256, logger)
		if err != nil {
			logger.Error("JWT discovery failed", "identity_url", identityURL, "err", err)
			os.Exit(1)
		}
		authMiddleware, err = middleware.NewJWKSAuthMiddleware(jwksURL, logger)
		if err != nil {
			logger.Error("JWKS middleware failed", "err", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("IDENTITY_SERVICE_URL not set; API is unauthenticated")
	}

	// --- Consumer (optional) ---
	var consumer messagepipeline.MessageConsumer
	if cfg.PipelineEnabled() {
		psClient, err := pubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			logger.Error("PubSub client failed", "err", err)
			os.Exit(1)
		}
		defer psClient.Close()

		consumer, err = newIngestionConsumer(ctx, cfg, psClient, logger)
		if err != nil {
			logger.Error("Consumer creation failed", "err", err)
			os.Exit(1)
		}
	}

	// --- Service ---
	service, err := registryservice.New(cfg, consumer, reg, authMiddleware, logger)
	if err != nil {
		logger.Error("Service creation failed", "err", err)
		os.Exit(1)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = service.Shutdown(shutdownCtx)
	}()

	logger.Info("Starting service...", "listen_addr", cfg.ListenAddr)
	if err := service.Start(ctx); err != nil && err != http.ErrServerClosed {
		logger.Error("Service shutdown with error", "err", err)
		os.Exit(1)
	}
}

// newRepository builds the configured backend and a func releasing its resources.
func newRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (registry.Repository, func(), error) {
	noop := func() {}

	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return memory.NewRepository(), noop, nil

	case config.BackendSQLite:
		repo, err := sqlite.New(cfg.Storage.SQLitePath, logger)
		if err != nil {
			return nil, noop, err
		}
		return repo, func() { _ = repo.Close() }, nil

	case config.BackendPostgres:
		repo, err := postgres.Connect(ctx, cfg.Storage.DatabaseURL, logger)
		if err != nil {
			return nil, noop, err
		}
		return repo, repo.Close, nil

	case config.BackendFirestore:
		fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, noop, fmt.Errorf("firestore client failed: %w", err)
		}
		return fsStore.NewFirestoreStore(fsClient, logger), func() { _ = fsClient.Close() }, nil

	default:
		return file.NewRepository(cfg.Storage.FilePath, logger), noop, nil
	}
}

func newIngestionConsumer(ctx context.Context, cfg *config.Config, psClient *pubsub.Client, logger *slog.Logger) (messagepipeline.MessageConsumer, error) {
	sub := convertPubsub(cfg.ProjectID, cfg.PubsubConsumerConfig.SubscriptionID, "subscriptions")
	topicID := convertPubsub(cfg.ProjectID, cfg.TopicID, "topics")

	subConfig := &pubsubpb.Subscription{
		Name:                  sub,
		Topic:                 topicID,
		AckDeadlineSeconds:    10,
		EnableMessageOrdering: false,
	}
	if cfg.SubscriptionDLQTopicID != "" {
		subConfig.DeadLetterPolicy = &pubsubpb.DeadLetterPolicy{
			DeadLetterTopic:     convertPubsub(cfg.ProjectID, cfg.SubscriptionDLQTopicID, "topics"),
			MaxDeliveryAttempts: 5,
		}
	}

	logger.Debug("Ensuring subscription exists", "sub", subConfig.Name, "topic", subConfig.Topic)
	_, err := psClient.SubscriptionAdminClient.CreateSubscription(ctx, subConfig)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			logger.Debug("Subscription already exists, skipping creation", "sub", subConfig.Name)
		} else {
			logger.Error("Failed to create subscription", "sub", subConfig.Name, "err", err)
			return nil, fmt.Errorf("could not create sub: %s", sub)
		}
	}

	return messagepipeline.NewGooglePubsubConsumer(
		messagepipeline.NewGooglePubsubConsumerDefaults(subConfig.Name), psClient, logger,
	)
}

type PS string

func convertPubsub(project, id string, ps PS) string {
	return fmt.Sprintf("projects/%s/%s/%s", project, ps, id)
}
