package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/cerberus-auth/cerberus/adapters/cache"
	"github.com/cerberus-auth/cerberus/adapters/events"
	"github.com/cerberus-auth/cerberus/adapters/hasher"
	"github.com/cerberus-auth/cerberus/adapters/store"
	"github.com/cerberus-auth/cerberus/adapters/tokenizer"
	"github.com/cerberus-auth/cerberus/internal/config"
	"github.com/cerberus-auth/cerberus/service"
	transport "github.com/cerberus-auth/cerberus/transport/http"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.JWT.Secret == "" {
		logger.Error("jwt secret is not configured")
		os.Exit(1)
	}

	ctx := context.Background()

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Error("failed to parse redis URL", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(opts)

	pgStore, err := store.NewPostgresStore(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: redisClient,
		},
		watermill.NewSlogLogger(logger),
	)
	if err != nil {
		logger.Error("failed to create event publisher", "error", err)
		os.Exit(1)
	}

	invalidation := service.NewInvalidationRepository(
		cache.NewRedisCache(redisClient),
		cfg.Revocation.TTLs(),
		logger,
	)
	accounts := service.NewAccountService(
		pgStore,
		invalidation,
		hasher.NewBcryptHasher(0),
		events.NewWatermillPublisher(publisher),
		logger,
	)

	metrics := transport.NewMetrics(prometheus.DefaultRegisterer)
	router := transport.SetupRouter(
		accounts,
		invalidation,
		tokenizer.NewJWTTokenizer([]byte(cfg.JWT.Secret)),
		metrics,
	)

	logger.Info("starting server", "addr", cfg.Server.Addr)
	if err := router.Run(cfg.Server.Addr); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
