package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	appfootprint "main/internal/application/service/footprint"
	appsymbols "main/internal/application/service/symbols"
	"main/internal/config"
	infrabroker "main/internal/infrastructure/broker"
	infrafootprint "main/internal/infrastructure/footprint"
	"main/internal/infrastructure/providers/binance"
	infrasymbols "main/internal/infrastructure/symbols"
	infrahttp "main/internal/interfaces/http"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	footprintRepo, err := infrafootprint.NewRepository(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.Fatalf("failed to init footprint repo: %v", err)
	}
	defer footprintRepo.Close()

	symbolRepo, err := infrasymbols.NewRepository(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.Fatalf("failed to init symbols repo: %v", err)
	}
	defer symbolRepo.Close()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	provider := binance.NewClient(binance.Config{
		BaseURL:           cfg.Provider.BaseURL,
		StreamURL:         cfg.Provider.StreamURL,
		PageLimit:         cfg.Provider.PageLimit,
		MaxTrades:         cfg.Provider.MaxTrades,
		MaxPages:          cfg.Provider.MaxPages,
		RequestsPerMinute: cfg.Provider.RequestsPerMinute,
	}, logger)

	symbolService := appsymbols.NewService(provider, symbolRepo, logger)
	if _, err := symbolService.Sync(ctx); err != nil {
		logger.WithError(err).Warn("initial symbol sync failed, lookups fall back to storage")
	}

	// Drain the broker exchanges into Postgres alongside the API.
	consumer, err := infrabroker.NewConsumer(infrabroker.ConsumerConfig{
		URL: cfg.RabbitMQ.URL,
		Exchanges: infrabroker.Exchanges{
			Trades:     cfg.RabbitMQ.TradesExchange,
			Footprints: cfg.RabbitMQ.FootprintsExchange,
		},
		Prefetch:     cfg.RabbitMQ.Prefetch,
		BatchSize:    cfg.RabbitMQ.BatchSize,
		BatchTimeout: cfg.RabbitMQ.BatchTimeout,
	}, footprintRepo, logger)
	if err != nil {
		logger.Fatalf("failed to init broker consumer: %v", err)
	}
	if err := consumer.Start(ctx); err != nil {
		logger.WithError(err).Warn("broker consumer unavailable, serving API only")
		consumer = nil
	}

	handler := infrahttp.NewHandler(
		footprintRepo,
		provider,
		appfootprint.NewService(logger),
		symbolService,
		redisClient,
		cfg.Cache.TTL(),
	)

	server := &http.Server{
		Addr:    cfg.HTTP.Addr(),
		Handler: handler,
	}

	go func() {
		logger.Infof("HTTP server listening on %s", cfg.HTTP.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown error: %v", err)
	}
	if consumer != nil {
		if err := consumer.Close(shutdownCtx); err != nil {
			logger.Errorf("consumer shutdown error: %v", err)
		}
	}
	logger.Info("server stopped")
}
