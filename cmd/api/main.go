package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mithublue/photoframe-generator/internal/api"
	"github.com/mithublue/photoframe-generator/internal/config"
	"github.com/mithublue/photoframe-generator/internal/queue"
	"github.com/mithublue/photoframe-generator/internal/ratelimit"
	"github.com/mithublue/photoframe-generator/internal/storage"
	"github.com/mithublue/photoframe-generator/internal/store"
	"github.com/mithublue/photoframe-generator/internal/telemetry"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.Lmsgprefix)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  "photoframe-api",
		Exporter:     cfg.Trace.Exporter,
		OTLPEndpoint: cfg.Trace.OTLPEndpoint,
		OTLPInsecure: cfg.Trace.OTLPInsecure,
	}, logger)
	cancel()
	if err != nil {
		logger.Fatalf("tracing setup failed: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Printf("tracing shutdown error: %v", err)
		}
	}()

	queueClient := queue.NewClient(cfg.Queue.RedisClientOpt(), cfg.Queue.Name)
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Printf("queue client close error: %v", err)
		}
	}()

	creationStore, closeStore := buildCreationStore(logger, cfg)
	defer closeStore()

	var objectStore *storage.Client
	if client, err := storage.NewClient(storage.Config{
		Endpoint: cfg.Storage.Endpoint,
		Access:   cfg.Storage.AccessKey,
		Secret:   cfg.Storage.SecretKey,
		Bucket:   cfg.Storage.Bucket,
		UseSSL:   cfg.Storage.UseSSL,
	}); err != nil {
		logger.Printf("object storage unavailable: %v", err)
	} else {
		objectStore = client
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := objectStore.EnsureBucket(ctx); err != nil {
			logger.Printf("ensure bucket failed: %v", err)
		}
		cancel()
	}

	opts := api.Options{
		PresignTTL:            cfg.API.PresignTTL,
		RateLimiter:           buildRateLimiter(logger, cfg),
		RateLimitUserIDHeader: cfg.RateLimit.UserIDHeader,
	}

	var app *api.Server
	if objectStore != nil {
		app = api.NewServer(logger, queueClient, creationStore, objectStore, opts)
	} else {
		app = api.NewServer(logger, queueClient, creationStore, nil, opts)
	}

	httpServer := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s", cfg.API.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Println("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}

func buildCreationStore(logger *log.Logger, cfg config.Config) (store.CreationStore, func()) {
	if cfg.Database.DSN == "" {
		logger.Printf("no POSTGRES_DSN set, using in-memory creation store")
		return store.NewMemoryCreationStore(), func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pg, err := store.NewPostgresCreationStore(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Printf("postgres unavailable (%v), using in-memory creation store", err)
		return store.NewMemoryCreationStore(), func() {}
	}

	return pg, func() {
		if err := pg.Close(); err != nil {
			logger.Printf("creation store close error: %v", err)
		}
	}
}

func buildRateLimiter(logger *log.Logger, cfg config.Config) api.RateLimiter {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Queue.RedisAddr,
		Password: cfg.Queue.RedisPassword,
		DB:       cfg.Queue.RedisDB,
	})

	limiter, err := ratelimit.NewRedisTokenBucket(redisClient, cfg.RateLimit.Capacity, cfg.RateLimit.Window, "")
	if err != nil {
		logger.Printf("rate limiter disabled: %v", err)
		return nil
	}
	return limiter
}
