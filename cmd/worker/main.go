package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/mithublue/photoframe-generator/internal/compose"
	"github.com/mithublue/photoframe-generator/internal/config"
	"github.com/mithublue/photoframe-generator/internal/storage"
	"github.com/mithublue/photoframe-generator/internal/store"
	"github.com/mithublue/photoframe-generator/internal/telemetry"
	"github.com/mithublue/photoframe-generator/internal/webhook"
	"github.com/mithublue/photoframe-generator/internal/worker"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[worker] ", log.LstdFlags|log.Lmsgprefix)

	if err := compose.Startup(); err != nil {
		logger.Fatalf("compositor startup failed: %v", err)
	}
	defer compose.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  "photoframe-worker",
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

	storageClient, err := storage.NewClient(storage.Config{
		Endpoint: cfg.Storage.Endpoint,
		Access:   cfg.Storage.AccessKey,
		Secret:   cfg.Storage.SecretKey,
		Bucket:   cfg.Storage.Bucket,
		UseSSL:   cfg.Storage.UseSSL,
	})
	if err != nil {
		logger.Fatalf("storage client failed: %v", err)
	}

	bucketCtx, bucketCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := storageClient.EnsureBucket(bucketCtx); err != nil {
		logger.Printf("ensure bucket failed: %v", err)
	}
	bucketCancel()

	creationStore, closeStore := buildCreationStore(logger, cfg)
	defer closeStore()

	webhookClient := webhook.NewClient(webhook.Config{
		SigningSecret: cfg.Webhook.SigningSecret,
		Timeout:       cfg.Webhook.Timeout,
		MaxAttempts:   cfg.Webhook.MaxAttempts,
	})

	srv, err := worker.NewServer(
		logger,
		cfg.Queue,
		cfg.Worker,
		storageClient,
		webhookClient,
		creationStore,
		nil,
	)
	if err != nil {
		logger.Fatalf("worker setup failed: %v", err)
	}

	go func() {
		logger.Printf("metrics listening on %s", cfg.Worker.MetricsAddr)
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", srv.MetricsHandler())
		if err := http.ListenAndServe(cfg.Worker.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
			logger.Printf("metrics server failed: %v", err)
		}
	}()

	logger.Printf(
		"starting worker concurrency=%d max_active_merges=%d queue=%s redis=%s",
		cfg.Worker.Concurrency,
		cfg.Worker.MaxActiveMerges,
		cfg.Queue.Name,
		cfg.Queue.RedisAddr,
	)

	if err := srv.Run(); err != nil {
		logger.Fatalf("worker failed: %v", err)
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
