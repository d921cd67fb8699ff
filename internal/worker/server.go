package worker

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mithublue/photoframe-generator/internal/config"
	"github.com/mithublue/photoframe-generator/internal/domain"
	"github.com/mithublue/photoframe-generator/internal/pipeline"
	"github.com/mithublue/photoframe-generator/internal/queue"
	"github.com/mithublue/photoframe-generator/internal/storage"
	"github.com/mithublue/photoframe-generator/internal/store"
)

type Server struct {
	logger          *log.Logger
	server          *asynq.Server
	sem             chan struct{}
	localProcessor  *pipeline.Processor
	objectProcessor *pipeline.Processor
	webhookClient   webhookSender
	creationStore   store.CreationStore
	usageStore      store.UsageStore
	metrics         *metrics
	tracer          trace.Tracer
}

type webhookSender interface {
	Send(ctx context.Context, endpoint, event string, payload any) error
}

func NewServer(
	logger *log.Logger,
	queueCfg config.QueueConfig,
	workerCfg config.WorkerConfig,
	storageClient *storage.Client,
	webhookClient webhookSender,
	creationStore store.CreationStore,
	usageStore store.UsageStore,
) (*Server, error) {
	if storageClient == nil {
		return nil, fmt.Errorf("storage client is required")
	}

	localProcessor, err := pipeline.NewLocalProcessor(workerCfg.LocalOutputDir)
	if err != nil {
		return nil, fmt.Errorf("initialize local processor: %w", err)
	}

	objectProcessor, err := pipeline.NewObjectStoreProcessor(
		pipeline.ObjectStoreFetcher{Storage: storageClient},
		pipeline.ObjectStoreEmitter{Storage: storageClient, OutputPrefix: "creations"},
	)
	if err != nil {
		return nil, fmt.Errorf("initialize object-store processor: %w", err)
	}

	if usageStore == nil {
		if combined, ok := creationStore.(store.UsageStore); ok {
			usageStore = combined
		}
	}

	s := &Server{
		logger: logger,
		server: asynq.NewServer(
			queueCfg.RedisClientOpt(),
			asynq.Config{
				Concurrency: workerCfg.Concurrency,
				Queues: map[string]int{
					queueCfg.Name: 1,
				},
				LogLevel: asynq.InfoLevel,
				ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
					retried, _ := asynq.GetRetryCount(ctx)
					maxRetry, _ := asynq.GetMaxRetry(ctx)
					logger.Printf("task failed type=%s retry=%d/%d err=%v", task.Type(), retried, maxRetry, err)
				}),
			},
		),
		sem:             make(chan struct{}, max(1, workerCfg.MaxActiveMerges)),
		localProcessor:  localProcessor,
		objectProcessor: objectProcessor,
		webhookClient:   webhookClient,
		creationStore:   creationStore,
		usageStore:      usageStore,
		metrics:         newMetrics(),
		tracer:          otel.Tracer("photoframe/worker"),
	}
	return s, nil
}

func (s *Server) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeMergeCreation, s.handleMergeCreation)
	return s.server.Run(mux)
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handleMergeCreation(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()
	outcome := domain.CreationStatusFailed

	payload, err := queue.ParseMergeCreationPayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	ctx, span := s.tracer.Start(ctx, "worker.merge_creation", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("creation.id", payload.CreationID),
		attribute.String("creation.source_type", payload.SourceType),
	)
	defer span.End()
	defer func() {
		s.metrics.mergeDuration.WithLabelValues(payload.SourceType, outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.mergesTotal.WithLabelValues(payload.SourceType, outcome).Inc()
	}()

	s.sem <- struct{}{}
	s.metrics.activeMerges.Inc()
	defer func() {
		<-s.sem
		s.metrics.activeMerges.Dec()
	}()

	s.logger.Printf(
		"Merging... creation_id=%s source_type=%s profile=%s frame=%s",
		payload.CreationID,
		payload.SourceType,
		payload.ProfileKey,
		payload.FrameKey,
	)

	s.updateStatus(ctx, payload.CreationID, domain.CreationStatusRendering)

	request := pipeline.Request{
		CreationID: payload.CreationID,
		SourceType: payload.SourceType,
		ProfileKey: payload.ProfileKey,
		FrameKey:   payload.FrameKey,
		Params:     payload.Params,
	}

	var result pipeline.Result
	switch payload.SourceType {
	case domain.SourceTypeLocalFile:
		result, err = s.localProcessor.Process(ctx, request)
	default:
		result, err = s.objectProcessor.Process(ctx, request)
	}
	if err != nil {
		s.updateStatus(ctx, payload.CreationID, domain.CreationStatusFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "merge failed")
		s.dispatchWebhook(ctx, payload, "creation.failed", map[string]any{
			"creation_id":  payload.CreationID,
			"status":       domain.CreationStatusFailed,
			"source_type":  payload.SourceType,
			"requested_at": payload.RequestedAt,
			"failed_at":    time.Now().UTC(),
			"error":        err.Error(),
		})
		return fmt.Errorf("run merge: %w", err)
	}

	s.logger.Printf("Merged creation_id=%s output=%s %dx%d", payload.CreationID, result.OutputPath, result.Width, result.Height)

	if s.creationStore != nil {
		if _, err := s.creationStore.SetOutputs(ctx, payload.CreationID, result.OutputPath, result.ThumbPath); err != nil {
			s.logger.Printf("record outputs failed creation_id=%s err=%v", payload.CreationID, err)
		}
	}
	s.updateStatus(ctx, payload.CreationID, domain.CreationStatusSucceeded)
	s.recordUsage(ctx, payload.CreationID, result, time.Since(startedAt))

	if err := s.dispatchWebhook(ctx, payload, "creation.completed", map[string]any{
		"creation_id":  payload.CreationID,
		"status":       domain.CreationStatusSucceeded,
		"source_type":  payload.SourceType,
		"requested_at": payload.RequestedAt,
		"completed_at": time.Now().UTC(),
		"output_key":   result.OutputPath,
		"thumb_key":    result.ThumbPath,
		"width":        result.Width,
		"height":       result.Height,
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "webhook dispatch failed")
		return err
	}

	outcome = domain.CreationStatusSucceeded
	span.SetStatus(codes.Ok, "merged")
	return nil
}

func (s *Server) updateStatus(ctx context.Context, creationID, status string) {
	if s.creationStore == nil {
		return
	}
	if _, err := s.creationStore.UpdateStatus(ctx, creationID, status); err != nil {
		s.logger.Printf("status update failed creation_id=%s status=%s err=%v", creationID, status, err)
	}
}

func (s *Server) dispatchWebhook(ctx context.Context, payload queue.MergeCreationPayload, event string, body map[string]any) error {
	if payload.WebhookURL == "" || s.webhookClient == nil {
		return nil
	}

	if err := s.webhookClient.Send(ctx, payload.WebhookURL, event, body); err != nil {
		s.logger.Printf("webhook delivery failed creation_id=%s event=%s err=%v", payload.CreationID, event, err)
		return fmt.Errorf("dispatch webhook: %w", err)
	}

	return nil
}

func (s *Server) recordUsage(ctx context.Context, creationID string, result pipeline.Result, computeDuration time.Duration) {
	if s.usageStore == nil {
		return
	}

	userID := "anonymous"
	if s.creationStore != nil {
		creation, ok, err := s.creationStore.Get(ctx, creationID)
		if err != nil {
			s.logger.Printf("usage lookup failed creation_id=%s err=%v", creationID, err)
		} else if ok && strings.TrimSpace(creation.UserID) != "" {
			userID = creation.UserID
		}
	}

	computeTimeMS := computeDuration.Milliseconds()
	if computeTimeMS < 1 {
		computeTimeMS = 1
	}

	usage := domain.UsageLog{
		UserID:         userID,
		CreationID:     creationID,
		PixelsRendered: int64(result.Width) * int64(result.Height),
		OutputBytes:    int64(result.OutputBytes + result.ThumbBytes),
		ComputeTimeMS:  computeTimeMS,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.usageStore.CreateUsageLog(ctx, usage); err != nil {
		s.logger.Printf("usage log write failed creation_id=%s err=%v", creationID, err)
		return
	}

	s.metrics.pixelsRenderedTotal.Add(float64(usage.PixelsRendered))
	s.metrics.outputBytesTotal.Add(float64(usage.OutputBytes))
	s.metrics.computeTimeMSTotal.Add(float64(usage.ComputeTimeMS))
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
