package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/mithublue/photoframe-generator/internal/domain"
	"github.com/mithublue/photoframe-generator/internal/id"
	"github.com/mithublue/photoframe-generator/internal/queue"
	"github.com/mithublue/photoframe-generator/internal/store"
)

type Server struct {
	logger                *log.Logger
	queueClient           queueEnqueuer
	creationStore         store.CreationStore
	storage               objectStorage
	presignTTL            time.Duration
	rateLimiter           RateLimiter
	rateLimitUserIDHeader string
	metrics               *metrics
	tracer                trace.Tracer
	mux                   *http.ServeMux
}

type queueEnqueuer interface {
	EnqueueMergeCreation(ctx context.Context, payload queue.MergeCreationPayload) (*asynq.TaskInfo, error)
}

type objectStorage interface {
	PresignedPutURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
	PresignedGetURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
	ObjectExists(ctx context.Context, objectKey string) (bool, error)
}

type Options struct {
	PresignTTL            time.Duration
	RateLimiter           RateLimiter
	RateLimitUserIDHeader string
}

func NewServer(logger *log.Logger, queueClient queueEnqueuer, creationStore store.CreationStore, storage objectStorage, opts Options) *Server {
	presignTTL := opts.PresignTTL
	if presignTTL <= 0 {
		presignTTL = 15 * time.Minute
	}
	if storage == nil {
		storage = unavailableObjectStorage{}
	}

	userIDHeader := strings.TrimSpace(opts.RateLimitUserIDHeader)
	if userIDHeader == "" {
		userIDHeader = "X-User-ID"
	}

	s := &Server{
		logger:                logger,
		queueClient:           queueClient,
		creationStore:         creationStore,
		storage:               storage,
		presignTTL:            presignTTL,
		rateLimiter:           opts.RateLimiter,
		rateLimitUserIDHeader: userIDHeader,
		metrics:               newMetrics(),
		tracer:                otel.Tracer("photoframe/api"),
		mux:                   http.NewServeMux(),
	}
	s.routes()
	return s
}

type unavailableObjectStorage struct{}

func (unavailableObjectStorage) PresignedPutURL(_ context.Context, _ string, _ time.Duration) (string, error) {
	return "", errors.New("object storage is unavailable")
}

func (unavailableObjectStorage) PresignedGetURL(_ context.Context, _ string, _ time.Duration) (string, error) {
	return "", errors.New("object storage is unavailable")
}

func (unavailableObjectStorage) ObjectExists(_ context.Context, _ string) (bool, error) {
	return false, errors.New("object storage is unavailable")
}

func (s *Server) Handler() http.Handler {
	return s.withTracing(s.metrics.withHTTPMetrics(s.withRateLimit(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	s.mux.HandleFunc("POST /v1/creations", s.handleCreateCreation)
	s.mux.HandleFunc("POST /v1/creations/", s.handleMergeCreation)
	s.mux.HandleFunc("GET /v1/creations/", s.handleGetCreation)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateCreation(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateCreationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	now := time.Now().UTC()
	creationID := id.New()
	sourceType := strings.ToLower(strings.TrimSpace(req.SourceType))
	profileKey := strings.TrimSpace(req.ProfileKey)
	frameKey := strings.TrimSpace(req.FrameKey)
	uploadState := "not_required"
	profilePutURL := ""
	framePutURL := ""

	if sourceType == domain.SourceTypeS3Presigned {
		profileKey = fmt.Sprintf("uploads/%s/profile", creationID)
		frameKey = fmt.Sprintf("uploads/%s/frame", creationID)

		var err error
		profilePutURL, err = s.storage.PresignedPutURL(r.Context(), profileKey, s.presignTTL)
		if err == nil {
			framePutURL, err = s.storage.PresignedPutURL(r.Context(), frameKey, s.presignTTL)
		}
		if err != nil {
			s.logger.Printf("generate presigned urls failed for creation %s: %v", creationID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to generate upload URLs"})
			return
		}
		uploadState = "ready"
	}

	creation := domain.Creation{
		ID:         creationID,
		UserID:     strings.TrimSpace(req.UserID),
		Status:     domain.CreationStatusCreated,
		SourceType: sourceType,
		WebhookURL: req.WebhookURL,
		ProfileKey: profileKey,
		FrameKey:   frameKey,
		Params:     req.Params,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.creationStore.Create(r.Context(), creation); err != nil {
		s.logger.Printf("create creation failed for %s: %v", creation.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create creation"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"creation_id": creation.ID,
		"status":      creation.Status,
		"uploads": map[string]any{
			"state": uploadState,
			"profile": map[string]string{
				"object_key":        creation.ProfileKey,
				"presigned_put_url": profilePutURL,
			},
			"frame": map[string]string{
				"object_key":        creation.FrameKey,
				"presigned_put_url": framePutURL,
			},
		},
		"merge_url": fmt.Sprintf("/v1/creations/%s/merge", creation.ID),
	})
}

func (s *Server) handleMergeCreation(w http.ResponseWriter, r *http.Request) {
	creationID, err := extractCreationIDFromMergePath(r.URL.Path)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	creation, ok, err := s.creationStore.Get(r.Context(), creationID)
	if err != nil {
		s.logger.Printf("fetch creation failed for %s: %v", creationID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load creation"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "creation not found"})
		return
	}

	if err := s.verifySourcesExist(r.Context(), creation); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}

	payload := queue.MergeCreationPayload{
		CreationID:  creation.ID,
		SourceType:  creation.SourceType,
		WebhookURL:  creation.WebhookURL,
		ProfileKey:  creation.ProfileKey,
		FrameKey:    creation.FrameKey,
		Params:      creation.Params,
		RequestedAt: time.Now().UTC(),
	}

	taskInfo, err := s.queueClient.EnqueueMergeCreation(r.Context(), payload)
	if err != nil {
		s.logger.Printf("enqueue failed for creation %s: %v", creation.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to enqueue merge"})
		return
	}

	s.metrics.queueEnqueued.WithLabelValues(taskInfo.Queue).Inc()

	if _, err := s.creationStore.UpdateStatus(r.Context(), creation.ID, domain.CreationStatusQueued); err != nil {
		s.logger.Printf("update status failed for creation %s: %v", creation.ID, err)
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"creation_id": creation.ID,
		"status":      domain.CreationStatusQueued,
		"queue":       taskInfo.Queue,
		"task_id":     taskInfo.ID,
		"state":       taskInfo.State.String(),
		"enqueued_at": taskInfo.NextProcessAt,
	})
}

func (s *Server) handleGetCreation(w http.ResponseWriter, r *http.Request) {
	creationID, err := extractCreationIDFromGetPath(r.URL.Path)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	creation, ok, err := s.creationStore.Get(r.Context(), creationID)
	if err != nil {
		s.logger.Printf("fetch creation failed for %s: %v", creationID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load creation"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "creation not found"})
		return
	}

	body := map[string]any{
		"creation_id": creation.ID,
		"status":      creation.Status,
		"params":      creation.Params,
		"created_at":  creation.CreatedAt,
		"updated_at":  creation.UpdatedAt,
	}

	if creation.Status == domain.CreationStatusSucceeded && creation.OutputKey != "" {
		result := map[string]string{
			"output_key": creation.OutputKey,
			"thumb_key":  creation.ThumbKey,
		}
		if creation.SourceType != domain.SourceTypeLocalFile {
			if url, err := s.storage.PresignedGetURL(r.Context(), creation.OutputKey, s.presignTTL); err == nil {
				result["download_url"] = url
			} else {
				s.logger.Printf("presign download failed for creation %s: %v", creation.ID, err)
			}
		}
		body["result"] = result
	}

	writeJSON(w, http.StatusOK, body)
}

func (s *Server) verifySourcesExist(ctx context.Context, creation domain.Creation) error {
	for _, objectKey := range []string{creation.ProfileKey, creation.FrameKey} {
		switch creation.SourceType {
		case domain.SourceTypeLocalFile:
			if _, err := os.Stat(objectKey); err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("source object is missing: %s", objectKey)
				}
				return fmt.Errorf("source object check failed: %w", err)
			}
		default:
			exists, err := s.storage.ObjectExists(ctx, objectKey)
			if err != nil {
				return fmt.Errorf("source object check failed: %w", err)
			}
			if !exists {
				return fmt.Errorf("source object is missing: %s", objectKey)
			}
		}
	}
	return nil
}

func extractCreationIDFromMergePath(path string) (string, error) {
	trimmed := strings.TrimPrefix(path, "/v1/creations/")
	parts := strings.Split(strings.Trim(trimmed, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "merge" {
		return "", errors.New("expected path format /v1/creations/{id}/merge")
	}
	return parts[0], nil
}

func extractCreationIDFromGetPath(path string) (string, error) {
	trimmed := strings.TrimPrefix(path, "/v1/creations/")
	parts := strings.Split(strings.Trim(trimmed, "/"), "/")
	if len(parts) != 1 || parts[0] == "" {
		return "", errors.New("expected path format /v1/creations/{id}")
	}
	return parts[0], nil
}

func decodeJSON(r *http.Request, into any) error {
	const maxBodyBytes = 1 << 20
	limited := io.LimitReader(r.Body, maxBodyBytes)
	decoder := json.NewDecoder(limited)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON body: multiple JSON values are not allowed")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
