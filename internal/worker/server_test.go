package worker

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/mithublue/photoframe-generator/internal/domain"
	"github.com/mithublue/photoframe-generator/internal/pipeline"
	"github.com/mithublue/photoframe-generator/internal/store"
)

func TestRecordUsageWritesUsageLog(t *testing.T) {
	creationStore := store.NewMemoryCreationStore()
	if err := creationStore.Create(context.Background(), domain.Creation{
		ID:         "creation-1",
		UserID:     "user-1",
		Status:     domain.CreationStatusRendering,
		SourceType: domain.SourceTypeLocalFile,
		ProfileKey: "profile.png",
		FrameKey:   "frame.png",
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed creation: %v", err)
	}

	usageStore := &captureUsageStore{}
	s := &Server{
		logger:        log.New(io.Discard, "", 0),
		creationStore: creationStore,
		usageStore:    usageStore,
		metrics:       newMetrics(),
	}

	s.recordUsage(context.Background(), "creation-1", pipeline.Result{
		Width:       800,
		Height:      800,
		OutputBytes: 4_000,
		ThumbBytes:  500,
		SourceBytes: 10_000,
	}, 250*time.Millisecond)

	if !usageStore.called {
		t.Fatal("expected usage log to be written")
	}
	if usageStore.log.UserID != "user-1" {
		t.Fatalf("expected user_id=user-1, got %s", usageStore.log.UserID)
	}
	if usageStore.log.PixelsRendered != 640_000 {
		t.Fatalf("expected pixels_rendered=640000, got %d", usageStore.log.PixelsRendered)
	}
	if usageStore.log.OutputBytes != 4_500 {
		t.Fatalf("expected output_bytes=4500, got %d", usageStore.log.OutputBytes)
	}
	if usageStore.log.ComputeTimeMS != 250 {
		t.Fatalf("expected compute_time_ms=250, got %d", usageStore.log.ComputeTimeMS)
	}
}

func TestRecordUsageAnonymousWithoutCreation(t *testing.T) {
	usageStore := &captureUsageStore{}
	s := &Server{
		logger:     log.New(io.Discard, "", 0),
		usageStore: usageStore,
		metrics:    newMetrics(),
	}

	s.recordUsage(context.Background(), "creation-2", pipeline.Result{Width: 10, Height: 10}, 0)

	if usageStore.log.UserID != "anonymous" {
		t.Fatalf("expected anonymous user, got %s", usageStore.log.UserID)
	}
	if usageStore.log.ComputeTimeMS < 1 {
		t.Fatalf("expected compute_time_ms to be at least 1, got %d", usageStore.log.ComputeTimeMS)
	}
}

type captureUsageStore struct {
	called bool
	log    domain.UsageLog
}

func (s *captureUsageStore) CreateUsageLog(_ context.Context, usage domain.UsageLog) error {
	s.called = true
	s.log = usage
	return nil
}
