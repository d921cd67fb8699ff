package store

import (
	"context"
	"sync"
	"time"

	"github.com/mithublue/photoframe-generator/internal/domain"
)

// MemoryCreationStore backs local development and tests; production uses the
// postgres implementation.
type MemoryCreationStore struct {
	mu        sync.RWMutex
	creations map[string]domain.Creation
	usage     []domain.UsageLog
}

func NewMemoryCreationStore() *MemoryCreationStore {
	return &MemoryCreationStore{
		creations: make(map[string]domain.Creation),
	}
}

func (s *MemoryCreationStore) Create(_ context.Context, creation domain.Creation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creations[creation.ID] = creation
	return nil
}

func (s *MemoryCreationStore) Get(_ context.Context, id string) (domain.Creation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	creation, ok := s.creations[id]
	return creation, ok, nil
}

func (s *MemoryCreationStore) UpdateStatus(_ context.Context, id, status string) (domain.Creation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	creation, ok := s.creations[id]
	if !ok {
		return domain.Creation{}, ErrCreationNotFound
	}

	creation.Status = status
	creation.UpdatedAt = time.Now().UTC()
	s.creations[id] = creation
	return creation, nil
}

func (s *MemoryCreationStore) SetOutputs(_ context.Context, id, outputKey, thumbKey string) (domain.Creation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	creation, ok := s.creations[id]
	if !ok {
		return domain.Creation{}, ErrCreationNotFound
	}

	creation.OutputKey = outputKey
	creation.ThumbKey = thumbKey
	creation.UpdatedAt = time.Now().UTC()
	s.creations[id] = creation
	return creation, nil
}

func (s *MemoryCreationStore) CreateUsageLog(_ context.Context, usage domain.UsageLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage = append(s.usage, usage)
	return nil
}

func (s *MemoryCreationStore) UsageLogs() []domain.UsageLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UsageLog, len(s.usage))
	copy(out, s.usage)
	return out
}
