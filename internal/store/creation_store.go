package store

import (
	"context"
	"errors"

	"github.com/mithublue/photoframe-generator/internal/domain"
)

var ErrCreationNotFound = errors.New("creation not found")

type CreationStore interface {
	Create(ctx context.Context, creation domain.Creation) error
	Get(ctx context.Context, id string) (domain.Creation, bool, error)
	UpdateStatus(ctx context.Context, id, status string) (domain.Creation, error)
	SetOutputs(ctx context.Context, id, outputKey, thumbKey string) (domain.Creation, error)
}

type UsageStore interface {
	CreateUsageLog(ctx context.Context, usage domain.UsageLog) error
}
