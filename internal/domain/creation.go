package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mithublue/photoframe-generator/internal/compose"
)

const (
	CreationStatusCreated   = "created"
	CreationStatusQueued    = "queued"
	CreationStatusRendering = "rendering"
	CreationStatusSucceeded = "succeeded"
	CreationStatusFailed    = "failed"

	SourceTypeLocalFile   = "local_file"
	SourceTypeS3Presigned = "s3_presigned"
)

type CreateCreationRequest struct {
	UserID     string                  `json:"user_id,omitempty"`
	SourceType string                  `json:"source_type"`
	WebhookURL string                  `json:"webhook_url,omitempty"`
	ProfileKey string                  `json:"profile_key,omitempty"`
	FrameKey   string                  `json:"frame_key,omitempty"`
	Params     compose.TransformParams `json:"params"`
}

type Creation struct {
	ID         string
	UserID     string
	Status     string
	SourceType string
	WebhookURL string
	ProfileKey string
	FrameKey   string
	OutputKey  string
	ThumbKey   string
	Params     compose.TransformParams
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (r CreateCreationRequest) Validate() error {
	sourceType := strings.ToLower(strings.TrimSpace(r.SourceType))
	if sourceType == "" {
		return errors.New("source_type is required")
	}
	if sourceType != SourceTypeLocalFile && sourceType != SourceTypeS3Presigned {
		return fmt.Errorf("unsupported source_type: %s", r.SourceType)
	}
	if sourceType == SourceTypeLocalFile {
		if strings.TrimSpace(r.ProfileKey) == "" {
			return errors.New("profile_key is required for source_type=local_file")
		}
		if strings.TrimSpace(r.FrameKey) == "" {
			return errors.New("frame_key is required for source_type=local_file")
		}
	}
	return ValidateParams(r.Params)
}

// ValidateParams rejects values the compositor cannot draw with. Range
// clamping (slider bounds) is UI policy and deliberately not enforced here.
func ValidateParams(p compose.TransformParams) error {
	if p.ProfileScale < 0 {
		return errors.New("params.profile_scale must be greater than zero")
	}
	if p.FrameScale < 0 {
		return errors.New("params.frame_scale must be greater than zero")
	}
	for name, v := range map[string]float64{
		"params.profile_scale":            p.ProfileScale,
		"params.frame_scale":              p.FrameScale,
		"params.profile_rotation_degrees": p.ProfileRotationDegrees,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be a finite number", name)
		}
	}
	return nil
}
