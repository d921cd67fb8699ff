package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/mithublue/photoframe-generator/internal/compose"
)

const TypeMergeCreation = "creation:merge"

type MergeCreationPayload struct {
	CreationID  string                  `json:"creation_id"`
	SourceType  string                  `json:"source_type"`
	WebhookURL  string                  `json:"webhook_url,omitempty"`
	ProfileKey  string                  `json:"profile_key"`
	FrameKey    string                  `json:"frame_key"`
	Params      compose.TransformParams `json:"params"`
	RequestedAt time.Time               `json:"requested_at"`
}

func NewMergeCreationTask(payload MergeCreationPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal merge payload: %w", err)
	}
	return asynq.NewTask(TypeMergeCreation, body), nil
}

func ParseMergeCreationPayload(task *asynq.Task) (MergeCreationPayload, error) {
	var payload MergeCreationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return MergeCreationPayload{}, fmt.Errorf("unmarshal merge payload: %w", err)
	}
	return payload, nil
}
