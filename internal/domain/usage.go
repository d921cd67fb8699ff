package domain

import "time"

type UsageLog struct {
	UserID         string
	CreationID     string
	PixelsRendered int64
	OutputBytes    int64
	ComputeTimeMS  int64
	CreatedAt      time.Time
}
