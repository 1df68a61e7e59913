package repository

import (
	"context"

	"executor-metrics-backend/internal/model"
)

const (
	MarkerKindJob   = "job"
	MarkerKindStage = "stage"
)

// MarkerRepository keeps the job and stage submissions of each run.
type MarkerRepository interface {
	GetTimeline(ctx context.Context, runID string) (model.Timeline, error)
	RecordEvent(ctx context.Context, runID, kind, name string, submittedAtMillis int64) error
}
