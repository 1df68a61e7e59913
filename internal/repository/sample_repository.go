package repository

import (
	"context"

	"executor-metrics-backend/internal/dto"
	"executor-metrics-backend/internal/model"
)

// SampleRepository reads stored run history in arrival order.
type SampleRepository interface {
	ListSamples(ctx context.Context, query dto.SampleQuery) ([]model.MetricSample, error)
	FirstSample(ctx context.Context, runID string) (*model.MetricSample, error)
	ListRuns(ctx context.Context) ([]string, error)
}
