package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"executor-metrics-backend/internal/dto"
	"executor-metrics-backend/internal/elasticsearch"
	"executor-metrics-backend/internal/metrics"
	"executor-metrics-backend/internal/model"
	"executor-metrics-backend/internal/presenter"
	"executor-metrics-backend/internal/repository"
	"executor-metrics-backend/internal/series"
	"executor-metrics-backend/internal/util"
)

// Summary terms, per host.
var (
	NetworkTerms = []string{"sigar.network.rxKBytesPerSecond", "sigar.network.txKBytesPerSecond"}
	DiskTerms    = []string{"sigar.disk.readKBytesPerSecond", "sigar.disk.writtenKBytesPerSecond"}
)

const (
	networkSummaryTitle = "Network traffic (KB/s, rx+tx)"
	diskSummaryTitle    = "Disk IO (KB/s, read+written)"
)

// ChartService renders historical charts of stored runs.
type ChartService interface {
	ListRuns(ctx context.Context) (*dto.RunListResponse, error)
	GetMetricPaths(ctx context.Context, runID string) (*dto.MetricPathsResponse, error)
	GetChart(ctx context.Context, runID, path string, r util.TimeRange) (*model.ChartPayload, error)
	GetSummary(ctx context.Context, runID string, r util.TimeRange) (*dto.SummaryResponse, error)
	GetTimeline(ctx context.Context, runID string) (model.Timeline, error)
	RecordTimelineEvent(ctx context.Context, runID string, req dto.TimelineEventRequest) error
	Describe(ctx context.Context, path string) string
}

type chartService struct {
	samples      repository.SampleRepository
	markers      repository.MarkerRepository
	descriptions elasticsearch.DescriptionStore
	batch        *presenter.BatchPresenter

	// runID -> paths of the run's first sample.
	pathCache sync.Map
}

func NewChartService(
	samples repository.SampleRepository,
	markers repository.MarkerRepository,
	descriptions elasticsearch.DescriptionStore,
	builder *series.Builder,
) ChartService {
	return &chartService{
		samples:      samples,
		markers:      markers,
		descriptions: descriptions,
		batch:        presenter.NewBatchPresenter(builder),
	}
}

func (s *chartService) ListRuns(ctx context.Context) (*dto.RunListResponse, error) {
	runs, err := s.samples.ListRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return &dto.RunListResponse{Runs: runs}, nil
}

func (s *chartService) GetMetricPaths(ctx context.Context, runID string) (*dto.MetricPathsResponse, error) {
	paths, err := s.paths(ctx, runID)
	if err != nil {
		return nil, err
	}
	descriptions, err := s.descriptions.Describe(ctx, paths)
	if err != nil {
		log.Warn().Err(err).Str("run_id", runID).Msg("Metric descriptions unavailable")
		descriptions = map[string]string{}
	}
	return &dto.MetricPathsResponse{
		RunID:        runID,
		Paths:        paths,
		Descriptions: descriptions,
	}, nil
}

func (s *chartService) paths(ctx context.Context, runID string) ([]string, error) {
	if cached, ok := s.pathCache.Load(runID); ok {
		return cached.([]string), nil
	}
	first, err := s.samples.FirstSample(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load first sample: %w", err)
	}
	if first == nil {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	paths := s.batch.Paths([]model.MetricSample{*first})
	s.pathCache.Store(runID, paths)
	return paths, nil
}

func (s *chartService) GetChart(ctx context.Context, runID, path string, r util.TimeRange) (*model.ChartPayload, error) {
	if presenter.IsNoSelection(path) {
		payload := model.EmptyPayload("")
		return &payload, nil
	}
	if strings.Contains(path, metrics.PathSeparator+metrics.PathSeparator) ||
		strings.HasPrefix(path, metrics.PathSeparator) || strings.HasSuffix(path, metrics.PathSeparator) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}

	samples, timeline, err := s.load(ctx, runID, r)
	if err != nil {
		return nil, err
	}
	payload := s.batch.Present(samples, path, timeline, nil)
	payload.Description = s.Describe(ctx, path)
	return &payload, nil
}

func (s *chartService) GetSummary(ctx context.Context, runID string, r util.TimeRange) (*dto.SummaryResponse, error) {
	samples, timeline, err := s.load(ctx, runID, r)
	if err != nil {
		return nil, err
	}
	return &dto.SummaryResponse{
		RunID:   runID,
		Network: s.batch.PresentSum(samples, networkSummaryTitle, timeline, NetworkTerms...),
		Disk:    s.batch.PresentSum(samples, diskSummaryTitle, timeline, DiskTerms...),
	}, nil
}

func (s *chartService) load(ctx context.Context, runID string, r util.TimeRange) ([]model.MetricSample, model.Timeline, error) {
	samples, err := s.samples.ListSamples(ctx, dto.SampleQuery{RunID: runID, Range: r})
	if err != nil {
		return nil, model.Timeline{}, fmt.Errorf("failed to load samples: %w", err)
	}
	timeline, err := s.GetTimeline(ctx, runID)
	if err != nil {
		return nil, model.Timeline{}, err
	}
	log.Debug().Str("run_id", runID).Int("samples", len(samples)).Int("stages", len(timeline.Stages)).Msg("Loaded run history")
	return samples, timeline, nil
}

func (s *chartService) GetTimeline(ctx context.Context, runID string) (model.Timeline, error) {
	timeline, err := s.markers.GetTimeline(ctx, runID)
	if err != nil {
		return model.Timeline{}, fmt.Errorf("failed to load timeline: %w", err)
	}
	return timeline, nil
}

func (s *chartService) RecordTimelineEvent(ctx context.Context, runID string, req dto.TimelineEventRequest) error {
	return s.markers.RecordEvent(ctx, runID, req.Kind, req.Name, req.SubmittedAtMillis)
}

// Describe returns the tooltip text of path, or "" when none is known.
func (s *chartService) Describe(ctx context.Context, path string) string {
	descriptions, err := s.descriptions.Describe(ctx, []string{path})
	if err != nil {
		log.Debug().Err(err).Str("metric_path", path).Msg("Metric description lookup failed")
		return ""
	}
	return descriptions[path]
}
