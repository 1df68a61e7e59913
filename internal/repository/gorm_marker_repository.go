package repository

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"executor-metrics-backend/internal/model"
)

type gormMarkerRepository struct {
	db *gorm.DB
}

func NewGormMarkerRepository(db *gorm.DB) MarkerRepository {
	return &gormMarkerRepository{db: db}
}

// GetTimeline returns markers in recording order, which is submission order.
func (r *gormMarkerRepository) GetTimeline(ctx context.Context, runID string) (model.Timeline, error) {
	var events []model.TimelineEvent
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("id ASC").
		Find(&events).Error
	if err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("Failed to load timeline events")
		return model.Timeline{}, fmt.Errorf("failed to load timeline: %w", err)
	}
	return TimelineFromEvents(events), nil
}

func (r *gormMarkerRepository) RecordEvent(ctx context.Context, runID, kind, name string, submittedAtMillis int64) error {
	if kind != MarkerKindJob && kind != MarkerKindStage {
		return fmt.Errorf("invalid marker kind %q", kind)
	}
	event := model.TimelineEvent{
		RunID:             runID,
		Kind:              kind,
		Name:              name,
		SubmittedAtMillis: submittedAtMillis,
	}
	if err := r.db.WithContext(ctx).Create(&event).Error; err != nil {
		log.Error().Err(err).Str("run_id", runID).Str("kind", kind).Msg("Failed to record timeline event")
		return fmt.Errorf("failed to record timeline event: %w", err)
	}
	return nil
}

// TimelineFromEvents splits stored events into job and stage markers,
// keeping their order.
func TimelineFromEvents(events []model.TimelineEvent) model.Timeline {
	timeline := model.Timeline{
		Jobs:   []model.TimelineMarker{},
		Stages: []model.TimelineMarker{},
	}
	for _, e := range events {
		marker := model.TimelineMarker{TimestampMillis: e.SubmittedAtMillis, Label: e.Name}
		switch e.Kind {
		case MarkerKindJob:
			timeline.Jobs = append(timeline.Jobs, marker)
		case MarkerKindStage:
			timeline.Stages = append(timeline.Stages, marker)
		default:
			log.Warn().Str("kind", e.Kind).Uint("id", e.ID).Msg("Ignoring timeline event of unknown kind")
		}
	}
	return timeline
}
