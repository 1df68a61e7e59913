package repository

import (
	"context"
	"fmt"
	"sync"

	"executor-metrics-backend/internal/model"
)

// memoryMarkerRepository backs the timeline when no job tracker database is
// configured. Markers do not survive a restart.
type memoryMarkerRepository struct {
	mu     sync.RWMutex
	events map[string][]model.TimelineEvent
}

func NewMemoryMarkerRepository() MarkerRepository {
	return &memoryMarkerRepository{events: make(map[string][]model.TimelineEvent)}
}

func (r *memoryMarkerRepository) GetTimeline(_ context.Context, runID string) (model.Timeline, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return TimelineFromEvents(r.events[runID]), nil
}

func (r *memoryMarkerRepository) RecordEvent(_ context.Context, runID, kind, name string, submittedAtMillis int64) error {
	if kind != MarkerKindJob && kind != MarkerKindStage {
		return fmt.Errorf("invalid marker kind %q", kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[runID] = append(r.events[runID], model.TimelineEvent{
		ID:                uint(len(r.events[runID]) + 1),
		RunID:             runID,
		Kind:              kind,
		Name:              name,
		SubmittedAtMillis: submittedAtMillis,
	})
	return nil
}
