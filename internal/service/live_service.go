package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"executor-metrics-backend/config"
	"executor-metrics-backend/internal/kafka"
	"executor-metrics-backend/internal/model"
	"executor-metrics-backend/internal/presenter"
	"executor-metrics-backend/internal/repository"
	"executor-metrics-backend/internal/series"
	"executor-metrics-backend/internal/store"
)

const timelineRefreshInterval = 5 * time.Second

// LiveService follows a run's sample stream for one viewer at a time.
type LiveService interface {
	// OpenSession starts consuming the run topic. Updates are delivered on the
	// returned channel, which closes when the session ends.
	OpenSession(ctx context.Context, runID string) (*store.Session, <-chan presenter.Update, error)
	Select(ctx context.Context, sessionID, path string) (model.ChartPayload, error)
	CloseSession(sessionID string) error
}

type liveService struct {
	consumers  kafka.ConsumerFactory
	markers    repository.MarkerRepository
	sessions   store.SessionStore
	charts     ChartService
	builder    *series.Builder
	maxSamples int

	descriptions sync.Map
}

func NewLiveService(
	cfg *config.Config,
	consumers kafka.ConsumerFactory,
	markers repository.MarkerRepository,
	sessions store.SessionStore,
	charts ChartService,
	builder *series.Builder,
) LiveService {
	return &liveService{
		consumers:  consumers,
		markers:    markers,
		sessions:   sessions,
		charts:     charts,
		builder:    builder,
		maxSamples: cfg.Live.MaxSamples,
	}
}

func (s *liveService) OpenSession(ctx context.Context, runID string) (*store.Session, <-chan presenter.Update, error) {
	live := presenter.NewLivePresenter(s.builder, s.maxSamples)
	timeline, err := s.markers.GetTimeline(ctx, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load timeline: %w", err)
	}
	live.SetTimeline(timeline)

	consumer := s.consumers.NewSampleConsumer(runID)
	sessionCtx, cancel := context.WithCancel(context.Background())
	session := s.sessions.Create(runID, live, cancel)
	updates := make(chan presenter.Update, 16)

	go s.consume(sessionCtx, session, consumer, updates)

	log.Info().Str("session_id", session.ID).Str("run_id", runID).Msg("Live session opened")
	return session, updates, nil
}

func (s *liveService) consume(ctx context.Context, session *store.Session, consumer kafka.SampleConsumer, updates chan<- presenter.Update) {
	defer close(updates)
	defer func() {
		if err := consumer.Close(); err != nil {
			log.Warn().Err(err).Str("session_id", session.ID).Msg("Failed to close sample consumer")
		}
	}()

	lastRefresh := time.Now()
	for {
		sample, err := consumer.FetchSample(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				log.Info().Str("session_id", session.ID).Msg("Live session consumer stopping")
				return
			}
			if errors.Is(err, kafka.ErrUndecodable) {
				continue
			}
			log.Error().Err(err).Str("session_id", session.ID).Msg("Error fetching live sample")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		if time.Since(lastRefresh) >= timelineRefreshInterval {
			s.refreshTimeline(ctx, session)
			lastRefresh = time.Now()
		}

		upd := session.Presenter.Ingest(*sample)
		if upd.Paths == nil && upd.Chart == nil {
			continue
		}
		if upd.Chart != nil {
			upd.Chart.Description = s.describe(ctx, upd.Chart.MetricPath)
		}
		select {
		case updates <- upd:
		case <-ctx.Done():
			return
		}
	}
}

func (s *liveService) refreshTimeline(ctx context.Context, session *store.Session) {
	timeline, err := s.markers.GetTimeline(ctx, session.RunID)
	if err != nil {
		log.Warn().Err(err).Str("run_id", session.RunID).Msg("Failed to refresh live timeline")
		return
	}
	session.Presenter.SetTimeline(timeline)
}

func (s *liveService) Select(ctx context.Context, sessionID, path string) (model.ChartPayload, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return model.ChartPayload{}, err
	}
	payload := session.Presenter.Select(path)
	if payload.MetricPath != "" {
		payload.Description = s.describe(ctx, payload.MetricPath)
	}
	return payload, nil
}

func (s *liveService) CloseSession(sessionID string) error {
	session, err := s.sessions.Remove(sessionID)
	if err != nil {
		return err
	}
	session.Stop()
	log.Info().Str("session_id", sessionID).Str("run_id", session.RunID).Msg("Live session closed")
	return nil
}

func (s *liveService) describe(ctx context.Context, path string) string {
	if cached, ok := s.descriptions.Load(path); ok {
		return cached.(string)
	}
	description := s.charts.Describe(ctx, path)
	s.descriptions.Store(path, description)
	return description
}
