package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"executor-metrics-backend/internal/dto"
	"executor-metrics-backend/internal/kafka"
	"executor-metrics-backend/internal/model"
	"executor-metrics-backend/internal/presenter"
)

type fakeSampleStore struct {
	mu      sync.Mutex
	samples map[string][]model.MetricSample
	failFor string
}

func newFakeSampleStore() *fakeSampleStore {
	return &fakeSampleStore{samples: make(map[string][]model.MetricSample)}
}

func (s *fakeSampleStore) StoreSamples(_ context.Context, runID string, samples []model.MetricSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if runID == s.failFor {
		return errors.New("store unavailable")
	}
	s.samples[runID] = append(s.samples[runID], samples...)
	return nil
}

func (s *fakeSampleStore) Close() {}

// ListSamples ignores the time range; tests bound nothing.
func (s *fakeSampleStore) ListSamples(_ context.Context, q dto.SampleQuery) ([]model.MetricSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]model.MetricSample{}, s.samples[q.RunID]...)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *fakeSampleStore) FirstSample(ctx context.Context, runID string) (*model.MetricSample, error) {
	samples, _ := s.ListSamples(ctx, dto.SampleQuery{RunID: runID, Limit: 1})
	if len(samples) == 0 {
		return nil, nil
	}
	return &samples[0], nil
}

func (s *fakeSampleStore) ListRuns(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	runs := []string{}
	for run := range s.samples {
		runs = append(runs, run)
	}
	return runs, nil
}

type fakeDescriptions struct {
	known map[string]string
}

func (d *fakeDescriptions) Describe(_ context.Context, paths []string) (map[string]string, error) {
	out := map[string]string{}
	for _, p := range paths {
		if text, ok := d.known[p]; ok {
			out[p] = text
		}
	}
	return out, nil
}

func (d *fakeDescriptions) IndexDescriptions(context.Context, []model.MetricDescription) error {
	return nil
}

func (d *fakeDescriptions) Close(context.Context) error { return nil }

type fakeConsumer struct {
	messages chan *model.MetricSample
	closed   chan struct{}
}

func (c *fakeConsumer) FetchSample(ctx context.Context) (*model.MetricSample, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case s := <-c.messages:
		if s == nil {
			return nil, fmt.Errorf("%w: test message", kafka.ErrUndecodable)
		}
		return s, nil
	}
}

func (c *fakeConsumer) Close() error {
	close(c.closed)
	return nil
}

type fakeConsumerFactory struct {
	consumer *fakeConsumer
	runIDs   []string
}

func (f *fakeConsumerFactory) NewSampleConsumer(runID string) kafka.SampleConsumer {
	f.runIDs = append(f.runIDs, runID)
	return f.consumer
}

func nextUpdate(t *testing.T, ch <-chan presenter.Update) presenter.Update {
	t.Helper()
	select {
	case u, ok := <-ch:
		if !ok {
			t.Fatal("update channel closed")
		}
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for live update")
	}
	return presenter.Update{}
}
