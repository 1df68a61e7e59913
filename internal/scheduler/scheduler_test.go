package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"executor-metrics-backend/config"
)

type countingJob struct{ runs int }

func (j *countingJob) ImportHistory(context.Context) error { j.runs++; return nil }
func (j *countingJob) Collect(context.Context) error       { j.runs++; return nil }

func TestJobs(t *testing.T) {
	cfg := &config.Config{}
	cfg.History.Schedule = "*/60 * * * * *"
	cfg.Collector.Schedule = "*/5 * * * * *"
	history, collector := &countingJob{}, &countingJob{}

	jobs := Jobs(cfg, history, collector)
	require.Len(t, jobs, 1)
	assert.Equal(t, "history-import", jobs[0].Name)

	cfg.Collector.Enabled = true
	jobs = Jobs(cfg, history, collector)
	require.Len(t, jobs, 2)
	require.NoError(t, jobs[1].Run(context.Background()))
	assert.Equal(t, 1, collector.runs)
}

func TestNewCron(t *testing.T) {
	noop := func(context.Context) error { return nil }

	c, err := NewCron([]Job{{Name: "ok", Schedule: "*/5 * * * * *", Run: noop}})
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)

	_, err = NewCron([]Job{{Name: "bad", Schedule: "every tuesday", Run: noop}})
	assert.Error(t, err)
}
