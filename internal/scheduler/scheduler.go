package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"

	"executor-metrics-backend/config"
	"executor-metrics-backend/internal/service"
)

// Job is one scheduled unit of work.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

// Jobs lists the cron jobs enabled by cfg.
func Jobs(cfg *config.Config, history service.HistoryImportService, collector service.CollectorService) []Job {
	jobs := []Job{{
		Name:     "history-import",
		Schedule: cfg.History.Schedule,
		Run:      history.ImportHistory,
	}}
	if cfg.Collector.Enabled {
		jobs = append(jobs, Job{
			Name:     "host-collector",
			Schedule: cfg.Collector.Schedule,
			Run:      collector.Collect,
		})
	}
	return jobs
}

func NewCron(jobs []Job) (*cron.Cron, error) {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.DowOptional | cron.Descriptor)
	c := cron.New(cron.WithParser(parser))

	for _, job := range jobs {
		job := job
		_, err := c.AddFunc(job.Schedule, func() {
			if err := job.Run(context.Background()); err != nil {
				log.Error().Err(err).Str("job", job.Name).Msg("Scheduled job failed")
			}
		})
		if err != nil {
			log.Error().Err(err).Str("job", job.Name).Str("schedule", job.Schedule).Msg("Failed to add cron job")
			return nil, err
		}
		log.Info().Str("job", job.Name).Str("schedule", job.Schedule).Msg("Scheduled job")
	}
	return c, nil
}

func NewScheduler(lc fx.Lifecycle, cfg *config.Config, history service.HistoryImportService, collector service.CollectorService) (*cron.Cron, error) {
	c, err := NewCron(Jobs(cfg, history, collector))
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msg("Starting cron scheduler")
			c.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Stopping cron scheduler...")
			stopCtx := c.Stop()
			select {
			case <-stopCtx.Done():
				log.Info().Msg("Cron scheduler stopped gracefully.")
				return nil
			case <-ctx.Done():
				log.Error().Msg("Context cancelled while waiting for cron scheduler to stop.")
				return ctx.Err()
			}
		},
	})

	return c, nil
}
