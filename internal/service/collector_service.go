package service

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.uber.org/fx"

	"executor-metrics-backend/config"
	"executor-metrics-backend/internal/collector"
	"executor-metrics-backend/internal/kafka"
	"executor-metrics-backend/internal/reporter"
)

// CollectorService samples this machine and publishes it as an executor of
// the configured run, to Kafka and to the history directory.
type CollectorService interface {
	Collect(ctx context.Context) error
}

type collectorService struct {
	host      *collector.HostCollector
	assembler *reporter.Assembler
}

func NewCollectorService(lc fx.Lifecycle, cfg *config.Config, producer kafka.SampleProducer) CollectorService {
	assembler := reporter.NewAssembler(
		cfg.Collector.Localhost,
		producer,
		reporter.NewFileSink(cfg.History.Directory),
	)
	s := &collectorService{
		host:      collector.NewHostCollector(assembler, collector.ReadHost, cfg.Collector.AppID, cfg.Collector.ExecutorID),
		assembler: assembler,
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Flushing collector samples")
			return s.assembler.Close(ctx)
		},
	})
	return s
}

func (s *collectorService) Collect(ctx context.Context) error {
	return s.host.Collect(ctx)
}
