package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"go.uber.org/fx"

	"executor-metrics-backend/config"
	"executor-metrics-backend/internal/model"
)

// SampleProducer publishes assembled samples to the run topic
// `<topicPrefix><appId>`.
type SampleProducer interface {
	Publish(ctx context.Context, appID string, sample model.MetricSample) error
	Close() error
}

type kafkaSampleProducer struct {
	writer      *kafka.Writer
	topicPrefix string
}

func NewKafkaSampleProducer(lc fx.Lifecycle, cfg *config.Config) (SampleProducer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		log.Error().Msg("Kafka brokers are not configured.")
		return nil, errors.New("kafka configuration missing")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Kafka.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.Kafka.BatchSize,
		BatchTimeout:           cfg.Kafka.BatchTimeout,
		AllowAutoTopicCreation: true,
	}
	p := &kafkaSampleProducer{
		writer:      writer,
		topicPrefix: cfg.Live.TopicPrefix,
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Closing Kafka producer")
			return p.Close()
		},
	})
	log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic_prefix", cfg.Live.TopicPrefix).Msg("Kafka producer initialized")
	return p, nil
}

func (p *kafkaSampleProducer) Publish(ctx context.Context, appID string, sample model.MetricSample) error {
	value, err := json.Marshal(sample)
	if err != nil {
		log.Error().Err(err).Str("host", sample.Host).Msg("Failed to marshal sample for Kafka")
		return fmt.Errorf("failed to marshal sample: %w", err)
	}
	topic := Topic(p.topicPrefix, appID)
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(sample.Host),
		Value: value,
	})
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to write sample to Kafka")
		return err
	}
	log.Debug().Str("topic", topic).Str("host", sample.Host).Msg("Produced sample to Kafka")
	return nil
}

func (p *kafkaSampleProducer) Close() error {
	return p.writer.Close()
}

// Topic names the live stream of a run.
func Topic(prefix, runID string) string {
	return prefix + runID
}
