package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"executor-metrics-backend/config"
	"executor-metrics-backend/internal/model"
)

// SampleConsumer reads one run's live stream from its first offset.
type SampleConsumer interface {
	FetchSample(ctx context.Context) (*model.MetricSample, error)
	Close() error
}

// ConsumerFactory opens a fresh consumer per live session, so every viewer
// replays the run from the start.
type ConsumerFactory interface {
	NewSampleConsumer(runID string) SampleConsumer
}

type kafkaConsumerFactory struct {
	brokers     []string
	topicPrefix string
	maxWait     time.Duration
}

func NewKafkaConsumerFactory(cfg *config.Config) ConsumerFactory {
	return &kafkaConsumerFactory{
		brokers:     cfg.Kafka.Brokers,
		topicPrefix: cfg.Live.TopicPrefix,
		maxWait:     cfg.Live.MaxWait,
	}
}

type kafkaSampleConsumer struct {
	reader *kafka.Reader
}

func (f *kafkaConsumerFactory) NewSampleConsumer(runID string) SampleConsumer {
	topic := Topic(f.topicPrefix, runID)
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     f.brokers,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
		MaxWait:     f.maxWait,
		StartOffset: kafka.FirstOffset,
	})
	log.Info().Strs("brokers", f.brokers).Str("topic", topic).Msg("Kafka sample consumer initialized")
	return &kafkaSampleConsumer{reader: reader}
}

// FetchSample blocks for the next message. A message that is not a sample is
// returned as an error so the caller can log and continue.
func (c *kafkaSampleConsumer) FetchSample(ctx context.Context) (*model.MetricSample, error) {
	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		return nil, err
	}
	log.Trace().
		Str("topic", msg.Topic).
		Int("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Msg("Fetched message from Kafka")

	return decodeSample(msg)
}

func decodeSample(msg kafka.Message) (*model.MetricSample, error) {
	var sample model.MetricSample
	if err := json.Unmarshal(msg.Value, &sample); err != nil {
		log.Warn().Err(err).Int64("offset", msg.Offset).Msg("Failed to unmarshal Kafka message value")
		return nil, fmt.Errorf("%w: offset %d: %v", ErrUndecodable, msg.Offset, err)
	}
	if sample.Host == "" {
		return nil, fmt.Errorf("%w: offset %d: missing host", ErrUndecodable, msg.Offset)
	}
	return &sample, nil
}

func (c *kafkaSampleConsumer) Close() error {
	return c.reader.Close()
}
