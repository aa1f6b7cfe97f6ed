package events

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// KafkaSink publishes match.created events to a Kafka topic, keyed by match
// ID so downstream consumers can dedupe redundant deliveries.
type KafkaSink struct {
	writer *kafka.Writer
	logger *logrus.Entry
}

// NewKafkaSink creates a sink writing to the given brokers and topic
func NewKafkaSink(brokers []string, topic string, logger *logrus.Logger) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
		logger: logger.WithField("component", "kafka_sink"),
	}
}

// MatchCreated publishes the event
func (s *KafkaSink) MatchCreated(ctx context.Context, event MatchCreated) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.MatchID),
		Value: value,
	})
	if err != nil {
		s.logger.WithError(err).WithField("match_id", event.MatchID).Error("failed to publish match.created")
		return err
	}
	return nil
}

// Close releases the underlying writer
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
