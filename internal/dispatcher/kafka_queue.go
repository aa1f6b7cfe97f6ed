package dispatcher

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// KafkaQueue is a Queue backed by a Kafka topic. Offsets are committed only
// through the ack returned by Receive, so a signal consumed by a worker that
// crashes before processing is redelivered to the group.
type KafkaQueue struct {
	writer *kafka.Writer
	reader *kafka.Reader
	logger *logrus.Entry
}

// NewKafkaQueue creates a queue on the given brokers and topic. groupID
// scopes the consumer group used by Receive.
func NewKafkaQueue(brokers []string, topic, groupID string, logger *logrus.Logger) *KafkaQueue {
	return &KafkaQueue{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		}),
		logger: logger.WithField("component", "kafka_queue"),
	}
}

// Publish appends a signal to the topic, keyed by entity ID
func (q *KafkaQueue) Publish(ctx context.Context, sig Signal) error {
	value, err := json.Marshal(sig)
	if err != nil {
		return err
	}
	return q.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(sig.EntityID),
		Value: value,
	})
}

// Receive blocks for the next signal. The offset is not committed until the
// returned ack runs. Malformed records are logged, committed, and skipped
// rather than poisoning the consumer.
func (q *KafkaQueue) Receive(ctx context.Context) (Signal, Ack, error) {
	for {
		msg, err := q.reader.FetchMessage(ctx)
		if err != nil {
			return Signal{}, nil, err
		}
		var sig Signal
		if err := json.Unmarshal(msg.Value, &sig); err != nil {
			q.logger.WithError(err).WithField("offset", msg.Offset).Warn("skipping malformed fallback signal")
			if cerr := q.reader.CommitMessages(ctx, msg); cerr != nil {
				q.logger.WithError(cerr).WithField("offset", msg.Offset).Warn("failed to commit malformed record")
			}
			continue
		}
		ack := func(ctx context.Context) error {
			return q.reader.CommitMessages(ctx, msg)
		}
		return sig, ack, nil
	}
}

// Close releases the reader and writer
func (q *KafkaQueue) Close() error {
	rerr := q.reader.Close()
	werr := q.writer.Close()
	if rerr != nil {
		return rerr
	}
	return werr
}
