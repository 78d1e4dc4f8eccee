package analytics

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/gyaneshwarpardhi/tagmanager/internal/telemetry"
)

// KafkaRecorder publishes hits to a topic, keyed by container id so that
// one container's hits stay ordered within a partition.
type KafkaRecorder struct {
	writer *kafka.Writer
}

func NewKafkaRecorder(brokers []string, topic string) *KafkaRecorder {
	return &KafkaRecorder{writer: &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
		Async:    true,
	}}
}

func (*KafkaRecorder) Name() string { return "kafka" }

func (r *KafkaRecorder) Record(ctx context.Context, h telemetry.Hit) error {
	msg, err := hitMessage(h)
	if err != nil {
		return err
	}
	if err := r.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

func (r *KafkaRecorder) Close() error { return r.writer.Close() }

func hitMessage(h telemetry.Hit) (kafka.Message, error) {
	value, err := json.Marshal(h)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode hit: %w", err)
	}
	return kafka.Message{
		Key:   []byte(h.ContainerID),
		Value: value,
		Time:  h.Timestamp,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(h.Event)},
		},
	}, nil
}
