package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mmdatafocus/distribution_backend/models"
	"github.com/segmentio/kafka-go"
)

type kafkaSink struct {
	writer *kafka.Writer
}

func NewKafkaSink(brokers []string, topic string) models.AuditSink {
	return &kafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (s *kafkaSink) Name() string { return "kafka" }

// events of one entity share a key so they stay ordered within a partition
func (s *kafkaSink) Publish(ctx context.Context, event models.AuditEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("%s:%d", event.EntityKind, event.EntityId)),
		Value: data,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-id", Value: []byte(event.ID)},
			{Key: "action", Value: []byte(event.Action)},
		},
	}
	if event.CorrelationId != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: "correlation-id", Value: []byte(event.CorrelationId)})
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish audit event to %s: %w", s.writer.Topic, err)
	}
	return nil
}

func (s *kafkaSink) Close() error {
	return s.writer.Close()
}
