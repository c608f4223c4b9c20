package workflow

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/mmdatafocus/distribution_backend/config"
	"github.com/mmdatafocus/distribution_backend/models"
)

type pubsubSink struct {
	topic string
}

func NewPubSubSink(topic string) models.AuditSink {
	return &pubsubSink{topic: topic}
}

func (s *pubsubSink) Name() string { return "pubsub" }

func (s *pubsubSink) Publish(ctx context.Context, event models.AuditEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = config.PublishPubSub(ctx, s.topic, data, auditAttributes(event))
	return err
}

// auditAttributes lets subscribers filter without decoding the body.
func auditAttributes(event models.AuditEvent) map[string]string {
	return map[string]string{
		"event_id":       event.ID,
		"action":         event.Action,
		"entity_kind":    event.EntityKind,
		"entity_id":      strconv.Itoa(event.EntityId),
		"correlation_id": event.CorrelationId,
	}
}
