package workflow

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/mmdatafocus/distribution_backend/config"
	"github.com/mmdatafocus/distribution_backend/models"
	"github.com/sirupsen/logrus"
)

// MultiSink delivers every event to each child. One failing child does not stop the others.
type MultiSink struct {
	sinks []models.AuditSink
}

func NewMultiSink(sinks ...models.AuditSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Name() string {
	names := make([]string, 0, len(m.sinks))
	for _, s := range m.sinks {
		names = append(names, s.Name())
	}
	return strings.Join(names, "+")
}

func (m *MultiSink) Publish(ctx context.Context, event models.AuditEvent) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

type logSink struct {
	logger *logrus.Logger
}

func NewLogSink(logger *logrus.Logger) models.AuditSink {
	return &logSink{logger: logger}
}

func (s *logSink) Name() string { return "log" }

func (s *logSink) Publish(ctx context.Context, event models.AuditEvent) error {
	s.logger.WithFields(logrus.Fields{
		"module":         "audit",
		"event_id":       event.ID,
		"actor_id":       event.ActorId,
		"action":         event.Action,
		"entity_kind":    event.EntityKind,
		"entity_id":      event.EntityId,
		"correlation_id": event.CorrelationId,
	}).Info("audit event")
	return nil
}

// BuildAuditSink assembles the sinks named by AUDIT_SINKS. Unknown names and remote sinks
// without configuration are skipped with a warning.
func BuildAuditSink(names []string) *MultiSink {
	logger := config.GetLogger()
	var sinks []models.AuditSink
	for _, name := range names {
		switch name {
		case "db":
			sinks = append(sinks, models.NewDBAuditSink())
		case "log":
			sinks = append(sinks, NewLogSink(logger))
		case "pubsub":
			sinks = append(sinks, WithBreaker(NewPubSubSink(config.AuditTopicName()), DefaultBreakerConfig()))
		case "kafka":
			brokers := config.KafkaBrokers()
			if len(brokers) == 0 {
				config.LogWarn(logger, "workflow", "BuildAuditSink", "kafka sink requested without KAFKA_BROKERS", name)
				continue
			}
			sinks = append(sinks, WithBreaker(NewKafkaSink(brokers, config.KafkaAuditTopic()), DefaultBreakerConfig()))
		default:
			config.LogWarn(logger, "workflow", "BuildAuditSink", "unknown audit sink", name)
		}
	}
	return NewMultiSink(sinks...)
}
