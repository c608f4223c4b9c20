package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mmdatafocus/distribution_backend/config"
	"github.com/mmdatafocus/distribution_backend/models"
	"github.com/sony/gobreaker"
)

var ErrSinkUnavailable = errors.New("audit sink unavailable")

type BreakerConfig struct {
	MaxRequests           uint32
	Interval              time.Duration
	Timeout               time.Duration
	FailureThreshold      uint32
	FailureRatioThreshold float64
	MinRequestsToTrip     uint32
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:           3,
		Interval:              time.Minute,
		Timeout:               30 * time.Second,
		FailureThreshold:      5,
		FailureRatioThreshold: 0.5,
		MinRequestsToTrip:     10,
	}
}

// breakerSink stops calling a remote sink that keeps failing and lets it recover after Timeout.
type breakerSink struct {
	next models.AuditSink
	cb   *gobreaker.CircuitBreaker
}

// WithBreaker guards next with a circuit breaker named after it.
func WithBreaker(next models.AuditSink, cfg BreakerConfig) models.AuditSink {
	name := "audit_" + next.Name()
	gauge := config.GetMetrics().CircuitBreakerOpen.WithLabelValues(name)
	gauge.Set(0)
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= cfg.FailureThreshold {
				return true
			}
			if counts.Requests >= cfg.MinRequestsToTrip {
				ratio := float64(counts.TotalFailures) / float64(counts.Requests)
				return ratio >= cfg.FailureRatioThreshold
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			config.LogWarn(config.GetLogger(), "workflow", "breakerSink", "circuit breaker state changed", map[string]string{
				"name": name,
				"from": from.String(),
				"to":   to.String(),
			})
			if to == gobreaker.StateOpen {
				gauge.Set(1)
			} else {
				gauge.Set(0)
			}
		},
	}
	return &breakerSink{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (s *breakerSink) Name() string {
	return s.next.Name()
}

func (s *breakerSink) Publish(ctx context.Context, event models.AuditEvent) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.next.Publish(ctx, event)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s: %v", ErrSinkUnavailable, s.next.Name(), err)
	}
	return err
}

func (s *breakerSink) State() gobreaker.State {
	return s.cb.State()
}

func (s *breakerSink) Close() error {
	if c, ok := s.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
