package models

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/distribution_backend/config"
	"github.com/mmdatafocus/distribution_backend/utils"
	"go.opentelemetry.io/otel/trace"
)

const auditPublishTimeout = 10 * time.Second

// AuditEvent is emitted after a change commits. Delivery is best effort.
type AuditEvent struct {
	ID            string      `json:"id"`
	ActorId       int         `json:"actor_id"`
	ActorName     string      `json:"actor_name"`
	ActorRole     ActorRole   `json:"actor_role"`
	Action        string      `json:"action"`
	EntityKind    string      `json:"entity_kind"`
	EntityId      int         `json:"entity_id"`
	Payload       interface{} `json:"payload,omitempty"`
	CorrelationId string      `json:"correlation_id"`
	OccurredAt    time.Time   `json:"occurred_at"`
}

type AuditSink interface {
	Name() string
	Publish(ctx context.Context, event AuditEvent) error
}

// AuditLog is the row the database sink writes.
type AuditLog struct {
	ID            int       `gorm:"primary_key" json:"id"`
	EventId       string    `gorm:"size:36;not null;uniqueIndex" json:"event_id"`
	ActorId       int       `gorm:"not null;index" json:"actor_id"`
	ActorName     string    `gorm:"size:100" json:"actor_name"`
	Action        string    `gorm:"size:64;not null;index" json:"action"`
	EntityKind    string    `gorm:"size:32;not null;index:idx_audit_entity,priority:1" json:"entity_kind"`
	EntityId      int       `gorm:"not null;index:idx_audit_entity,priority:2" json:"entity_id"`
	Payload       string    `gorm:"type:text" json:"payload"`
	CorrelationId string    `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type dbAuditSink struct{}

func NewDBAuditSink() AuditSink {
	return dbAuditSink{}
}

func (dbAuditSink) Name() string { return "db" }

func (dbAuditSink) Publish(ctx context.Context, event AuditEvent) error {
	payload := ""
	if event.Payload != nil {
		raw, err := json.Marshal(event.Payload)
		if err != nil {
			return err
		}
		payload = string(raw)
	}
	row := AuditLog{
		EventId:       event.ID,
		ActorId:       event.ActorId,
		ActorName:     event.ActorName,
		Action:        event.Action,
		EntityKind:    event.EntityKind,
		EntityId:      event.EntityId,
		Payload:       payload,
		CorrelationId: event.CorrelationId,
	}
	db := config.GetDB()
	if db == nil {
		return ErrStorageUnavailable
	}
	return db.WithContext(ctx).Create(&row).Error
}

var (
	auditMu       sync.RWMutex
	auditSink     AuditSink = dbAuditSink{}
	auditInFlight sync.WaitGroup
)

// SetAuditSink replaces the process-wide sink. nil disables auditing.
func SetAuditSink(sink AuditSink) {
	auditMu.Lock()
	defer auditMu.Unlock()
	auditSink = sink
}

func currentAuditSink() AuditSink {
	auditMu.RLock()
	defer auditMu.RUnlock()
	return auditSink
}

func newAuditEvent(ctx context.Context, actor Actor, action string, entityKind string, entityId int, payload interface{}) AuditEvent {
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	if sc := trace.SpanContextFromContext(ctx); correlationId == "" && sc.HasTraceID() {
		correlationId = sc.TraceID().String()
	}
	return AuditEvent{
		ID:            uuid.NewString(),
		ActorId:       actor.ID,
		ActorName:     actor.Name,
		ActorRole:     actor.Role,
		Action:        action,
		EntityKind:    entityKind,
		EntityId:      entityId,
		Payload:       payload,
		CorrelationId: correlationId,
		OccurredAt:    time.Now().UTC(),
	}
}

func movementAuditEvents(ctx context.Context, actor Actor, movements []StockMovement) []AuditEvent {
	events := make([]AuditEvent, 0, len(movements))
	for _, mv := range movements {
		events = append(events, newAuditEvent(ctx, actor, "movement."+string(mv.Kind), "stock_movement", mv.ID, mv))
	}
	return events
}

func emitAudit(ctx context.Context, actor Actor, action string, entityKind string, entityId int, payload interface{}) {
	emitAuditEvents(ctx, []AuditEvent{newAuditEvent(ctx, actor, action, entityKind, entityId, payload)})
}

// emitAuditEvents hands events to the sink in the background. Failures are logged
// and never reach the caller.
func emitAuditEvents(ctx context.Context, events []AuditEvent) {
	sink := currentAuditSink()
	if sink == nil || len(events) == 0 {
		return
	}
	detached := context.WithoutCancel(ctx)
	auditInFlight.Add(1)
	go func() {
		defer auditInFlight.Done()
		publishAuditEvents(detached, sink, events)
	}()
}

func publishAuditEvents(ctx context.Context, sink AuditSink, events []AuditEvent) {
	logger := config.GetLogger()
	counter := config.GetMetrics().AuditEventsTotal
	for _, event := range events {
		pubCtx, cancel := context.WithTimeout(ctx, auditPublishTimeout)
		err := sink.Publish(pubCtx, event)
		cancel()
		if err != nil {
			counter.WithLabelValues(sink.Name(), "failed").Inc()
			config.LogError(logger, "models", "publishAuditEvents",
				fmt.Sprintf("%s %s:%d", event.Action, event.EntityKind, event.EntityId), event.ID, err)
			continue
		}
		counter.WithLabelValues(sink.Name(), "ok").Inc()
	}
}

// WaitForAudit blocks until queued audit events are delivered or timeout passes.
// It reports whether everything drained.
func WaitForAudit(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		auditInFlight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

type AuditLogFilter struct {
	EntityKind *string
	EntityId   *int
	ActorId    *int
	Limit      int
}

func ListAuditLogs(ctx context.Context, filter AuditLogFilter) ([]AuditLog, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx)
	if filter.EntityKind != nil {
		dbCtx = dbCtx.Where("entity_kind = ?", *filter.EntityKind)
	}
	if filter.EntityId != nil {
		dbCtx = dbCtx.Where("entity_id = ?", *filter.EntityId)
	}
	if filter.ActorId != nil {
		dbCtx = dbCtx.Where("actor_id = ?", *filter.ActorId)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var logs []AuditLog
	if err := dbCtx.Order("id DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, wrapStorageErr(err)
	}
	return logs, nil
}
