package models

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/distribution_backend/config"
	"github.com/mmdatafocus/distribution_backend/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("github.com/mmdatafocus/distribution_backend/models")

func txContext(tx *gorm.DB) context.Context {
	if tx.Statement != nil && tx.Statement.Context != nil {
		return tx.Statement.Context
	}
	return context.Background()
}

func fulfillmentReason(orderNumber string) string {
	return fmt.Sprintf("Pedido %s confirmado", orderNumber)
}

func recordFulfillment(trigger string, err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	config.GetMetrics().FulfillmentsTotal.WithLabelValues(trigger, result).Inc()
}

// isOrderFulfilled checks the journal as well as the flag so a half-recorded
// history never fulfills twice.
func isOrderFulfilled(tx *gorm.DB, order *Order) (bool, error) {
	if order.IsFulfilled() {
		return true, nil
	}
	var count int64
	err := tx.Model(&StockMovement{}).
		Where("reference_kind = ? AND reference_id = ? AND kind IN ?",
			ReferenceKindOrder, order.ID, []MovementKind{MovementKindTransferIn, MovementKindTransferOut}).
		Count(&count).Error
	if err != nil {
		return false, wrapStorageErr(err)
	}
	return count > 0, nil
}

// fulfillOrderTx moves every line from the source pool to the TRANSF-<order number> batch
// on the target. order must be locked in tx. Any failure leaves tx for the caller to roll back.
func fulfillOrderTx(tx *gorm.DB, order *Order, actor Actor) ([]StockMovement, error) {
	ctx, span := tracer.Start(txContext(tx), "models.fulfillOrder")
	defer span.End()
	span.SetAttributes(
		attribute.Int("order_id", order.ID),
		attribute.String("order_number", order.OrderNumber),
	)
	tx = tx.WithContext(ctx)

	done, err := isOrderFulfilled(tx, order)
	if err != nil {
		return nil, err
	}
	if done {
		return nil, ErrAlreadyFulfilled
	}

	source, err := loadUnit(tx, order.SourceUnitId)
	if err != nil {
		return nil, err
	}

	reason := fulfillmentReason(order.OrderNumber)
	label := TransferBatchLabel(order.OrderNumber)
	ref := orderRef(order.ID)

	var movements []StockMovement
	for _, line := range linesByProduct(order.Lines) {
		plan, outs, err := Allocate(tx, line.ProductId, source, line.Quantity, MovementKindTransferOut, reason, ref, actor)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "allocation failed")
			return nil, err
		}
		movements = append(movements, outs...)

		target, err := lockBatch(tx, line.ProductId, order.TargetUnitId, label, earliestExpiry(plan))
		if err != nil {
			return nil, err
		}
		in, err := recordMovement(tx, target, MovementKindTransferIn, line.Quantity, reason, ref, actor)
		if err != nil {
			return nil, err
		}
		movements = append(movements, *in)
	}

	now := time.Now().UTC()
	if err := tx.Model(order).Update("fulfilled_at", now).Error; err != nil {
		return nil, wrapStorageErr(err)
	}
	order.FulfilledAt = &now
	span.SetAttributes(attribute.Int("movements", len(movements)))
	return movements, nil
}

// FulfillOrder runs the transfer for a confirmed order whose stock has not moved yet.
// Calling it again after success returns ErrAlreadyFulfilled and writes nothing.
func FulfillOrder(ctx context.Context, actor Actor, orderId int) (*Order, error) {
	release, err := utils.OrderLock(ctx, orderId, "models", "FulfillOrder")
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		order     *Order
		movements []StockMovement
	)
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = lockOrder(tx, orderId)
		if err != nil {
			return err
		}
		if !actor.ActsForHub(order.SourceUnitId) {
			return ErrForbidden
		}
		if order.IsFulfilled() {
			return ErrAlreadyFulfilled
		}
		if order.Status != OrderStatusConfirmed {
			return &InvalidTransitionError{Entity: "order", From: string(order.Status), Action: "fulfill"}
		}
		if !order.PaymentCondition.TransfersOnConfirm() && order.PaymentStatus != PaymentStatusTotal {
			return &InvalidTransitionError{Entity: "order", From: "payment " + string(order.PaymentStatus), Action: "fulfill"}
		}
		movements, err = fulfillOrderTx(tx, order, actor)
		return err
	})
	recordFulfillment("manual", err)
	if err != nil {
		return nil, err
	}

	events := movementAuditEvents(ctx, actor, movements)
	events = append(events, newAuditEvent(ctx, actor, "order.fulfill", "order", order.ID, map[string]interface{}{
		"order_number": order.OrderNumber,
		"batch_label":  TransferBatchLabel(order.OrderNumber),
	}))
	emitAuditEvents(ctx, events)
	return order, nil
}
