package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/distribution_backend/config"
	"github.com/mmdatafocus/distribution_backend/utils"
	"gorm.io/gorm"
)

type OrderAction string

const (
	OrderActionAuthorize OrderAction = "authorize"
	OrderActionConfirm   OrderAction = "confirm"
	OrderActionCancel    OrderAction = "cancel"
	OrderActionDelete    OrderAction = "delete"
)

// delete keeps the status; the row is only hidden.
var orderTransitions = map[OrderStatus]map[OrderAction]OrderStatus{
	OrderStatusPending: {
		OrderActionAuthorize: OrderStatusAuthorized,
		OrderActionCancel:    OrderStatusCanceled,
		OrderActionDelete:    OrderStatusPending,
	},
	OrderStatusAuthorized: {
		OrderActionConfirm: OrderStatusConfirmed,
	},
	OrderStatusCanceled: {
		OrderActionDelete: OrderStatusCanceled,
	},
}

// NextOrderStatus returns the status action leads to from, or an InvalidTransitionError.
func NextOrderStatus(from OrderStatus, action OrderAction) (OrderStatus, error) {
	if next, ok := orderTransitions[from][action]; ok {
		return next, nil
	}
	return "", &InvalidTransitionError{Entity: "order", From: string(from), Action: string(action)}
}

func canManageOrder(actor Actor, order *Order, action OrderAction) bool {
	switch action {
	case OrderActionAuthorize, OrderActionConfirm:
		return actor.ActsForHub(order.SourceUnitId)
	default:
		return actor.ActsForUnit(order.SourceUnitId) || actor.ActsForUnit(order.TargetUnitId)
	}
}

// transitionOrder runs one lifecycle step under the order lock and in one transaction.
// apply may move stock; its movements are audited after commit.
func transitionOrder(ctx context.Context, actor Actor, orderId int, action OrderAction, apply func(tx *gorm.DB, order *Order, now time.Time) ([]StockMovement, error)) (*Order, error) {
	release, err := utils.OrderLock(ctx, orderId, "models", "transitionOrder")
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		order     *Order
		from      OrderStatus
		movements []StockMovement
	)
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = lockOrder(tx, orderId)
		if err != nil {
			return err
		}
		if !canManageOrder(actor, order, action) {
			return ErrForbidden
		}
		from = order.Status
		next, err := NextOrderStatus(order.Status, action)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if apply != nil {
			movements, err = apply(tx, order, now)
			if err != nil {
				return err
			}
		}
		order.Status = next
		if err := tx.Model(order).Update("status", next).Error; err != nil {
			return wrapStorageErr(err)
		}
		return nil
	})

	m := config.GetMetrics().OrderTransitions
	if err != nil {
		m.WithLabelValues(string(action), "failed").Inc()
		return nil, err
	}
	m.WithLabelValues(string(action), "ok").Inc()

	events := movementAuditEvents(ctx, actor, movements)
	events = append(events, newAuditEvent(ctx, actor, "order."+string(action), "order", order.ID, map[string]interface{}{
		"order_number": order.OrderNumber,
		"from":         from,
		"to":           order.Status,
	}))
	emitAuditEvents(ctx, events)
	return order, nil
}

func AuthorizeOrder(ctx context.Context, actor Actor, orderId int) (*Order, error) {
	return transitionOrder(ctx, actor, orderId, OrderActionAuthorize, func(tx *gorm.DB, order *Order, now time.Time) ([]StockMovement, error) {
		id := actor.ID
		order.AuthorizedBy = &id
		order.AuthorizedAt = &now
		err := tx.Model(order).Updates(map[string]interface{}{
			"authorized_by": id,
			"authorized_at": now,
		}).Error
		return nil, wrapStorageErr(err)
	})
}

// ConfirmOrder confirms an authorized order. Orders that transfer on confirm, and deferred
// orders already paid in full, move stock in the same transaction; a shortage rolls it all back.
func ConfirmOrder(ctx context.Context, actor Actor, orderId int) (*Order, error) {
	return transitionOrder(ctx, actor, orderId, OrderActionConfirm, func(tx *gorm.DB, order *Order, now time.Time) ([]StockMovement, error) {
		id := actor.ID
		order.ConfirmedBy = &id
		order.ConfirmedAt = &now
		if err := tx.Model(order).Updates(map[string]interface{}{
			"confirmed_by": id,
			"confirmed_at": now,
		}).Error; err != nil {
			return nil, wrapStorageErr(err)
		}
		if !shouldFulfillOnConfirm(order) {
			return nil, nil
		}
		movements, err := fulfillOrderTx(tx, order, actor)
		recordFulfillment("confirm", err)
		return movements, err
	})
}

func shouldFulfillOnConfirm(order *Order) bool {
	if order.IsFulfilled() {
		return false
	}
	return order.PaymentCondition.TransfersOnConfirm() || order.PaymentStatus == PaymentStatusTotal
}

func CancelOrder(ctx context.Context, actor Actor, orderId int) (*Order, error) {
	return transitionOrder(ctx, actor, orderId, OrderActionCancel, func(tx *gorm.DB, order *Order, now time.Time) ([]StockMovement, error) {
		order.CanceledAt = &now
		err := tx.Model(order).Update("canceled_at", now).Error
		return nil, wrapStorageErr(err)
	})
}

// DeleteOrder hides a pending or canceled order. The row stays for audit.
func DeleteOrder(ctx context.Context, actor Actor, orderId int) (*Order, error) {
	return transitionOrder(ctx, actor, orderId, OrderActionDelete, func(tx *gorm.DB, order *Order, now time.Time) ([]StockMovement, error) {
		err := tx.Delete(order).Error
		return nil, wrapStorageErr(err)
	})
}
