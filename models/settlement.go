package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/distribution_backend/config"
	"github.com/mmdatafocus/distribution_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Settlement is a payment report against an order, backed by an uploaded receipt.
// Pending means neither validated nor rejected.
type Settlement struct {
	ID              int             `gorm:"primary_key" json:"id"`
	OrderId         int             `gorm:"not null;index" json:"order_id"`
	ReportedValue   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"reported_value"`
	ReceiptRef      string          `gorm:"size:255;not null" json:"receipt_ref"`
	IsValidated     bool            `gorm:"not null;default:false" json:"is_validated"`
	ValidatedBy     *int            `json:"validated_by"`
	ValidatedAt     *time.Time      `json:"validated_at"`
	RejectionReason *string         `gorm:"type:text" json:"rejection_reason"`
	RejectedBy      *int            `json:"rejected_by"`
	RejectedAt      *time.Time      `json:"rejected_at"`
	SubmittedBy     int             `gorm:"not null" json:"submitted_by"`
	SubmittedAt     time.Time       `gorm:"autoCreateTime" json:"submitted_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSettlement struct {
	ReportedValue decimal.Decimal `json:"reported_value" validate:"gt=0,scale4"`
	ReceiptRef    string          `json:"receipt_ref"`
}

func (s Settlement) IsPending() bool {
	return !s.IsValidated && s.RejectionReason == nil
}

func (s Settlement) IsRejected() bool {
	return !s.IsValidated && s.RejectionReason != nil
}

// BalanceSummary is the settlement position of one order.
type BalanceSummary struct {
	OrderId        int             `json:"order_id"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	TotalSubmitted decimal.Decimal `json:"total_submitted"`
	TotalValidated decimal.Decimal `json:"total_validated"`
	PendingBalance decimal.Decimal `json:"pending_balance"`
	PaymentStatus  PaymentStatus   `json:"payment_status"`
}

// computeBalance counts every settlement toward the pending balance. Rejected ones are
// left out only when releaseRejected is set.
func computeBalance(total decimal.Decimal, settlements []Settlement, releaseRejected bool) BalanceSummary {
	summary := BalanceSummary{
		TotalAmount:    total,
		TotalSubmitted: decimal.Zero,
		TotalValidated: decimal.Zero,
	}
	for _, s := range settlements {
		if s.IsValidated {
			summary.TotalValidated = summary.TotalValidated.Add(s.ReportedValue)
		}
		if releaseRejected && s.IsRejected() {
			continue
		}
		summary.TotalSubmitted = summary.TotalSubmitted.Add(s.ReportedValue)
	}
	summary.PendingBalance = total.Sub(summary.TotalSubmitted)
	return summary
}

// checkSubmission guards a new reported value against the pending balance.
func checkSubmission(balance BalanceSummary, value decimal.Decimal) error {
	if !value.IsPositive() {
		return fmt.Errorf("%w: reported value must be positive", ErrInvalidInput)
	}
	if value.GreaterThan(balance.PendingBalance) {
		return &ValueExceedsBalanceError{Value: value, Balance: balance.PendingBalance}
	}
	return nil
}

// paidAfterValidation is the status the order takes once value is validated on top of
// what is already validated.
func paidAfterValidation(total decimal.Decimal, validated decimal.Decimal, value decimal.Decimal) PaymentStatus {
	if total.Sub(validated.Add(value)).IsPositive() {
		return PaymentStatusPartial
	}
	return PaymentStatusTotal
}

func orderSettlements(tx *gorm.DB, orderId int) ([]Settlement, error) {
	var settlements []Settlement
	if err := tx.Where("order_id = ?", orderId).Order("id").Find(&settlements).Error; err != nil {
		return nil, wrapStorageErr(err)
	}
	return settlements, nil
}

func canSettle(actor Actor, order *Order) bool {
	return actor.ActsForUnit(order.SourceUnitId) || actor.ActsForUnit(order.TargetUnitId)
}

func SubmitSettlement(ctx context.Context, actor Actor, orderId int, input *NewSettlement) (*Settlement, error) {
	input.ReceiptRef = strings.TrimSpace(input.ReceiptRef)
	if input.ReceiptRef == "" {
		return nil, ErrReceiptRequired
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	release, err := utils.OrderLock(ctx, orderId, "models", "SubmitSettlement")
	if err != nil {
		return nil, err
	}
	defer release()

	var settlement Settlement
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, orderId)
		if err != nil {
			return err
		}
		if !canSettle(actor, order) {
			return ErrForbidden
		}
		if order.Status == OrderStatusCanceled {
			return &InvalidTransitionError{Entity: "order", From: string(order.Status), Action: "settle"}
		}
		if order.PaymentStatus == PaymentStatusExempt || order.PaymentStatus == PaymentStatusTotal {
			return ErrNotPayable
		}
		settlements, err := orderSettlements(tx, orderId)
		if err != nil {
			return err
		}
		balance := computeBalance(order.TotalAmount, settlements, config.ReleaseRejectedSettlements())
		if err := checkSubmission(balance, input.ReportedValue); err != nil {
			return err
		}
		settlement = Settlement{
			OrderId:       orderId,
			ReportedValue: input.ReportedValue,
			ReceiptRef:    input.ReceiptRef,
			SubmittedBy:   actor.ID,
		}
		return wrapStorageErr(tx.Create(&settlement).Error)
	})
	recordSettlementAction("submit", err)
	if err != nil {
		return nil, err
	}
	emitAudit(ctx, actor, "settlement.submit", "settlement", settlement.ID, map[string]interface{}{
		"order_id":       orderId,
		"reported_value": settlement.ReportedValue,
		"receipt_ref":    settlement.ReceiptRef,
	})
	return &settlement, nil
}

// ApproveSettlement validates a pending or rejected settlement. When that pays the order in
// full, stock is verified first and, for a confirmed order, transferred in the same transaction.
// A shortage aborts everything and leaves the settlement unvalidated.
func ApproveSettlement(ctx context.Context, actor Actor, settlementId int) (*Settlement, error) {
	found, err := utils.FetchModel[Settlement](ctx, settlementId)
	if err != nil {
		return nil, err
	}
	orderId := found.OrderId

	release, err := utils.OrderLock(ctx, orderId, "models", "ApproveSettlement")
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		settlement *Settlement
		order      *Order
		movements  []StockMovement
		fulfilled  bool
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
		settlement, err = utils.FetchModelForUpdate[Settlement](tx, settlementId)
		if err != nil {
			return wrapStorageErr(err)
		}
		if settlement.IsValidated {
			return ErrAlreadyValidated
		}
		if order.Status == OrderStatusCanceled {
			return &InvalidTransitionError{Entity: "order", From: string(order.Status), Action: "approve settlement"}
		}

		settlements, err := orderSettlements(tx, orderId)
		if err != nil {
			return err
		}
		releaseRejected := config.ReleaseRejectedSettlements()
		balance := computeBalance(order.TotalAmount, settlements, releaseRejected)
		// a released rejection no longer reserves its value, so it has to fit again
		if releaseRejected && settlement.IsRejected() {
			if err := checkSubmission(balance, settlement.ReportedValue); err != nil {
				return err
			}
		}
		status := paidAfterValidation(order.TotalAmount, balance.TotalValidated, settlement.ReportedValue)
		if order.PaymentStatus == PaymentStatusExempt {
			status = PaymentStatusExempt
		}

		if status == PaymentStatusTotal && !order.IsFulfilled() {
			if err := verifyOrderStock(tx, order); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		validatedBy := actor.ID
		if err := tx.Model(settlement).Updates(map[string]interface{}{
			"is_validated":     true,
			"validated_by":     validatedBy,
			"validated_at":     now,
			"rejection_reason": nil,
			"rejected_by":      nil,
			"rejected_at":      nil,
		}).Error; err != nil {
			return wrapStorageErr(err)
		}
		settlement.IsValidated = true
		settlement.ValidatedBy = &validatedBy
		settlement.ValidatedAt = &now
		settlement.RejectionReason = nil
		settlement.RejectedBy = nil
		settlement.RejectedAt = nil

		if status != order.PaymentStatus {
			if err := tx.Model(order).Update("payment_status", status).Error; err != nil {
				return wrapStorageErr(err)
			}
			order.PaymentStatus = status
		}

		if status == PaymentStatusTotal && order.Status == OrderStatusConfirmed && !order.IsFulfilled() {
			movements, err = fulfillOrderTx(tx, order, actor)
			recordFulfillment("settlement", err)
			if err != nil {
				return err
			}
			fulfilled = true
		}
		return nil
	})
	recordSettlementAction("approve", err)
	if err != nil {
		return nil, err
	}

	events := movementAuditEvents(ctx, actor, movements)
	events = append(events, newAuditEvent(ctx, actor, "settlement.approve", "settlement", settlement.ID, map[string]interface{}{
		"order_id":       orderId,
		"reported_value": settlement.ReportedValue,
		"payment_status": order.PaymentStatus,
		"fulfilled":      fulfilled,
	}))
	emitAuditEvents(ctx, events)
	return settlement, nil
}

// verifyOrderStock checks every line against the pooled source without writing.
func verifyOrderStock(tx *gorm.DB, order *Order) error {
	source, err := loadUnit(tx, order.SourceUnitId)
	if err != nil {
		return err
	}
	for _, line := range linesByProduct(order.Lines) {
		if _, err := CheckAvailability(tx, line.ProductId, source, line.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func RejectSettlement(ctx context.Context, actor Actor, settlementId int, reason string) (*Settlement, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	found, err := utils.FetchModel[Settlement](ctx, settlementId)
	if err != nil {
		return nil, err
	}

	release, err := utils.OrderLock(ctx, found.OrderId, "models", "RejectSettlement")
	if err != nil {
		return nil, err
	}
	defer release()

	var settlement *Settlement
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, found.OrderId)
		if err != nil {
			return err
		}
		if !actor.ActsForHub(order.SourceUnitId) {
			return ErrForbidden
		}
		settlement, err = utils.FetchModelForUpdate[Settlement](tx, settlementId)
		if err != nil {
			return wrapStorageErr(err)
		}
		if settlement.IsValidated {
			return &InvalidTransitionError{Entity: "settlement", From: "validated", Action: "reject"}
		}
		now := time.Now().UTC()
		rejector := actor.ID
		if err := tx.Model(settlement).Updates(map[string]interface{}{
			"rejection_reason": reason,
			"rejected_by":      rejector,
			"rejected_at":      now,
		}).Error; err != nil {
			return wrapStorageErr(err)
		}
		settlement.RejectionReason = &reason
		settlement.RejectedBy = &rejector
		settlement.RejectedAt = &now
		return nil
	})
	recordSettlementAction("reject", err)
	if err != nil {
		return nil, err
	}
	emitAudit(ctx, actor, "settlement.reject", "settlement", settlement.ID, map[string]interface{}{
		"order_id": settlement.OrderId,
		"reason":   reason,
	})
	return settlement, nil
}

// PendingBalance reports the order's settlement position.
func PendingBalance(ctx context.Context, orderId int) (*BalanceSummary, error) {
	order, err := GetOrder(ctx, orderId)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	settlements, err := orderSettlements(db.WithContext(ctx), orderId)
	if err != nil {
		return nil, err
	}
	summary := computeBalance(order.TotalAmount, settlements, config.ReleaseRejectedSettlements())
	summary.OrderId = orderId
	summary.PaymentStatus = order.PaymentStatus
	return &summary, nil
}

func ListSettlements(ctx context.Context, orderId int) ([]Settlement, error) {
	if err := utils.ValidateResourceId[Order](ctx, orderId); err != nil {
		return nil, err
	}
	db := config.GetDB()
	return orderSettlements(db.WithContext(ctx), orderId)
}

type SettlementQueueFilter struct {
	SourceUnitId *int
	Limit        int
	Offset       int
}

// ListPendingSettlements is the HUB review queue: settlements neither validated nor rejected,
// across the live orders the actor's hub supplies, oldest first.
func ListPendingSettlements(ctx context.Context, actor Actor, filter SettlementQueueFilter) ([]Settlement, error) {
	switch actor.Role {
	case ActorRoleUnrestricted:
	case ActorRoleHub:
		if filter.SourceUnitId != nil && *filter.SourceUnitId != actor.UnitId {
			return nil, ErrForbidden
		}
		hub := actor.UnitId
		filter.SourceUnitId = &hub
	default:
		return nil, ErrForbidden
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).
		Joins("JOIN orders ON orders.id = settlements.order_id AND orders.deleted_at IS NULL").
		Where("settlements.is_validated = ? AND settlements.rejection_reason IS NULL", false)
	if filter.SourceUnitId != nil {
		dbCtx = dbCtx.Where("orders.source_unit_id = ?", *filter.SourceUnitId)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var results []Settlement
	err := dbCtx.Order("settlements.id").Limit(limit).Offset(filter.Offset).Find(&results).Error
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	return results, nil
}

func recordSettlementAction(action string, err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	config.GetMetrics().SettlementActions.WithLabelValues(action, result).Inc()
}
