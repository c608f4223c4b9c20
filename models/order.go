package models

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mmdatafocus/distribution_backend/config"
	"github.com/mmdatafocus/distribution_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Order struct {
	ID               int              `gorm:"primary_key" json:"id"`
	OrderNumber      string           `gorm:"size:32;not null;uniqueIndex" json:"order_number"`
	SourceUnitId     int              `gorm:"not null;index" json:"source_unit_id"`
	TargetUnitId     int              `gorm:"not null;index" json:"target_unit_id"`
	Status           OrderStatus      `gorm:"size:16;not null;index" json:"status"`
	PaymentCondition PaymentCondition `gorm:"size:16;not null" json:"payment_condition"`
	PaymentStatus    PaymentStatus    `gorm:"size:16;not null" json:"payment_status"`
	TotalAmount      decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"total_amount"`
	Notes            string           `gorm:"type:text" json:"notes"`
	CreatedBy        int              `gorm:"not null" json:"created_by"`
	AuthorizedBy     *int             `json:"authorized_by"`
	AuthorizedAt     *time.Time       `json:"authorized_at"`
	ConfirmedBy      *int             `json:"confirmed_by"`
	ConfirmedAt      *time.Time       `json:"confirmed_at"`
	CanceledAt       *time.Time       `json:"canceled_at"`
	FulfilledAt      *time.Time       `json:"fulfilled_at"`
	Lines            []OrderLine      `gorm:"foreignKey:OrderId" json:"lines"`
	CreatedAt        time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt   `gorm:"index" json:"-"`
}

type OrderLine struct {
	ID        int             `gorm:"primary_key" json:"id"`
	OrderId   int             `gorm:"not null;index" json:"order_id"`
	ProductId int             `gorm:"not null;index" json:"product_id"`
	Quantity  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	LineTotal decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"line_total"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewOrder struct {
	SourceUnitId     int              `json:"source_unit_id" validate:"required,gt=0"`
	TargetUnitId     int              `json:"target_unit_id" validate:"required,gt=0"`
	PaymentCondition PaymentCondition `json:"payment_condition" validate:"required,oneof=cash credit consignment donation"`
	Notes            string           `json:"notes"`
	Lines            []NewOrderLine   `json:"lines" validate:"required,min=1,dive"`
}

type NewOrderLine struct {
	ProductId int              `json:"product_id" validate:"required,gt=0"`
	Quantity  decimal.Decimal  `json:"quantity" validate:"gt=0,scale4"`
	UnitPrice *decimal.Decimal `json:"unit_price" validate:"omitempty,scale4"`
}

// IsFulfilled is true once stock has moved for the order.
func (o Order) IsFulfilled() bool {
	return o.FulfilledAt != nil
}

// sumLines recomputes line totals at column scale and returns their sum.
func sumLines(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for i := range lines {
		lines[i].LineTotal = lines[i].Quantity.Mul(lines[i].UnitPrice).Round(utils.AmountScale)
		total = total.Add(lines[i].LineTotal)
	}
	return total
}

func initialPaymentStatus(condition PaymentCondition) PaymentStatus {
	if condition == PaymentConditionDonation {
		return PaymentStatusExempt
	}
	return PaymentStatusPending
}

func (input *NewOrder) validate(actor Actor) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	for _, l := range input.Lines {
		if l.UnitPrice != nil && l.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: unit price cannot be negative", ErrInvalidInput)
		}
	}
	if input.SourceUnitId == input.TargetUnitId {
		return ErrSameUnit
	}
	switch actor.Role {
	case ActorRoleUnrestricted:
	case ActorRoleHub:
		if actor.UnitId != input.SourceUnitId {
			return ErrForbidden
		}
	case ActorRoleBranch:
		if actor.UnitId != input.TargetUnitId {
			return ErrForbidden
		}
	default:
		return ErrForbidden
	}
	return nil
}

func CreateOrder(ctx context.Context, actor Actor, input *NewOrder) (*Order, error) {
	if err := input.validate(actor); err != nil {
		return nil, err
	}

	var order Order
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		source, err := loadUnit(tx, input.SourceUnitId)
		if err != nil {
			if errors.Is(err, ErrUnknownUnit) {
				return ErrInvalidSource
			}
			return err
		}
		if !source.IsHub() || !utils.IsTrue(source.IsActive) {
			return ErrInvalidSource
		}
		target, err := loadUnit(tx, input.TargetUnitId)
		if err != nil {
			return err
		}
		if !utils.IsTrue(target.IsActive) {
			return ErrUnknownUnit
		}

		lines := make([]OrderLine, 0, len(input.Lines))
		for _, l := range input.Lines {
			product, err := loadActiveProduct(tx, l.ProductId)
			if err != nil {
				return err
			}
			price := product.DefaultPrice
			if l.UnitPrice != nil {
				price = *l.UnitPrice
			}
			lines = append(lines, OrderLine{
				ProductId: l.ProductId,
				Quantity:  l.Quantity,
				UnitPrice: price,
			})
		}

		now := time.Now().UTC()
		number, err := GenerateOrderNumber(tx, now)
		if err != nil {
			return err
		}

		order = Order{
			OrderNumber:      number,
			SourceUnitId:     source.ID,
			TargetUnitId:     target.ID,
			Status:           OrderStatusPending,
			PaymentCondition: input.PaymentCondition,
			PaymentStatus:    initialPaymentStatus(input.PaymentCondition),
			TotalAmount:      sumLines(lines),
			Notes:            strings.TrimSpace(input.Notes),
			CreatedBy:        actor.ID,
			Lines:            lines,
		}
		if err := tx.Create(&order).Error; err != nil {
			return wrapStorageErr(err)
		}
		return nil
	})
	if err != nil {
		config.GetMetrics().OrderTransitions.WithLabelValues("create", "failed").Inc()
		return nil, err
	}

	config.GetMetrics().OrderTransitions.WithLabelValues("create", "ok").Inc()
	emitAudit(ctx, actor, "order.create", "order", order.ID, map[string]interface{}{
		"order_number": order.OrderNumber,
		"total_amount": order.TotalAmount,
		"status":       order.Status,
	})
	return &order, nil
}

func GetOrder(ctx context.Context, id int) (*Order, error) {
	db := config.GetDB()
	var order Order
	err := db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&order, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, wrapStorageErr(err)
	}
	return &order, nil
}

type OrderFilter struct {
	Status       *OrderStatus
	// PaymentStatuses narrows to any of the listed statuses; pending and partial give the
	// orders still awaiting payment.
	PaymentStatuses []PaymentStatus
	SourceUnitId *int
	TargetUnitId *int
	Limit        int
	Offset       int
}

// ListOrders returns orders the actor may see, newest first. Deleted orders are excluded.
func ListOrders(ctx context.Context, actor Actor, filter OrderFilter) ([]*Order, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx)
	if filter.Status != nil {
		dbCtx = dbCtx.Where("status = ?", *filter.Status)
	}
	if len(filter.PaymentStatuses) > 0 {
		dbCtx = dbCtx.Where("payment_status IN ?", filter.PaymentStatuses)
	}
	if filter.SourceUnitId != nil {
		dbCtx = dbCtx.Where("source_unit_id = ?", *filter.SourceUnitId)
	}
	if filter.TargetUnitId != nil {
		dbCtx = dbCtx.Where("target_unit_id = ?", *filter.TargetUnitId)
	}
	if actor.Role != ActorRoleUnrestricted {
		dbCtx = dbCtx.Where("source_unit_id = ? OR target_unit_id = ?", actor.UnitId, actor.UnitId)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var results []*Order
	err := dbCtx.Order("id DESC").Limit(limit).Offset(filter.Offset).Find(&results).Error
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	return results, nil
}

// lockOrder reads a live order FOR UPDATE together with its lines ordered by product.
func lockOrder(tx *gorm.DB, id int) (*Order, error) {
	var order Order
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, wrapStorageErr(err)
	}
	if err := tx.Where("order_id = ?", id).Order("id").Find(&order.Lines).Error; err != nil {
		return nil, wrapStorageErr(err)
	}
	return &order, nil
}

// linesByProduct orders lines so concurrent fulfillments lock batches in the same order.
func linesByProduct(lines []OrderLine) []OrderLine {
	sorted := append([]OrderLine(nil), lines...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ProductId < sorted[j].ProductId })
	return sorted
}
