package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/distribution_backend/config"
	"github.com/mmdatafocus/distribution_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type NewStockEntry struct {
	ProductId  int             `json:"product_id" validate:"required,gt=0"`
	UnitId     int             `json:"unit_id" validate:"required,gt=0"`
	BatchLabel string          `json:"batch_label" validate:"required,max=100"`
	Quantity   decimal.Decimal `json:"quantity" validate:"gt=0,scale4"`
	ExpiryDate *time.Time      `json:"expiry_date"`
	Reason     string          `json:"reason"`
}

type NewStockExit struct {
	ProductId int             `json:"product_id" validate:"required,gt=0"`
	UnitId    int             `json:"unit_id" validate:"required,gt=0"`
	Quantity  decimal.Decimal `json:"quantity" validate:"gt=0,scale4"`
	Reason    string          `json:"reason" validate:"required"`
}

// NewStockAdjustment sets a batch to an absolute counted quantity.
type NewStockAdjustment struct {
	ProductId   int             `json:"product_id" validate:"required,gt=0"`
	UnitId      int             `json:"unit_id" validate:"required,gt=0"`
	BatchLabel  string          `json:"batch_label" validate:"required,max=100"`
	NewQuantity decimal.Decimal `json:"new_quantity" validate:"gte=0,scale4"`
	ExpiryDate  *time.Time      `json:"expiry_date"`
	Reason      string          `json:"reason" validate:"required"`
}

// loadStockUnit checks the unit exists, is active and that the actor may move its stock.
func loadStockUnit(tx *gorm.DB, actor Actor, unitId int) (*SupplyingUnit, error) {
	if !actor.ActsForUnit(unitId) {
		return nil, ErrForbidden
	}
	unit, err := loadUnit(tx, unitId)
	if err != nil {
		return nil, err
	}
	if !utils.IsTrue(unit.IsActive) {
		return nil, ErrInactiveUnit
	}
	return unit, nil
}

// runStockCommand wraps fn in one transaction and audits its movements after commit.
func runStockCommand(ctx context.Context, actor Actor, fn func(tx *gorm.DB) ([]StockMovement, error)) ([]StockMovement, error) {
	var movements []StockMovement
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		movements, err = fn(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	emitAuditEvents(ctx, movementAuditEvents(ctx, actor, movements))
	return movements, nil
}

// RecordStockEntry credits a batch with received goods.
func RecordStockEntry(ctx context.Context, actor Actor, input *NewStockEntry) (*StockMovement, error) {
	input.BatchLabel = strings.TrimSpace(input.BatchLabel)
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if strings.HasPrefix(input.BatchLabel, transferBatchPrefix) {
		return nil, ErrReservedBatchLabel
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		reason = "Entrada manual"
	}
	movements, err := runStockCommand(ctx, actor, func(tx *gorm.DB) ([]StockMovement, error) {
		if _, err := loadStockUnit(tx, actor, input.UnitId); err != nil {
			return nil, err
		}
		if _, err := loadActiveProduct(tx, input.ProductId); err != nil {
			return nil, err
		}
		batch, err := lockBatch(tx, input.ProductId, input.UnitId, input.BatchLabel, input.ExpiryDate)
		if err != nil {
			return nil, err
		}
		mv, err := recordMovement(tx, batch, MovementKindEntry, input.Quantity, reason, MovementRef{}, actor)
		if err != nil {
			return nil, err
		}
		return []StockMovement{*mv}, nil
	})
	if err != nil {
		return nil, err
	}
	return &movements[0], nil
}

// RecordStockExit removes goods from one unit, soonest-expiring batches first.
// Unlike order fulfillment it never draws on other hubs.
func RecordStockExit(ctx context.Context, actor Actor, input *NewStockExit) ([]StockMovement, error) {
	input.Reason = strings.TrimSpace(input.Reason)
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	return runStockCommand(ctx, actor, func(tx *gorm.DB) ([]StockMovement, error) {
		if _, err := loadStockUnit(tx, actor, input.UnitId); err != nil {
			return nil, err
		}
		if err := utils.ValidateResourceId[Product](txContext(tx), input.ProductId); err != nil {
			return nil, ErrUnknownProduct
		}
		rows, err := lockCandidates(tx, input.ProductId, []int{input.UnitId})
		if err != nil {
			return nil, err
		}
		plan, err := PlanAllocation(rows, input.Quantity)
		if err != nil {
			var short *InsufficientStockError
			if errors.As(err, &short) {
				short.ProductId = input.ProductId
			}
			return nil, err
		}
		return applyPlan(tx, rows, plan, MovementKindExit, input.Reason, MovementRef{}, actor)
	})
}

// AdjustStock records the difference between the counted and the booked quantity.
func AdjustStock(ctx context.Context, actor Actor, input *NewStockAdjustment) (*StockMovement, error) {
	input.BatchLabel = strings.TrimSpace(input.BatchLabel)
	input.Reason = strings.TrimSpace(input.Reason)
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	movements, err := runStockCommand(ctx, actor, func(tx *gorm.DB) ([]StockMovement, error) {
		if _, err := loadStockUnit(tx, actor, input.UnitId); err != nil {
			return nil, err
		}
		if err := utils.ValidateResourceId[Product](txContext(tx), input.ProductId); err != nil {
			return nil, ErrUnknownProduct
		}
		batch, err := lockBatch(tx, input.ProductId, input.UnitId, input.BatchLabel, input.ExpiryDate)
		if err != nil {
			return nil, err
		}
		delta := input.NewQuantity.Sub(batch.Quantity)
		if delta.IsZero() {
			return nil, ErrNoChange
		}
		kind := MovementKindAdjustmentPlus
		if delta.IsNegative() {
			kind = MovementKindAdjustmentMinus
		}
		mv, err := recordMovement(tx, batch, kind, delta.Abs(), input.Reason, MovementRef{}, actor)
		if err != nil {
			return nil, err
		}
		return []StockMovement{*mv}, nil
	})
	if err != nil {
		return nil, err
	}
	return &movements[0], nil
}

// ReverseMovement books the opposite of a manual movement once. Order transfers and
// reversals themselves are not reversible.
func ReverseMovement(ctx context.Context, actor Actor, movementId int, reason string) (*StockMovement, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	movements, err := runStockCommand(ctx, actor, func(tx *gorm.DB) ([]StockMovement, error) {
		var original StockMovement
		if err := tx.First(&original, movementId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, utils.ErrorRecordNotFound
			}
			return nil, wrapStorageErr(err)
		}
		switch original.Kind {
		case MovementKindTransferIn, MovementKindTransferOut, MovementKindReversalIn, MovementKindReversalOut:
			return nil, ErrNotReversible
		}
		if !actor.ActsForUnit(original.UnitId) {
			return nil, ErrForbidden
		}

		// the batch lock serializes concurrent reversals of the same movement
		batch, err := lockBatchById(tx, original.BatchStockId)
		if err != nil {
			return nil, err
		}
		var count int64
		if err := tx.Model(&StockMovement{}).
			Where("reference_kind = ? AND reference_id = ?", ReferenceKindMovement, original.ID).
			Count(&count).Error; err != nil {
			return nil, wrapStorageErr(err)
		}
		if count > 0 {
			return nil, ErrAlreadyReversed
		}
		mv, err := recordMovement(tx, batch, original.Kind.Opposite(), original.Quantity, reason, movementRef(original.ID), actor)
		if err != nil {
			return nil, err
		}
		return []StockMovement{*mv}, nil
	})
	if err != nil {
		return nil, err
	}
	return &movements[0], nil
}

