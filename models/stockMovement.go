package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/distribution_backend/config"
	"github.com/mmdatafocus/distribution_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var errBatchChanged = errors.New("batch quantity changed underneath a locked write")

// StockMovement is one append-only journal entry. Rows are never updated or deleted.
type StockMovement struct {
	ID               int             `gorm:"primary_key" json:"id"`
	ProductId        int             `gorm:"not null;index:idx_movement_cell,priority:1" json:"product_id"`
	UnitId           int             `gorm:"not null;index:idx_movement_cell,priority:2" json:"unit_id"`
	BatchStockId     int             `gorm:"not null;index" json:"batch_stock_id"`
	BatchLabel       string          `gorm:"size:100;not null" json:"batch_label"`
	Kind             MovementKind    `gorm:"size:32;not null;index" json:"kind"`
	Quantity         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	PreviousQuantity decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"previous_quantity"`
	NewQuantity      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"new_quantity"`
	Reason           string          `gorm:"type:text" json:"reason"`
	ReferenceKind    ReferenceKind   `gorm:"size:20;index:idx_movement_ref,priority:1" json:"reference_kind"`
	ReferenceId      *int            `gorm:"index:idx_movement_ref,priority:2" json:"reference_id"`
	ActorId          int             `gorm:"not null" json:"actor_id"`
	CreatedAt        time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

// MovementRef ties a movement to the order or movement that caused it.
type MovementRef struct {
	Kind ReferenceKind
	Id   int
}

func orderRef(orderId int) MovementRef {
	return MovementRef{Kind: ReferenceKindOrder, Id: orderId}
}

func movementRef(movementId int) MovementRef {
	return MovementRef{Kind: ReferenceKindMovement, Id: movementId}
}

// SignedQuantity is the delta the movement applied to its batch.
func (m StockMovement) SignedQuantity() decimal.Decimal {
	if m.Kind.IsCredit() {
		return m.Quantity
	}
	return m.Quantity.Neg()
}

// Consistent reports whether previous + signed quantity equals new quantity.
func (m StockMovement) Consistent() bool {
	return m.PreviousQuantity.Add(m.SignedQuantity()).Equal(m.NewQuantity)
}

// recordMovement is the only writer of BatchStock quantities. batch must be locked in tx.
// It applies the delta, appends the journal row and updates batch in place.
func recordMovement(tx *gorm.DB, batch *BatchStock, kind MovementKind, qty decimal.Decimal, reason string, ref MovementRef, actor Actor) (*StockMovement, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("invalid movement kind %q", kind)
	}
	if !qty.IsPositive() {
		return nil, fmt.Errorf("%w: movement quantity must be positive", ErrInvalidInput)
	}
	if !utils.FitsScale(qty) {
		return nil, fmt.Errorf("%w: movement quantity has more than %d decimal places", ErrInvalidInput, utils.AmountScale)
	}

	previous := batch.Quantity
	next := previous.Add(qty)
	if !kind.IsCredit() {
		next = previous.Sub(qty)
	}
	if next.IsNegative() {
		return nil, &InsufficientStockError{ProductId: batch.ProductId, Available: previous, Required: qty}
	}

	result := tx.Model(&BatchStock{}).
		Where("id = ? AND quantity = ?", batch.ID, previous).
		Updates(map[string]interface{}{
			"quantity":   next,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return nil, wrapStorageErr(result.Error)
	}
	if result.RowsAffected != 1 {
		return nil, errBatchChanged
	}

	movement := StockMovement{
		ProductId:        batch.ProductId,
		UnitId:           batch.UnitId,
		BatchStockId:     batch.ID,
		BatchLabel:       batch.BatchLabel,
		Kind:             kind,
		Quantity:         qty,
		PreviousQuantity: previous,
		NewQuantity:      next,
		Reason:           reason,
		ReferenceKind:    ref.Kind,
		ActorId:          actor.ID,
	}
	if ref.Kind != ReferenceKindNone {
		id := ref.Id
		movement.ReferenceId = &id
	}
	if err := tx.Create(&movement).Error; err != nil {
		return nil, wrapStorageErr(err)
	}

	batch.Quantity = next
	m := config.GetMetrics()
	m.MovementsRecorded.WithLabelValues(string(kind)).Inc()
	m.MovementQuantity.WithLabelValues(string(kind)).Add(qty.InexactFloat64())
	return &movement, nil
}

// ReplayMovements folds a batch's journal (in id order) and returns the final quantity.
// It fails on the first movement whose recorded previous quantity does not match the fold.
func ReplayMovements(movements []StockMovement) (decimal.Decimal, error) {
	running := decimal.Zero
	for _, mv := range movements {
		if !mv.PreviousQuantity.Equal(running) {
			return running, fmt.Errorf("movement %d: recorded previous %s, replayed %s",
				mv.ID, mv.PreviousQuantity.String(), running.String())
		}
		if !mv.Consistent() {
			return running, fmt.Errorf("movement %d: %s %s does not lead from %s to %s",
				mv.ID, mv.Kind, mv.Quantity.String(), mv.PreviousQuantity.String(), mv.NewQuantity.String())
		}
		running = mv.NewQuantity
	}
	return running, nil
}
