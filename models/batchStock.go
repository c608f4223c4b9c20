package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const transferBatchPrefix = "TRANSF-"

// BatchStock is the ledger cell for one (product, unit, batch label).
// Rows are created on first movement and never deleted, only driven to zero.
type BatchStock struct {
	ID         int             `gorm:"primary_key" json:"id"`
	ProductId  int             `gorm:"not null;uniqueIndex:idx_batch_cell,priority:1" json:"product_id"`
	UnitId     int             `gorm:"not null;uniqueIndex:idx_batch_cell,priority:2;index" json:"unit_id"`
	BatchLabel string          `gorm:"size:100;not null;uniqueIndex:idx_batch_cell,priority:3" json:"batch_label"`
	Quantity   decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"quantity"`
	ExpiryDate *time.Time      `gorm:"type:date" json:"expiry_date"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TransferBatchLabel is the batch a fulfilled order credits on its target unit.
func TransferBatchLabel(orderNumber string) string {
	return transferBatchPrefix + orderNumber
}

// lockBatch returns the cell for (product, unit, label) locked FOR UPDATE, creating it
// at zero when missing. An expiry is only written onto a cell that has none.
func lockBatch(tx *gorm.DB, productId int, unitId int, label string, expiry *time.Time) (*BatchStock, error) {
	if label == "" {
		return nil, fmt.Errorf("%w: batch label is required", ErrInvalidInput)
	}
	seed := BatchStock{
		ProductId:  productId,
		UnitId:     unitId,
		BatchLabel: label,
		Quantity:   decimal.Zero,
		ExpiryDate: expiry,
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return nil, wrapStorageErr(err)
	}

	var batch BatchStock
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND unit_id = ? AND batch_label = ?", productId, unitId, label).
		First(&batch).Error
	if err != nil {
		return nil, wrapStorageErr(err)
	}

	if batch.ExpiryDate == nil && expiry != nil {
		if err := tx.Model(&batch).Update("expiry_date", *expiry).Error; err != nil {
			return nil, wrapStorageErr(err)
		}
		batch.ExpiryDate = expiry
	}
	return &batch, nil
}

// lockBatchById locks an existing cell.
func lockBatchById(tx *gorm.DB, id int) (*BatchStock, error) {
	var batch BatchStock
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&batch, id).Error
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	return &batch, nil
}

// earliestExpiry picks the soonest non-nil expiry, or nil.
func earliestExpiry(deductions []BatchDeduction) *time.Time {
	var earliest *time.Time
	for _, d := range deductions {
		if d.ExpiryDate == nil {
			continue
		}
		if earliest == nil || d.ExpiryDate.Before(*earliest) {
			e := *d.ExpiryDate
			earliest = &e
		}
	}
	return earliest
}
