package models

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/distribution_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type StockLevel struct {
	ProductId int             `json:"product_id"`
	UnitId    int             `json:"unit_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

type StockLevelFilter struct {
	ProductId    *int
	UnitId       *int
	IncludeEmpty bool
}

// StockLevels sums batch quantities per (product, unit).
func StockLevels(ctx context.Context, filter StockLevelFilter) ([]StockLevel, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&BatchStock{}).
		Select("product_id, unit_id, SUM(quantity) AS quantity")
	if filter.ProductId != nil {
		dbCtx = dbCtx.Where("product_id = ?", *filter.ProductId)
	}
	if filter.UnitId != nil {
		dbCtx = dbCtx.Where("unit_id = ?", *filter.UnitId)
	}
	dbCtx = dbCtx.Group("product_id, unit_id")
	if !filter.IncludeEmpty {
		dbCtx = dbCtx.Having("SUM(quantity) > 0")
	}
	var levels []StockLevel
	if err := dbCtx.Order("product_id, unit_id").Scan(&levels).Error; err != nil {
		return nil, wrapStorageErr(err)
	}
	return levels, nil
}

// ListBatches lists the non-empty batches of a unit in allocation order.
func ListBatches(ctx context.Context, productId int, unitId int) ([]BatchStock, error) {
	db := config.GetDB()
	var batches []BatchStock
	err := db.WithContext(ctx).
		Where("product_id = ? AND unit_id = ? AND quantity > 0", productId, unitId).
		Order("expiry_date IS NULL, expiry_date, updated_at, id").
		Find(&batches).Error
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	return batches, nil
}

// PoolAvailability is what an order sourced from any hub could draw for a product.
type PoolAvailability struct {
	ProductId int             `json:"product_id"`
	Total     decimal.Decimal `json:"total"`
	Units     []StockLevel    `json:"units"`
	Batches   []BatchStock    `json:"batches"`
}

// PooledAvailability reads the pool at query time; nothing is cached.
func PooledAvailability(ctx context.Context, productId int) (*PoolAvailability, error) {
	db := config.GetDB().WithContext(ctx)
	hubIds, err := activeHubIds(db)
	if err != nil {
		return nil, err
	}
	pool := &PoolAvailability{ProductId: productId, Total: decimal.Zero}
	if len(hubIds) == 0 {
		return pool, nil
	}
	err = db.Where("product_id = ? AND unit_id IN ? AND quantity > 0", productId, hubIds).
		Order("expiry_date IS NULL, expiry_date, updated_at, id").
		Find(&pool.Batches).Error
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	perUnit := make(map[int]decimal.Decimal)
	for _, b := range pool.Batches {
		pool.Total = pool.Total.Add(b.Quantity)
		perUnit[b.UnitId] = perUnit[b.UnitId].Add(b.Quantity)
	}
	for _, id := range hubIds {
		if q, ok := perUnit[id]; ok {
			pool.Units = append(pool.Units, StockLevel{ProductId: productId, UnitId: id, Quantity: q})
		}
	}
	return pool, nil
}

type MovementFilter struct {
	ProductId     *int
	UnitId        *int
	Kind          *MovementKind
	ReferenceKind *ReferenceKind
	ReferenceId   *int
	From          *time.Time
	To            *time.Time
	AfterId       int
	Limit         int
}

func (f MovementFilter) apply(dbCtx *gorm.DB) *gorm.DB {
	if f.ProductId != nil {
		dbCtx = dbCtx.Where("product_id = ?", *f.ProductId)
	}
	if f.UnitId != nil {
		dbCtx = dbCtx.Where("unit_id = ?", *f.UnitId)
	}
	if f.Kind != nil {
		dbCtx = dbCtx.Where("kind = ?", *f.Kind)
	}
	if f.ReferenceKind != nil {
		dbCtx = dbCtx.Where("reference_kind = ?", *f.ReferenceKind)
	}
	if f.ReferenceId != nil {
		dbCtx = dbCtx.Where("reference_id = ?", *f.ReferenceId)
	}
	if f.From != nil {
		dbCtx = dbCtx.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		dbCtx = dbCtx.Where("created_at < ?", *f.To)
	}
	if f.AfterId > 0 {
		dbCtx = dbCtx.Where("id > ?", f.AfterId)
	}
	return dbCtx
}

// ListMovements pages through the journal in id order (keyset on AfterId).
func ListMovements(ctx context.Context, filter MovementFilter) ([]StockMovement, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	db := config.GetDB()
	var movements []StockMovement
	err := filter.apply(db.WithContext(ctx)).Order("id").Limit(limit).Find(&movements).Error
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	return movements, nil
}

// EachMovement streams every matching movement in id order.
func EachMovement(ctx context.Context, filter MovementFilter, fn func(StockMovement) error) error {
	db := config.GetDB()
	var chunk []StockMovement
	result := filter.apply(db.WithContext(ctx)).Order("id").
		FindInBatches(&chunk, 1000, func(tx *gorm.DB, batch int) error {
			for _, mv := range chunk {
				if err := fn(mv); err != nil {
					return err
				}
			}
			return nil
		})
	return wrapStorageErr(result.Error)
}

// LedgerMismatch is one batch whose journal does not reproduce its quantity.
type LedgerMismatch struct {
	BatchStockId int             `json:"batch_stock_id"`
	ProductId    int             `json:"product_id"`
	UnitId       int             `json:"unit_id"`
	BatchLabel   string          `json:"batch_label"`
	Booked       decimal.Decimal `json:"booked"`
	Replayed     decimal.Decimal `json:"replayed"`
	Problem      string          `json:"problem"`
}

type replayState struct {
	running decimal.Decimal
	problem string
}

// VerifyLedger replays the journal per batch and compares it with the booked quantities.
func VerifyLedger(ctx context.Context, productId *int) ([]LedgerMismatch, error) {
	states := make(map[int]*replayState)
	err := EachMovement(ctx, MovementFilter{ProductId: productId}, func(mv StockMovement) error {
		st, ok := states[mv.BatchStockId]
		if !ok {
			st = &replayState{running: decimal.Zero}
			states[mv.BatchStockId] = st
		}
		if st.problem != "" {
			return nil
		}
		if !mv.PreviousQuantity.Equal(st.running) {
			st.problem = fmt.Sprintf("movement %d expected previous %s, found %s", mv.ID, st.running.String(), mv.PreviousQuantity.String())
			return nil
		}
		if !mv.Consistent() {
			st.problem = fmt.Sprintf("movement %d arithmetic does not add up", mv.ID)
			return nil
		}
		if mv.NewQuantity.IsNegative() {
			st.problem = fmt.Sprintf("movement %d drives the batch negative", mv.ID)
			return nil
		}
		st.running = mv.NewQuantity
		return nil
	})
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx)
	if productId != nil {
		dbCtx = dbCtx.Where("product_id = ?", *productId)
	}
	var batches []BatchStock
	if err := dbCtx.Order("id").Find(&batches).Error; err != nil {
		return nil, wrapStorageErr(err)
	}

	var mismatches []LedgerMismatch
	for _, b := range batches {
		st, ok := states[b.ID]
		replayed := decimal.Zero
		problem := ""
		if ok {
			replayed = st.running
			problem = st.problem
		}
		if problem == "" && !replayed.Equal(b.Quantity) {
			problem = "booked quantity differs from replayed journal"
		}
		if problem == "" && b.Quantity.IsNegative() {
			problem = "negative quantity"
		}
		if problem != "" {
			mismatches = append(mismatches, LedgerMismatch{
				BatchStockId: b.ID,
				ProductId:    b.ProductId,
				UnitId:       b.UnitId,
				BatchLabel:   b.BatchLabel,
				Booked:       b.Quantity,
				Replayed:     replayed,
				Problem:      problem,
			})
		}
	}
	return mismatches, nil
}
