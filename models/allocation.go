package models

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/mmdatafocus/distribution_backend/config"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BatchDeduction is one step of an allocation plan.
type BatchDeduction struct {
	BatchStockId int             `json:"batch_stock_id"`
	UnitId       int             `json:"unit_id"`
	BatchLabel   string          `json:"batch_label"`
	ExpiryDate   *time.Time      `json:"expiry_date"`
	Before       decimal.Decimal `json:"before"`
	Take         decimal.Decimal `json:"take"`
}

// fifoLess orders by expiry ascending with undated batches last, then oldest touched, then id.
func fifoLess(a, b BatchStock) bool {
	switch {
	case a.ExpiryDate == nil && b.ExpiryDate != nil:
		return false
	case a.ExpiryDate != nil && b.ExpiryDate == nil:
		return true
	case a.ExpiryDate != nil && b.ExpiryDate != nil && !a.ExpiryDate.Equal(*b.ExpiryDate):
		return a.ExpiryDate.Before(*b.ExpiryDate)
	}
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.Before(b.UpdatedAt)
	}
	return a.ID < b.ID
}

// PlanAllocation decides which batches cover required, without touching storage.
// When the candidates cannot cover it, no plan is returned.
func PlanAllocation(candidates []BatchStock, required decimal.Decimal) ([]BatchDeduction, error) {
	if !required.IsPositive() {
		return nil, fmt.Errorf("%w: required quantity must be positive", ErrInvalidInput)
	}

	sorted := make([]BatchStock, 0, len(candidates))
	available := decimal.Zero
	productId := 0
	for _, c := range candidates {
		if !c.Quantity.IsPositive() {
			continue
		}
		if productId == 0 {
			productId = c.ProductId
		}
		sorted = append(sorted, c)
		available = available.Add(c.Quantity)
	}
	if available.LessThan(required) {
		return nil, &InsufficientStockError{ProductId: productId, Available: available, Required: required}
	}

	sort.SliceStable(sorted, func(i, j int) bool { return fifoLess(sorted[i], sorted[j]) })

	remaining := required
	plan := make([]BatchDeduction, 0, len(sorted))
	for _, c := range sorted {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(remaining, c.Quantity)
		plan = append(plan, BatchDeduction{
			BatchStockId: c.ID,
			UnitId:       c.UnitId,
			BatchLabel:   c.BatchLabel,
			ExpiryDate:   c.ExpiryDate,
			Before:       c.Quantity,
			Take:         take,
		})
		remaining = remaining.Sub(take)
	}
	return plan, nil
}

// candidateUnits is every active hub when source is a hub, otherwise the source alone.
func candidateUnits(tx *gorm.DB, source *SupplyingUnit) ([]int, bool, error) {
	if !source.IsHub() {
		return []int{source.ID}, false, nil
	}
	ids, err := activeHubIds(tx)
	if err != nil {
		return nil, true, err
	}
	return ids, true, nil
}

// lockCandidates selects the non-empty batches for productId in unitIds FOR UPDATE.
func lockCandidates(tx *gorm.DB, productId int, unitIds []int) ([]BatchStock, error) {
	var rows []BatchStock
	if len(unitIds) == 0 {
		return rows, nil
	}
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND unit_id IN ? AND quantity > 0", productId, unitIds).
		Order("expiry_date IS NULL, expiry_date, updated_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	return rows, nil
}

func planLocked(tx *gorm.DB, productId int, source *SupplyingUnit, qty decimal.Decimal) ([]BatchStock, []BatchDeduction, bool, error) {
	unitIds, pooled, err := candidateUnits(tx, source)
	if err != nil {
		return nil, nil, pooled, err
	}
	rows, err := lockCandidates(tx, productId, unitIds)
	if err != nil {
		return nil, nil, pooled, err
	}
	plan, err := PlanAllocation(rows, qty)
	if err != nil {
		var short *InsufficientStockError
		if errors.As(err, &short) {
			short.ProductId = productId
		}
		return rows, nil, pooled, err
	}
	return rows, plan, pooled, nil
}

// CheckAvailability runs the same locked plan as Allocate and writes nothing.
func CheckAvailability(tx *gorm.DB, productId int, source *SupplyingUnit, qty decimal.Decimal) ([]BatchDeduction, error) {
	_, plan, _, err := planLocked(tx, productId, source, qty)
	return plan, err
}

// Allocate deducts qty of productId from source (pooled across hubs), FIFO by expiry.
// kind is exit or transfer_out. Nothing is written unless the whole quantity is available.
func Allocate(tx *gorm.DB, productId int, source *SupplyingUnit, qty decimal.Decimal, kind MovementKind, reason string, ref MovementRef, actor Actor) ([]BatchDeduction, []StockMovement, error) {
	if kind != MovementKindExit && kind != MovementKindTransferOut {
		return nil, nil, fmt.Errorf("allocation cannot record %s movements", kind)
	}

	ctx, span := tracer.Start(txContext(tx), "models.Allocate")
	defer span.End()
	span.SetAttributes(
		attribute.Int("product_id", productId),
		attribute.Int("source_unit_id", source.ID),
		attribute.String("quantity", qty.String()),
	)
	tx = tx.WithContext(ctx)

	rows, plan, pooled, err := planLocked(tx, productId, source, qty)
	m := config.GetMetrics().AllocationsTotal
	pooledLabel := strconv.FormatBool(pooled)
	if err != nil {
		span.RecordError(err)
		m.WithLabelValues(pooledLabel, "failed").Inc()
		return nil, nil, err
	}

	movements, err := applyPlan(tx, rows, plan, kind, reason, ref, actor)
	if err != nil {
		span.RecordError(err)
		m.WithLabelValues(pooledLabel, "failed").Inc()
		return nil, nil, err
	}
	m.WithLabelValues(pooledLabel, "ok").Inc()
	return plan, movements, nil
}

// applyPlan records one debit per planned step against the locked rows.
func applyPlan(tx *gorm.DB, rows []BatchStock, plan []BatchDeduction, kind MovementKind, reason string, ref MovementRef, actor Actor) ([]StockMovement, error) {
	byId := make(map[int]*BatchStock, len(rows))
	for i := range rows {
		byId[rows[i].ID] = &rows[i]
	}
	movements := make([]StockMovement, 0, len(plan))
	for _, step := range plan {
		batch, ok := byId[step.BatchStockId]
		if !ok {
			return nil, fmt.Errorf("planned batch %d was not locked", step.BatchStockId)
		}
		mv, err := recordMovement(tx, batch, kind, step.Take, reason, ref, actor)
		if err != nil {
			return nil, err
		}
		movements = append(movements, *mv)
	}
	return movements, nil
}
