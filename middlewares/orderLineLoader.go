package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/distribution_backend/models"
	"gorm.io/gorm"
)

type orderLineReader struct {
	db *gorm.DB
}

func (r *orderLineReader) getOrderLines(ctx context.Context, orderIds []int) []*dataloader.Result[[]*models.OrderLine] {
	var results []models.OrderLine
	err := r.db.WithContext(ctx).Where("order_id IN ?", orderIds).Order("id").Find(&results).Error
	if err != nil {
		return handleError[[]*models.OrderLine](len(orderIds), err)
	}
	return generateLoaderArrayResults(results, orderIds)
}

// GetLinesForOrders returns lines per order, aligned with orderIds.
func GetLinesForOrders(ctx context.Context, orderIds []int) ([][]*models.OrderLine, error) {
	lines, errs := For(ctx).orderLineLoader.LoadMany(ctx, orderIds)()
	return lines, firstError(errs)
}
