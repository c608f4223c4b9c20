package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/distribution_backend/models"
	"gorm.io/gorm"
)

type settlementReader struct {
	db *gorm.DB
}

func (r *settlementReader) getOrderSettlements(ctx context.Context, orderIds []int) []*dataloader.Result[[]*models.Settlement] {
	var results []models.Settlement
	err := r.db.WithContext(ctx).Where("order_id IN ?", orderIds).Order("id").Find(&results).Error
	if err != nil {
		return handleError[[]*models.Settlement](len(orderIds), err)
	}
	return generateLoaderArrayResults(results, orderIds)
}

func GetOrderSettlements(ctx context.Context, orderId int) ([]*models.Settlement, error) {
	loaders := For(ctx)
	return loaders.orderSettlementsLoader.Load(ctx, orderId)()
}
