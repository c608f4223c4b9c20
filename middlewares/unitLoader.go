package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/distribution_backend/models"
	"gorm.io/gorm"
)

type unitReader struct {
	db *gorm.DB
}

func (r *unitReader) getUnits(ctx context.Context, ids []int) []*dataloader.Result[*models.SupplyingUnit] {
	var results []models.SupplyingUnit
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&results).Error
	if err != nil {
		return handleError[*models.SupplyingUnit](len(ids), err)
	}
	return generateLoaderResults(results, ids)
}

func GetUnit(ctx context.Context, id int) (*models.SupplyingUnit, error) {
	loaders := For(ctx)
	return loaders.unitLoader.Load(ctx, id)()
}

// GetUnits resolves ids in one batch; the result is aligned with ids.
func GetUnits(ctx context.Context, ids []int) ([]*models.SupplyingUnit, error) {
	units, errs := For(ctx).unitLoader.LoadMany(ctx, ids)()
	return units, firstError(errs)
}
