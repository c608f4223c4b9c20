package models

import (
	"context"

	"github.com/mmdatafocus/distribution_backend/config"
	"github.com/mmdatafocus/distribution_backend/utils"
)

// first find in redis, then in db, cache result
// (may return RecordNotFound error)
func GetResource[T any](ctx context.Context, id int, associations ...string) (*T, error) {
	result, err := utils.RetrieveRedis[T](id)
	if err != nil {
		return nil, err
	}
	if result != nil {
		return result, nil
	}
	result, err = utils.FetchModel[T](ctx, id, associations...)
	if err != nil {
		return nil, err
	}
	if err := utils.StoreRedis[T](result, id); err != nil {
		return nil, err
	}
	return result, nil
}

// drop the cached copy after a write
func forgetResource[T any](id int) {
	if err := utils.RemoveRedisItem[T](id); err != nil {
		logger := config.GetLogger()
		config.LogError(logger, "models", "forgetResource", utils.GetTypeName[T](), id, err)
	}
}
