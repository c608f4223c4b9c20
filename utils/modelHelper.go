package utils

import (
	"context"
	"errors"

	"github.com/mmdatafocus/distribution_backend/config"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

/* DB fetching */

// fetch model from db
// (may return RecordNotFound)
func FetchModel[T any](ctx context.Context, id int, associations ...string) (*T, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx)
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

// fetch model inside a transaction holding a row lock until commit
func FetchModelForUpdate[T any](tx *gorm.DB, id int) (*T, error) {
	var result T
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&result, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}
