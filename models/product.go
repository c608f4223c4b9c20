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

type Product struct {
	ID           int             `gorm:"primary_key" json:"id"`
	Name         string          `gorm:"size:255;not null" json:"name"`
	Sku          string          `gorm:"size:64;not null;uniqueIndex" json:"sku"`
	UnitId       *int            `gorm:"index" json:"unit_id"`
	DefaultPrice decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"default_price"`
	IsActive     *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Name         string          `json:"name" validate:"required,max=255"`
	Sku          string          `json:"sku" validate:"required,max=64"`
	UnitId       *int            `json:"unit_id"`
	DefaultPrice decimal.Decimal `json:"default_price" validate:"gte=0,scale4"`
}

func (input *NewProduct) validate(ctx context.Context) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if err := utils.ValidateUnique[Product](ctx, "sku", input.Sku, 0); err != nil {
		return err
	}
	if input.UnitId != nil {
		if err := utils.ValidateResourceId[SupplyingUnit](ctx, *input.UnitId); err != nil {
			return ErrUnknownUnit
		}
	}
	return nil
}

func CreateProduct(ctx context.Context, actor Actor, input *NewProduct) (*Product, error) {
	if actor.Role == ActorRoleBranch {
		return nil, ErrForbidden
	}
	if err := input.validate(ctx); err != nil {
		return nil, err
	}
	product := Product{
		Name:         strings.TrimSpace(input.Name),
		Sku:          strings.TrimSpace(input.Sku),
		UnitId:       input.UnitId,
		DefaultPrice: input.DefaultPrice,
		IsActive:     utils.NewTrue(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, wrapStorageErr(err)
	}
	emitAudit(ctx, actor, "product.create", "product", product.ID, product)
	return &product, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	product, err := GetResource[Product](ctx, id)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, ErrUnknownProduct
	}
	return product, err
}

func ListProducts(ctx context.Context, name *string, activeOnly bool) ([]*Product, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	if activeOnly {
		dbCtx = dbCtx.Where("is_active = ?", true)
	}
	var results []*Product
	if err := dbCtx.Order("name").Find(&results).Error; err != nil {
		return nil, wrapStorageErr(err)
	}
	return results, nil
}

// DeactivateProduct hides a product from new orders. Existing stock and history stay.
func DeactivateProduct(ctx context.Context, actor Actor, id int) (*Product, error) {
	if actor.Role == ActorRoleBranch {
		return nil, ErrForbidden
	}
	product, err := utils.FetchModel[Product](ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, ErrUnknownProduct
		}
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(product).Update("IsActive", false).Error; err != nil {
		return nil, wrapStorageErr(err)
	}
	product.IsActive = utils.NewFalse()
	forgetResource[Product](id)
	emitAudit(ctx, actor, "product.deactivate", "product", id, nil)
	return product, nil
}

// loadActiveProduct reads a product inside tx and rejects inactive ones.
func loadActiveProduct(tx *gorm.DB, id int) (*Product, error) {
	var product Product
	if err := tx.First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownProduct
		}
		return nil, wrapStorageErr(err)
	}
	if !utils.IsTrue(product.IsActive) {
		return nil, &InactiveProductError{ProductId: id}
	}
	return &product, nil
}
