package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/distribution_backend/config"
	"github.com/mmdatafocus/distribution_backend/utils"
	"gorm.io/gorm"
)

// SupplyingUnit is a hub or a branch. Units are never deleted.
type SupplyingUnit struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Kind      UnitKind  `gorm:"type:enum('HUB','BRANCH');not null;index" json:"kind"`
	Phone     string    `gorm:"size:20" json:"phone"`
	Address   string    `gorm:"type:text" json:"address"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SupplyingUnit) TableName() string {
	return "units"
}

func (u SupplyingUnit) IsHub() bool {
	return u.Kind == UnitKindHub
}

type NewUnit struct {
	Name    string   `json:"name" validate:"required,max=100"`
	Kind    UnitKind `json:"kind" validate:"required,oneof=HUB BRANCH"`
	Phone   string   `json:"phone"`
	Address string   `json:"address"`
}

func (input *NewUnit) validate(ctx context.Context) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if err := utils.ValidateUnique[SupplyingUnit](ctx, "name", input.Name, 0); err != nil {
		return err
	}
	if phone := strings.TrimSpace(input.Phone); phone != "" {
		formatted, err := utils.FormatPhoneNumber(phone)
		if err != nil {
			return err
		}
		input.Phone = formatted
	}
	return nil
}

func CreateUnit(ctx context.Context, actor Actor, input *NewUnit) (*SupplyingUnit, error) {
	if actor.Role != ActorRoleUnrestricted {
		return nil, ErrForbidden
	}
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	unit := SupplyingUnit{
		Name:     strings.TrimSpace(input.Name),
		Kind:     input.Kind,
		Phone:    input.Phone,
		Address:  input.Address,
		IsActive: utils.NewTrue(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&unit).Error; err != nil {
		return nil, wrapStorageErr(err)
	}
	emitAudit(ctx, actor, "unit.create", "unit", unit.ID, unit)
	return &unit, nil
}

func GetUnit(ctx context.Context, id int) (*SupplyingUnit, error) {
	unit, err := GetResource[SupplyingUnit](ctx, id)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, ErrUnknownUnit
	}
	return unit, err
}

func ListUnits(ctx context.Context, kind *UnitKind, activeOnly bool) ([]*SupplyingUnit, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx)
	if kind != nil {
		dbCtx = dbCtx.Where("kind = ?", *kind)
	}
	if activeOnly {
		dbCtx = dbCtx.Where("is_active = ?", true)
	}
	var results []*SupplyingUnit
	if err := dbCtx.Order("name").Find(&results).Error; err != nil {
		return nil, wrapStorageErr(err)
	}
	return results, nil
}

func DeactivateUnit(ctx context.Context, actor Actor, id int) (*SupplyingUnit, error) {
	if actor.Role != ActorRoleUnrestricted {
		return nil, ErrForbidden
	}
	unit, err := utils.FetchModel[SupplyingUnit](ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, ErrUnknownUnit
		}
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(unit).Update("IsActive", false).Error; err != nil {
		return nil, wrapStorageErr(err)
	}
	unit.IsActive = utils.NewFalse()
	forgetResource[SupplyingUnit](id)
	emitAudit(ctx, actor, "unit.deactivate", "unit", id, nil)
	return unit, nil
}

// loadUnit reads a unit inside tx, mapping a missing row to ErrUnknownUnit.
func loadUnit(tx *gorm.DB, id int) (*SupplyingUnit, error) {
	var unit SupplyingUnit
	if err := tx.First(&unit, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownUnit
		}
		return nil, wrapStorageErr(err)
	}
	return &unit, nil
}

// activeHubIds lists the units whose stock forms the pool.
func activeHubIds(tx *gorm.DB) ([]int, error) {
	var ids []int
	err := tx.Model(&SupplyingUnit{}).
		Where("kind = ? AND is_active = ?", UnitKindHub, true).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	return ids, nil
}
