package models

import (
	"time"

	"github.com/mmdatafocus/distribution_backend/utils"
)

type Identifier interface {
	GetId() int
}

// interface for dataloader result
type Data interface {
	Identifier
	GetDefault(int) Data
}

func (u SupplyingUnit) GetId() int {
	return u.ID
}

func (u SupplyingUnit) GetDefault(id int) Data {
	return SupplyingUnit{
		ID:        id,
		Kind:      UnitKindBranch,
		IsActive:  utils.NewFalse(),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func (p Product) GetId() int {
	return p.ID
}

func (p Product) GetDefault(id int) Data {
	return Product{
		ID:        id,
		IsActive:  utils.NewFalse(),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

// loader loading more than one model by one id
type RelatedData interface {
	GetReferenceId() int
}

func (s Settlement) GetReferenceId() int {
	return s.OrderId
}

func (l OrderLine) GetReferenceId() int {
	return l.OrderId
}
