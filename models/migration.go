package models

import (
	"log"

	"github.com/mmdatafocus/distribution_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&SupplyingUnit{}, &Product{},
		&BatchStock{}, &StockMovement{},
		&Order{}, &OrderLine{},
		&Settlement{},
		&SequenceCounter{},
		&AuditLog{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
