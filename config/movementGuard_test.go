package config

import (
	"errors"
	"testing"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

type StockMovement struct {
	ID     int
	Reason string
}

type BatchStock struct {
	ID       int
	Quantity int
}

// dryRunDB builds statements without a server.
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "guard:guard@tcp(127.0.0.1:1)/guard",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := conn.Use(NewMovementGuardPlugin()); err != nil {
		t.Fatalf("install guard: %v", err)
	}
	return conn
}

func TestMovementGuardRefusesRewrites(t *testing.T) {
	conn := dryRunDB(t)

	err := conn.Model(&StockMovement{}).Where("id = ?", 1).Update("reason", "edited").Error
	if !errors.Is(err, ErrLedgerImmutable) {
		t.Fatalf("update: expected ErrLedgerImmutable, got %v", err)
	}
	err = conn.Where("id = ?", 1).Delete(&StockMovement{}).Error
	if !errors.Is(err, ErrLedgerImmutable) {
		t.Fatalf("delete: expected ErrLedgerImmutable, got %v", err)
	}
	err = conn.Table("STOCK_MOVEMENTS").Where("id = ?", 1).Update("reason", "edited").Error
	if !errors.Is(err, ErrLedgerImmutable) {
		t.Fatalf("explicit table: expected ErrLedgerImmutable, got %v", err)
	}
}

func TestMovementGuardAllowsOtherTables(t *testing.T) {
	conn := dryRunDB(t)
	if err := conn.Model(&BatchStock{}).Where("id = ?", 1).Update("quantity", 3).Error; err != nil {
		t.Fatalf("batch update should pass, got %v", err)
	}
	if err := conn.Create(&StockMovement{Reason: "entry"}).Error; err != nil {
		t.Fatalf("inserts should pass, got %v", err)
	}
}
