package config

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrLedgerImmutable is returned when a statement tries to rewrite the movement journal.
var ErrLedgerImmutable = errors.New("stock movements are append-only")

// MovementGuardPlugin keeps the stock movement journal append-only by refusing
// UPDATE and DELETE statements built through gorm against its table.
//
// NOTE: this does NOT apply to Raw/Exec SQL. Nothing in the service issues those against the journal.
type MovementGuardPlugin struct {
	tables map[string]bool
}

func NewMovementGuardPlugin() *MovementGuardPlugin {
	return &MovementGuardPlugin{tables: map[string]bool{"stock_movements": true}}
}

func (p *MovementGuardPlugin) Name() string { return "movement_guard" }

func (p *MovementGuardPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Update().Before("gorm:update").Register("movement_guard:update", p.guard); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("movement_guard:delete", p.guard); err != nil {
		return err
	}
	return nil
}

func (p *MovementGuardPlugin) guard(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	table := db.Statement.Table
	if table == "" && db.Statement.Schema != nil {
		table = db.Statement.Schema.Table
	}
	if p.tables[strings.ToLower(table)] {
		_ = db.AddError(ErrLedgerImmutable)
	}
}
