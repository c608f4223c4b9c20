// seed-dev fills an empty development database with two hubs, two branches, a few products
// and opening stock, then prints a bearer token for each role.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-dev
//
// Re-running is safe: existing units and products are looked up by name and sku.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mmdatafocus/distribution_backend/config"
	"github.com/mmdatafocus/distribution_backend/models"
	"github.com/mmdatafocus/distribution_backend/utils"
	"github.com/shopspring/decimal"
)

type seedUnit struct {
	Name string
	Kind models.UnitKind
}

type seedProduct struct {
	Name  string
	Sku   string
	Price string
}

type seedEntry struct {
	Unit     string
	Sku      string
	Batch    string
	Quantity string
	Expiry   string
}

var units = []seedUnit{
	{"Central Kitchen", models.UnitKindHub},
	{"North Hub", models.UnitKindHub},
	{"Downtown Branch", models.UnitKindBranch},
	{"Airport Branch", models.UnitKindBranch},
}

var products = []seedProduct{
	{"Tomato Sauce 1kg", "SAU-001", "12.50"},
	{"Pizza Dough 500g", "DOU-001", "4.20"},
	{"Mozzarella 1kg", "CHE-001", "28.90"},
}

var entries = []seedEntry{
	{"Central Kitchen", "SAU-001", "L-2024-01", "30", "2024-01-10"},
	{"Central Kitchen", "SAU-001", "L-2024-02", "30", "2024-01-15"},
	{"North Hub", "SAU-001", "L-2024-03", "50", ""},
	{"Central Kitchen", "DOU-001", "D-01", "120", "2024-01-08"},
	{"North Hub", "CHE-001", "C-01", "40", "2024-03-01"},
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func ensureUnit(ctx context.Context, u seedUnit) *models.SupplyingUnit {
	existing, err := models.ListUnits(ctx, &u.Kind, false)
	if err != nil {
		fail("list units: %v", err)
	}
	for _, unit := range existing {
		if unit.Name == u.Name {
			return unit
		}
	}
	unit, err := models.CreateUnit(ctx, models.SystemActor, &models.NewUnit{Name: u.Name, Kind: u.Kind})
	if err != nil {
		fail("create unit %s: %v", u.Name, err)
	}
	return unit
}

func ensureProduct(ctx context.Context, p seedProduct) *models.Product {
	name := p.Name
	existing, err := models.ListProducts(ctx, &name, false)
	if err != nil {
		fail("list products: %v", err)
	}
	for _, product := range existing {
		if product.Sku == p.Sku {
			return product
		}
	}
	product, err := models.CreateProduct(ctx, models.SystemActor, &models.NewProduct{
		Name:         p.Name,
		Sku:          p.Sku,
		DefaultPrice: decimal.RequireFromString(p.Price),
	})
	if err != nil {
		fail("create product %s: %v", p.Sku, err)
	}
	return product
}

func main() {
	ctx := utils.SetCorrelationIdInContext(context.Background(), "seed-dev")
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fail("database not initialized (config.GetDB returned nil). Set DB_* env vars.")
	}
	models.MigrateTable()

	unitIds := make(map[string]int)
	for _, u := range units {
		unitIds[u.Name] = ensureUnit(ctx, u).ID
	}
	productIds := make(map[string]int)
	for _, p := range products {
		productIds[p.Sku] = ensureProduct(ctx, p).ID
	}

	seeded := 0
	for _, e := range entries {
		input := &models.NewStockEntry{
			ProductId:  productIds[e.Sku],
			UnitId:     unitIds[e.Unit],
			BatchLabel: e.Batch,
			Quantity:   decimal.RequireFromString(e.Quantity),
			Reason:     "Estoque inicial",
		}
		if e.Expiry != "" {
			expiry, err := time.Parse("2006-01-02", e.Expiry)
			if err != nil {
				fail("bad expiry %q: %v", e.Expiry, err)
			}
			input.ExpiryDate = &expiry
		}
		// Batches already holding stock were seeded by an earlier run.
		batches, err := models.ListBatches(ctx, input.ProductId, input.UnitId)
		if err != nil {
			fail("list batches: %v", err)
		}
		skip := false
		for _, b := range batches {
			if b.BatchLabel == e.Batch && b.Quantity.IsPositive() {
				skip = true
			}
		}
		if skip {
			continue
		}
		if _, err := models.RecordStockEntry(ctx, models.SystemActor, input); err != nil {
			var inactive *models.InactiveProductError
			if errors.As(err, &inactive) {
				fmt.Fprintf(os.Stderr, "skipping inactive product %d\n", inactive.ProductId)
				continue
			}
			fail("entry %s@%s: %v", e.Sku, e.Unit, err)
		}
		seeded++
	}
	models.WaitForAudit(10 * time.Second)

	fmt.Printf("seeded %d stock entries\n\n", seeded)
	tokens := []struct {
		id     int
		name   string
		role   models.ActorRole
		unitId int
	}{
		{1, "Admin", models.ActorRoleUnrestricted, 0},
		{2, "Hub Operator", models.ActorRoleHub, unitIds["Central Kitchen"]},
		{3, "Branch Manager", models.ActorRoleBranch, unitIds["Downtown Branch"]},
	}
	for _, t := range tokens {
		token, err := utils.JwtGenerate(t.id, t.name, string(t.role), t.unitId)
		if err != nil {
			fail("token for %s: %v", t.name, err)
		}
		fmt.Printf("%s (%s, unit %d):\n  Bearer %s\n", t.name, t.role, t.unitId, token)
	}
}
