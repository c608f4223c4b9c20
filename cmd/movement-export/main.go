// movement-export writes the stock movement journal to an XLSX workbook.
//
// Usage:
//
//	go run ./cmd/movement-export --out movements.xlsx [--product-id 3] [--unit-id 1] [--from 2024-01-01] [--to 2024-02-01]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mmdatafocus/distribution_backend/config"
	"github.com/mmdatafocus/distribution_backend/models"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Movements"

var headings = []interface{}{
	"Id", "Created At", "Product Id", "Unit Id", "Batch", "Kind", "Quantity",
	"Previous", "New", "Reason", "Reference Kind", "Reference Id", "Actor Id",
}

func parseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func movementRow(m models.StockMovement) []interface{} {
	var refId interface{}
	if m.ReferenceId != nil {
		refId = *m.ReferenceId
	}
	return []interface{}{
		m.ID,
		m.CreatedAt.UTC().Format(time.RFC3339),
		m.ProductId,
		m.UnitId,
		m.BatchLabel,
		string(m.Kind),
		m.SignedQuantity().InexactFloat64(),
		m.PreviousQuantity.InexactFloat64(),
		m.NewQuantity.InexactFloat64(),
		m.Reason,
		string(m.ReferenceKind),
		refId,
		m.ActorId,
	}
}

func main() {
	out := flag.String("out", "movements.xlsx", "Output file")
	productID := flag.Int("product-id", 0, "Optional: product id")
	unitID := flag.Int("unit-id", 0, "Optional: unit id")
	fromStr := flag.String("from", "", "Optional: from date inclusive (YYYY-MM-DD)")
	toStr := flag.String("to", "", "Optional: to date exclusive (YYYY-MM-DD)")
	flag.Parse()

	var filter models.MovementFilter
	if *productID > 0 {
		filter.ProductId = productID
	}
	if *unitID > 0 {
		filter.UnitId = unitID
	}
	var err error
	if filter.From, err = parseDate(*fromStr); err != nil {
		fmt.Fprintf(os.Stderr, "invalid from date: %v\n", err)
		os.Exit(1)
	}
	if filter.To, err = parseDate(*toStr); err != nil {
		fmt.Fprintf(os.Stderr, "invalid to date: %v\n", err)
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		fmt.Fprintf(os.Stderr, "sheet: %v\n", err)
		os.Exit(1)
	}
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stream writer: %v\n", err)
		os.Exit(1)
	}
	if err := sw.SetRow("A1", headings); err != nil {
		fmt.Fprintf(os.Stderr, "headings: %v\n", err)
		os.Exit(1)
	}

	row := 2
	err = models.EachMovement(context.Background(), filter, func(m models.StockMovement) error {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		row++
		return sw.SetRow(cell, movementRow(m))
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
		os.Exit(1)
	}
	if err := sw.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "flush: %v\n", err)
		os.Exit(1)
	}
	if err := f.SaveAs(*out); err != nil {
		fmt.Fprintf(os.Stderr, "save: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("exported %d movements to %s\n", row-2, *out)
}
