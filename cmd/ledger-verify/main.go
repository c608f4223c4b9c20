// ledger-verify replays the stock movement journal batch by batch and reports every batch
// whose booked quantity the journal does not reproduce.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/ledger-verify [--product-id 12] [--json]
//
// Exit code 3 means mismatches were found.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/mmdatafocus/distribution_backend/config"
	"github.com/mmdatafocus/distribution_backend/models"
)

func main() {
	productID := flag.Int("product-id", 0, "Optional: only verify this product")
	asJSON := flag.Bool("json", false, "Print mismatches as JSON")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	var product *int
	if *productID > 0 {
		product = productID
	}

	mismatches, err := models.VerifyLedger(context.Background(), product)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify failed: %v\n", err)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(mismatches); err != nil {
			fmt.Fprintf(os.Stderr, "encode: %v\n", err)
			os.Exit(1)
		}
	} else {
		for _, m := range mismatches {
			fmt.Printf("batch=%d product=%d unit=%d label=%q booked=%s replayed=%s: %s\n",
				m.BatchStockId, m.ProductId, m.UnitId, m.BatchLabel, m.Booked.String(), m.Replayed.String(), m.Problem)
		}
	}

	if len(mismatches) > 0 {
		fmt.Fprintf(os.Stderr, "%d batch(es) out of balance\n", len(mismatches))
		os.Exit(3)
	}
	fmt.Println("ledger consistent")
}
