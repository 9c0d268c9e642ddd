package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/atelierpos/boutique_backend/config"
	"github.com/atelierpos/boutique_backend/models"
	"github.com/atelierpos/boutique_backend/utils"
)

// Recomputes stock_reserved from open sale lines after manual data
// surgery. Safe to run while the API is up; each shop is a single
// UPDATE.
func main() {
	shopID := flag.String("shop-id", "", "Optional: rebuild only one shop. If empty, rebuilds every shop with articles.")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	shopIds := make([]string, 0)
	if strings.TrimSpace(*shopID) != "" {
		shopIds = append(shopIds, strings.TrimSpace(*shopID))
	} else {
		if err := db.WithContext(ctx).Model(&models.Article{}).
			Distinct("shop_id").Pluck("shop_id", &shopIds).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to list shops: %v\n", err)
			os.Exit(1)
		}
	}
	shopIds = utils.UniqueSlice(shopIds)
	if len(shopIds) == 0 {
		fmt.Fprintln(os.Stderr, "no shops found to rebuild")
		return
	}

	for _, sid := range shopIds {
		updated, err := models.RebuildShopStock(ctx, sid)
		if err != nil {
			fmt.Fprintf(os.Stderr, "shop %s: rebuild failed: %v\n", sid, err)
			os.Exit(1)
		}
		fmt.Printf("shop %s: %d articles updated\n", sid, updated)
	}
}
