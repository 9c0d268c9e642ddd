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

// Imports an inventory spreadsheet from the command line, same
// semantics as the /articles/import endpoint.
func main() {
	shopID := flag.String("shop-id", "", "Required: shop id to import into")
	file := flag.String("file", "", "Required: path to the xlsx file")
	flag.Parse()

	if strings.TrimSpace(*shopID) == "" || strings.TrimSpace(*file) == "" {
		fmt.Fprintln(os.Stderr, "usage: article-import -shop-id <id> -file <inventory.xlsx>")
		os.Exit(2)
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	f, err := os.Open(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open %s: %v\n", *file, err)
		os.Exit(1)
	}
	defer f.Close()

	ctx := utils.SetShopIdInContext(context.Background(), strings.TrimSpace(*shopID))
	ctx = utils.SetUserNameInContext(ctx, "ArticleImport")

	result, err := models.CreateArticlesFromImport(ctx, f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "import failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("imported %d articles (codes %d..%d), %d rows read, %d rows skipped\n",
		result.ArticlesCreated, result.FirstCode, result.LastCode, result.RowsRead, result.RowsSkipped)
}
