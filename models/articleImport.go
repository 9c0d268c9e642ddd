package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/atelierpos/boutique_backend/config"
	"github.com/atelierpos/boutique_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ImportRow is one spreadsheet row before expansion. Quantity tells how
// many physical units the row covers; each unit becomes its own
// article so garments stay individually trackable.
type ImportRow struct {
	Quantity    int
	Name        string
	Description string
	Size        string
	Color       string
	Price       decimal.Decimal
	Season      string
	Category    string
}

type ImportResult struct {
	ArticlesCreated int `json:"articles_created"`
	RowsRead        int `json:"rows_read"`
	RowsSkipped     int `json:"rows_skipped"`
	FirstCode       int `json:"first_code"`
	LastCode        int `json:"last_code"`
}

// column order in the sheet: quantity, name, description, size, color,
// price, season, category (category optional)
const importColumns = 7

func parseImportRows(reader io.Reader) ([]ImportRow, int, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, 0, fmt.Errorf("%w: workbook has no sheets", utils.ErrorValidation)
	}

	rawRows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, 0, err
	}

	rows := make([]ImportRow, 0, len(rawRows))
	skipped := 0
	for _, raw := range rawRows {
		if len(raw) < importColumns {
			padded := make([]string, importColumns+1)
			copy(padded, raw)
			raw = padded
		}

		// rows whose first cell is not a number are headers or
		// annotations
		quantity, err := strconv.Atoi(strings.TrimSpace(raw[0]))
		if err != nil || quantity <= 0 {
			skipped++
			continue
		}

		name := strings.TrimSpace(raw[1])
		if name == "" {
			skipped++
			continue
		}

		price := decimal.Zero
		if rawPrice := strings.TrimSpace(raw[5]); rawPrice != "" {
			price, err = decimal.NewFromString(strings.ReplaceAll(rawPrice, ",", "."))
			if err != nil {
				skipped++
				continue
			}
		}

		category := ""
		if len(raw) > 7 {
			category = strings.TrimSpace(raw[7])
		}

		rows = append(rows, ImportRow{
			Quantity:    quantity,
			Name:        name,
			Description: strings.TrimSpace(raw[2]),
			Size:        strings.TrimSpace(raw[3]),
			Color:       strings.TrimSpace(raw[4]),
			Price:       price,
			Season:      strings.TrimSpace(raw[6]),
			Category:    category,
		})
	}

	return rows, skipped, nil
}

// expandImportRows turns each row into Quantity articles of one unit
// each, numbering codes sequentially from startCode.
func expandImportRows(shopId string, rows []ImportRow, startCode int) []Article {
	articles := make([]Article, 0, len(rows))
	code := startCode
	for _, row := range rows {
		for i := 0; i < row.Quantity; i++ {
			articles = append(articles, Article{
				ShopId:         shopId,
				Code:           code,
				Name:           row.Name,
				Description:    row.Description,
				Size:           row.Size,
				Color:          row.Color,
				Season:         row.Season,
				Category:       row.Category,
				CostPrice:      decimal.Zero,
				SalePrice:      row.Price,
				StockAvailable: 1,
				IsActive:       utils.NewTrue(),
			})
			code++
		}
	}
	return articles
}

// CreateArticlesFromImport reads an xlsx stream and inserts every unit
// as an article in one transaction. Codes continue from the shop's
// current maximum, so repeated imports never collide.
func CreateArticlesFromImport(ctx context.Context, reader io.Reader) (*ImportResult, error) {
	shopId, ok := utils.GetShopIdFromContext(ctx)
	if !ok || shopId == "" {
		return nil, errors.New("shop id is required")
	}

	rows, skipped, err := parseImportRows(reader)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no importable rows found", utils.ErrorValidation)
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	// max(code) read and insert must share the transaction or two
	// concurrent imports would mint the same codes
	var maxCode int
	if err := tx.Model(&Article{}).
		Where("shop_id = ?", shopId).
		Select("COALESCE(MAX(code), 0)").Scan(&maxCode).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	articles := expandImportRows(shopId, rows, maxCode+1)
	if err := tx.CreateInBatches(&articles, 100).Error; err != nil {
		tx.Rollback()
		if isDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: import raced another writer", utils.ErrorDuplicateCode)
		}
		return nil, err
	}

	if err := createHistory(tx, shopId, "article", 0, "imported", map[string]interface{}{
		"articles_created": len(articles),
		"first_code":       maxCode + 1,
		"last_code":        maxCode + len(articles),
	}); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	_ = config.RemoveRedisKey("ArticleCategories:" + shopId)

	return &ImportResult{
		ArticlesCreated: len(articles),
		RowsRead:        len(rows),
		RowsSkipped:     skipped,
		FirstCode:       maxCode + 1,
		LastCode:        maxCode + len(articles),
	}, nil
}
