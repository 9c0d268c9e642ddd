package models

import (
	"context"
	"errors"
	"fmt"

	"github.com/atelierpos/boutique_backend/config"
	"github.com/atelierpos/boutique_backend/utils"
	"gorm.io/gorm"
)

// Stock moves between two counters on each article:
//
//	available -> reserved   on sale creation (reserve)
//	reserved  -> available  on cancellation (release)
//	reserved  -> gone       on payment (commit)
//
// Every mutation is a single guarded UPDATE so a concurrent writer can
// never drive a counter negative; zero rows affected means the guard
// failed and the surrounding transaction must roll back.

func reserveArticleStock(tx *gorm.DB, shopId string, articleId int, quantity int) error {
	result := tx.Model(&Article{}).
		Where("shop_id = ? AND id = ? AND stock_available >= ?", shopId, articleId, quantity).
		Updates(map[string]interface{}{
			"stock_available": gorm.Expr("stock_available - ?", quantity),
			"stock_reserved":  gorm.Expr("stock_reserved + ?", quantity),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: article %d", utils.ErrorInsufficientStock, articleId)
	}
	return nil
}

func releaseArticleStock(tx *gorm.DB, shopId string, articleId int, quantity int) error {
	result := tx.Model(&Article{}).
		Where("shop_id = ? AND id = ? AND stock_reserved >= ?", shopId, articleId, quantity).
		Updates(map[string]interface{}{
			"stock_available": gorm.Expr("stock_available + ?", quantity),
			"stock_reserved":  gorm.Expr("stock_reserved - ?", quantity),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: article %d reserved below %d", utils.ErrorInsufficientStock, articleId, quantity)
	}
	return nil
}

func commitSaleArticleStock(tx *gorm.DB, shopId string, articleId int, quantity int) error {
	result := tx.Model(&Article{}).
		Where("shop_id = ? AND id = ? AND stock_reserved >= ?", shopId, articleId, quantity).
		UpdateColumn("stock_reserved", gorm.Expr("stock_reserved - ?", quantity))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: article %d reserved below %d", utils.ErrorInsufficientStock, articleId, quantity)
	}
	return nil
}

type StockAdjustment struct {
	ArticleId int             `json:"article_id" binding:"required"`
	Mode      StockAdjustMode `json:"mode" binding:"required"`
	Quantity  int             `json:"quantity"`
}

// AdjustArticleStock applies a manual correction outside the sale flow.
// Additive mode shifts available by a signed delta; replace mode sets
// available to an absolute value. Reserved is never touched here.
func AdjustArticleStock(ctx context.Context, input *StockAdjustment) (*Article, error) {
	shopId, ok := utils.GetShopIdFromContext(ctx)
	if !ok || shopId == "" {
		return nil, errors.New("shop id is required")
	}

	if !input.Mode.IsValid() {
		return nil, fmt.Errorf("%w: unknown adjust mode %s", utils.ErrorValidation, input.Mode)
	}
	if err := utils.ValidateResourceId[Article](ctx, shopId, input.ArticleId); err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	var result *gorm.DB
	switch input.Mode {
	case StockAdjustModeAdditive:
		// guard keeps the counter from going negative on a downward delta
		result = tx.Model(&Article{}).
			Where("shop_id = ? AND id = ? AND stock_available + ? >= 0", shopId, input.ArticleId, input.Quantity).
			UpdateColumn("stock_available", gorm.Expr("stock_available + ?", input.Quantity))
	case StockAdjustModeReplace:
		if input.Quantity < 0 {
			tx.Rollback()
			return nil, fmt.Errorf("%w: replacement stock cannot be negative", utils.ErrorValidation)
		}
		result = tx.Model(&Article{}).
			Where("shop_id = ? AND id = ?", shopId, input.ArticleId).
			UpdateColumn("stock_available", input.Quantity)
	}
	if result.Error != nil {
		tx.Rollback()
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return nil, fmt.Errorf("%w: article %d", utils.ErrorInsufficientStock, input.ArticleId)
	}

	var article Article
	if err := tx.Where("shop_id = ? AND id = ?", shopId, input.ArticleId).First(&article).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := createHistory(tx, shopId, "article", article.ID, "stock_adjusted", map[string]interface{}{
		"mode":            input.Mode,
		"quantity":        input.Quantity,
		"stock_available": article.StockAvailable,
	}); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return &article, nil
}

// RebuildShopStock recomputes reserved counters from open sale lines.
// Used by the stock-rebuild command after manual data surgery.
func RebuildShopStock(ctx context.Context, shopId string) (int64, error) {
	db := config.GetDB()

	result := db.WithContext(ctx).Exec(`
		UPDATE articles a
		LEFT JOIN (
			SELECT sl.article_id, SUM(sl.quantity) AS open_quantity
			FROM sale_lines sl
			JOIN sales s ON s.id = sl.sale_id
			WHERE s.shop_id = ? AND s.state IN (?, ?)
			GROUP BY sl.article_id
		) open_lines ON open_lines.article_id = a.id
		SET a.stock_reserved = COALESCE(open_lines.open_quantity, 0)
		WHERE a.shop_id = ?`,
		shopId, SaleStatePending, SaleStateDebt, shopId)
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}
