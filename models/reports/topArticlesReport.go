package reports

import (
	"context"
	"errors"
	"time"

	"github.com/atelierpos/boutique_backend/config"
	"github.com/atelierpos/boutique_backend/models"
	"github.com/atelierpos/boutique_backend/utils"
	"github.com/shopspring/decimal"
)

type TopArticleResponse struct {
	ArticleId   int             `json:"articleId"`
	ArticleCode int             `json:"articleCode"`
	ArticleName string          `json:"articleName"`
	Category    *string         `json:"category,omitempty"`
	SoldQty     int             `json:"soldQty"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	TotalCost   decimal.Decimal `json:"totalCost"`
	Margin      decimal.Decimal `json:"margin"`
}

// GetTopArticlesReport ranks articles by revenue over paid sales in the
// window. Cost and margin use the article's current cost price.
func GetTopArticlesReport(ctx context.Context, fromDate time.Time, toDate time.Time, category *string, limit int) ([]*TopArticleResponse, error) {
	sqlT := `
SELECT
    a.id AS article_id,
    a.code AS article_code,
    a.name AS article_name,
    a.category,
    SUM(sl.quantity) AS sold_qty,
    SUM(sl.line_total) AS total_amount,
    SUM(sl.quantity * a.cost_price) AS total_cost,
    SUM(sl.line_total) - SUM(sl.quantity * a.cost_price) AS margin
FROM
    sales AS s
        JOIN
    sale_lines AS sl ON sl.sale_id = s.id
        JOIN
    articles AS a ON a.id = sl.article_id
WHERE
    s.shop_id = @shopId
        AND s.state = @paidState
        AND s.paid_at BETWEEN @fromDate AND @toDate
        {{- if .category }} AND a.category = @category {{- end }}
GROUP BY a.id , a.code , a.name , a.category
ORDER BY total_amount DESC
LIMIT @limit;
`
	shopId, ok := utils.GetShopIdFromContext(ctx)
	if !ok || shopId == "" {
		return nil, errors.New("shop id is required")
	}
	if limit <= 0 {
		limit = 10
	}

	sql, err := utils.ExecTemplate(sqlT, map[string]interface{}{
		"category": utils.DereferencePtr(category),
	})
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var results []*TopArticleResponse
	if err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"shopId":    shopId,
		"fromDate":  fromDate,
		"toDate":    toDate,
		"category":  category,
		"limit":     limit,
		"paidState": models.SaleStatePaid,
	}).Scan(&results).Error; err != nil {
		return nil, err
	}

	return results, nil
}

type RevenueByCategoryResponse struct {
	Category    string          `json:"category"`
	SoldQty     int             `json:"soldQty"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

func GetRevenueByCategoryReport(ctx context.Context, fromDate time.Time, toDate time.Time) ([]*RevenueByCategoryResponse, error) {
	sqlT := `
SELECT
    COALESCE(NULLIF(a.category, ''), 'uncategorized') AS category,
    SUM(sl.quantity) AS sold_qty,
    SUM(sl.line_total) AS total_amount
FROM
    sales AS s
        JOIN
    sale_lines AS sl ON sl.sale_id = s.id
        JOIN
    articles AS a ON a.id = sl.article_id
WHERE
    s.shop_id = @shopId
        AND s.state = @paidState
        AND s.paid_at BETWEEN @fromDate AND @toDate
GROUP BY category
ORDER BY total_amount DESC;
`
	shopId, ok := utils.GetShopIdFromContext(ctx)
	if !ok || shopId == "" {
		return nil, errors.New("shop id is required")
	}

	sql, err := utils.ExecTemplate(sqlT, map[string]interface{}{})
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var results []*RevenueByCategoryResponse
	if err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"shopId":    shopId,
		"fromDate":  fromDate,
		"toDate":    toDate,
		"paidState": models.SaleStatePaid,
	}).Scan(&results).Error; err != nil {
		return nil, err
	}

	return results, nil
}
