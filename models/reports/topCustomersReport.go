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

type TopCustomerResponse struct {
	CustomerId   int             `json:"customerId"`
	CustomerName string          `json:"customerName"`
	PaidSales    int             `json:"paidSales"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	DebtAmount   decimal.Decimal `json:"debtAmount"`
}

// GetTopCustomersReport ranks customers by paid revenue in the window;
// debt_amount carries whatever they still owe regardless of window.
func GetTopCustomersReport(ctx context.Context, fromDate time.Time, toDate time.Time, limit int) ([]*TopCustomerResponse, error) {
	sqlT := `
SELECT
    c.id AS customer_id,
    c.name AS customer_name,
    COALESCE(paid.paid_sales, 0) AS paid_sales,
    COALESCE(paid.total_amount, 0) AS total_amount,
    COALESCE(owed.debt_amount, 0) AS debt_amount
FROM
    customers AS c
        LEFT JOIN
    (SELECT
        customer_id,
        COUNT(*) AS paid_sales,
        SUM(total) AS total_amount
    FROM sales
    WHERE shop_id = @shopId
        AND state = @paidState
        AND paid_at BETWEEN @fromDate AND @toDate
        AND customer_id IS NOT NULL
    GROUP BY customer_id) AS paid ON paid.customer_id = c.id
        LEFT JOIN
    (SELECT
        customer_id,
        SUM(total) AS debt_amount
    FROM sales
    WHERE shop_id = @shopId
        AND state = @debtState
        AND customer_id IS NOT NULL
    GROUP BY customer_id) AS owed ON owed.customer_id = c.id
WHERE
    c.shop_id = @shopId
        AND (paid.customer_id IS NOT NULL OR owed.customer_id IS NOT NULL)
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

	sql, err := utils.ExecTemplate(sqlT, map[string]interface{}{})
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var results []*TopCustomerResponse
	if err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"shopId":    shopId,
		"fromDate":  fromDate,
		"toDate":    toDate,
		"limit":     limit,
		"paidState": models.SaleStatePaid,
		"debtState": models.SaleStateDebt,
	}).Scan(&results).Error; err != nil {
		return nil, err
	}

	return results, nil
}
