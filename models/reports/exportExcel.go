package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atelierpos/boutique_backend/config"
	"github.com/atelierpos/boutique_backend/models"
	"github.com/atelierpos/boutique_backend/utils"
	"github.com/xuri/excelize/v2"
)

type saleExportRow struct {
	SaleId        int
	CreatedAt     time.Time
	State         string
	CustomerName  *string
	PaymentMethod *string
	Total         string
	LineCount     int
}

func fetchSaleExportRows(ctx context.Context, shopId string, fromDate time.Time, toDate time.Time) ([]*saleExportRow, error) {
	sql := `
SELECT
    s.id AS sale_id,
    s.created_at,
    s.state,
    c.name AS customer_name,
    s.payment_method,
    s.total,
    COUNT(sl.id) AS line_count
FROM
    sales AS s
        LEFT JOIN
    customers AS c ON c.id = s.customer_id
        LEFT JOIN
    sale_lines AS sl ON sl.sale_id = s.id
WHERE
    s.shop_id = @shopId
        AND s.created_at BETWEEN @fromDate AND @toDate
GROUP BY s.id , s.created_at , s.state , c.name , s.payment_method , s.total
ORDER BY s.created_at;
`
	db := config.GetDB()
	var rows []*saleExportRow
	if err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"shopId":   shopId,
		"fromDate": fromDate,
		"toDate":   toDate,
	}).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ExportSalesExcel builds an xlsx workbook of sales in the window. The
// caller owns streaming it out and closing it.
func ExportSalesExcel(ctx context.Context, fromDate time.Time, toDate time.Time) (*excelize.File, error) {
	shopId, ok := utils.GetShopIdFromContext(ctx)
	if !ok || shopId == "" {
		return nil, errors.New("shop id is required")
	}

	rows, err := fetchSaleExportRows(ctx, shopId, fromDate, toDate)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{"Sale", "Date", "State", "Customer", "PaymentMethod", "Total", "Lines"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}

	for i, row := range rows {
		rowNo := i + 2
		f.SetCellValue(sheet, "A"+fmt.Sprint(rowNo), row.SaleId)
		f.SetCellValue(sheet, "B"+fmt.Sprint(rowNo), row.CreatedAt.Format("2006-01-02 15:04"))
		f.SetCellValue(sheet, "C"+fmt.Sprint(rowNo), row.State)
		f.SetCellValue(sheet, "D"+fmt.Sprint(rowNo), utils.DereferencePtr(row.CustomerName))
		f.SetCellValue(sheet, "E"+fmt.Sprint(rowNo), utils.DereferencePtr(row.PaymentMethod))
		f.SetCellValue(sheet, "F"+fmt.Sprint(rowNo), row.Total)
		f.SetCellValue(sheet, "G"+fmt.Sprint(rowNo), row.LineCount)
	}

	return f, nil
}

// ExportTopArticlesExcel renders the top-articles ranking as an xlsx
// workbook.
func ExportTopArticlesExcel(ctx context.Context, fromDate time.Time, toDate time.Time, category *string, limit int) (*excelize.File, error) {
	rows, err := GetTopArticlesReport(ctx, fromDate, toDate, category, limit)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{"Code", "Name", "Category", "SoldQty", "Revenue", "Cost", "Margin"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}

	for i, row := range rows {
		rowNo := i + 2
		f.SetCellValue(sheet, "A"+fmt.Sprint(rowNo), row.ArticleCode)
		f.SetCellValue(sheet, "B"+fmt.Sprint(rowNo), row.ArticleName)
		f.SetCellValue(sheet, "C"+fmt.Sprint(rowNo), utils.DereferencePtr(row.Category))
		f.SetCellValue(sheet, "D"+fmt.Sprint(rowNo), row.SoldQty)
		f.SetCellValue(sheet, "E"+fmt.Sprint(rowNo), row.TotalAmount.String())
		f.SetCellValue(sheet, "F"+fmt.Sprint(rowNo), row.TotalCost.String())
		f.SetCellValue(sheet, "G"+fmt.Sprint(rowNo), row.Margin.String())
	}

	return f, nil
}

// ExportCashMovementsExcel builds an xlsx workbook of the ledger in
// the window, oldest first.
func ExportCashMovementsExcel(ctx context.Context, fromDate time.Time, toDate time.Time) (*excelize.File, error) {
	shopId, ok := utils.GetShopIdFromContext(ctx)
	if !ok || shopId == "" {
		return nil, errors.New("shop id is required")
	}

	db := config.GetDB()
	movements := make([]*models.CashMovement, 0)
	err := db.WithContext(ctx).
		Where("shop_id = ? AND created_at BETWEEN ? AND ?", shopId, fromDate, toDate).
		Order("created_at, id").
		Find(&movements).Error
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{"Date", "Type", "Concept", "PaymentMethod", "Amount", "Sale", "PostedBy"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}

	for i, m := range movements {
		rowNo := i + 2
		f.SetCellValue(sheet, "A"+fmt.Sprint(rowNo), m.CreatedAt.Format("2006-01-02 15:04"))
		f.SetCellValue(sheet, "B"+fmt.Sprint(rowNo), string(m.Type))
		f.SetCellValue(sheet, "C"+fmt.Sprint(rowNo), m.Concept)
		if m.PaymentMethod != nil {
			f.SetCellValue(sheet, "D"+fmt.Sprint(rowNo), string(*m.PaymentMethod))
		}
		f.SetCellValue(sheet, "E"+fmt.Sprint(rowNo), m.Amount.String())
		if m.SaleId != nil {
			f.SetCellValue(sheet, "F"+fmt.Sprint(rowNo), *m.SaleId)
		}
		f.SetCellValue(sheet, "G"+fmt.Sprint(rowNo), m.PostedBy)
	}

	return f, nil
}
