package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atelierpos/boutique_backend/config"
	"github.com/atelierpos/boutique_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Sale struct {
	ID            int             `gorm:"primary_key" json:"id"`
	ShopId        string          `gorm:"index;not null" json:"shop_id" binding:"required"`
	CustomerId    *int            `gorm:"index" json:"customer_id"`
	Customer      *Customer       `json:"customer,omitempty"`
	State         SaleState       `gorm:"size:20;not null;index" json:"state"`
	PaymentMethod *PaymentMethod  `gorm:"size:30" json:"payment_method"`
	Total         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total"`
	Notes         string          `gorm:"type:text" json:"notes"`
	PaidAt        *time.Time      `json:"paid_at"`
	Lines         []SaleLine      `json:"lines"`
	CreatedAt     time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type SaleLine struct {
	ID        int             `gorm:"primary_key" json:"id"`
	SaleId    int             `gorm:"index;not null" json:"sale_id"`
	ArticleId int             `gorm:"index;not null" json:"article_id"`
	Article   *Article        `json:"article,omitempty"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	LineTotal decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"line_total"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewSaleLine struct {
	ArticleId int              `json:"article_id" binding:"required"`
	Quantity  int              `json:"quantity" binding:"required"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

type NewSale struct {
	CustomerId    *int           `json:"customer_id"`
	State         SaleState      `json:"state"`
	PaymentMethod *PaymentMethod `json:"payment_method"`
	Notes         string         `json:"notes"`
	Lines         []NewSaleLine  `json:"lines" binding:"required"`
}

type SalesEdge Edge[Sale]
type SalesConnection struct {
	Edges    []*SalesEdge `json:"edges"`
	PageInfo *PageInfo    `json:"pageInfo"`
}

func (s Sale) GetCursor() string {
	return s.CreatedAt.String()
}

func (s Sale) GetId() int {
	return s.ID
}

func (input *NewSale) validate(ctx context.Context, shopId string) error {
	if len(input.Lines) == 0 {
		return fmt.Errorf("%w: sale needs at least one line", utils.ErrorValidation)
	}
	if input.State == "" {
		input.State = SaleStatePending
	}
	switch input.State {
	case SaleStatePending, SaleStateDebt:
	case SaleStatePaid:
		if input.PaymentMethod == nil || !input.PaymentMethod.IsValid() {
			return fmt.Errorf("%w: paid sale needs a payment method", utils.ErrorValidation)
		}
	default:
		return fmt.Errorf("%w: sale cannot start as %s", utils.ErrorValidation, input.State)
	}
	if input.CustomerId != nil {
		if err := utils.ValidateResourceId[Customer](ctx, shopId, *input.CustomerId); err != nil {
			return err
		}
	}
	// debt requires someone to collect from later
	if input.State == SaleStateDebt && input.CustomerId == nil {
		return fmt.Errorf("%w: debt sale needs a customer", utils.ErrorValidation)
	}
	seen := make(map[int]bool, len(input.Lines))
	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return fmt.Errorf("%w: line quantity must be positive", utils.ErrorValidation)
		}
		if line.UnitPrice != nil && line.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: unit price cannot be negative", utils.ErrorValidation)
		}
		if seen[line.ArticleId] {
			return fmt.Errorf("%w: article %d appears on more than one line", utils.ErrorValidation, line.ArticleId)
		}
		seen[line.ArticleId] = true
	}
	return nil
}

// CreateSale books a sale and reserves stock for every line in one
// transaction. A sale created directly as paid additionally commits the
// reservation and posts the cash entry before the commit, so either the
// whole checkout lands or none of it does.
func CreateSale(ctx context.Context, input *NewSale) (*Sale, error) {
	shopId, ok := utils.GetShopIdFromContext(ctx)
	if !ok || shopId == "" {
		return nil, errors.New("shop id is required")
	}

	if err := input.validate(ctx, shopId); err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	total := decimal.Zero
	lines := make([]SaleLine, 0, len(input.Lines))
	for _, lineInput := range input.Lines {
		var article Article
		err := tx.Where("shop_id = ? AND id = ?", shopId, lineInput.ArticleId).First(&article).Error
		if err != nil {
			tx.Rollback()
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: article %d", utils.ErrorRecordNotFound, lineInput.ArticleId)
			}
			return nil, err
		}
		if article.IsActive != nil && !*article.IsActive {
			tx.Rollback()
			return nil, fmt.Errorf("%w: article %d is inactive", utils.ErrorValidation, lineInput.ArticleId)
		}

		if err := reserveArticleStock(tx, shopId, article.ID, lineInput.Quantity); err != nil {
			tx.Rollback()
			return nil, err
		}

		// price on the line wins over the catalog price
		unitPrice := article.SalePrice
		if lineInput.UnitPrice != nil {
			unitPrice = *lineInput.UnitPrice
		}
		lineTotal := unitPrice.Mul(decimal.NewFromInt(int64(lineInput.Quantity)))
		total = total.Add(lineTotal)
		lines = append(lines, SaleLine{
			ArticleId: article.ID,
			Quantity:  lineInput.Quantity,
			UnitPrice: unitPrice,
			LineTotal: lineTotal,
		})
	}

	sale := Sale{
		ShopId:        shopId,
		CustomerId:    input.CustomerId,
		State:         input.State,
		PaymentMethod: input.PaymentMethod,
		Total:         total,
		Notes:         input.Notes,
		Lines:         lines,
	}

	if err := tx.Create(&sale).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if input.State == SaleStatePaid {
		for _, line := range sale.Lines {
			if err := commitSaleArticleStock(tx, shopId, line.ArticleId, line.Quantity); err != nil {
				tx.Rollback()
				return nil, err
			}
		}
		now := time.Now()
		sale.PaidAt = &now
		if err := tx.Model(&Sale{}).Where("id = ?", sale.ID).UpdateColumn("paid_at", now).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := postSaleCashEntry(tx, shopId, &sale); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := createHistory(tx, shopId, "sale", sale.ID, "created", map[string]interface{}{
		"state": sale.State,
		"total": sale.Total,
	}); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	PublishSaleEvent(shopId, SaleEventCreated, &sale)
	if sale.State == SaleStatePaid {
		PublishSaleEvent(shopId, SaleEventPaid, &sale)
	}

	return &sale, nil
}

func GetSale(ctx context.Context, id int) (*Sale, error) {
	shopId, ok := utils.GetShopIdFromContext(ctx)
	if !ok || shopId == "" {
		return nil, errors.New("shop id is required")
	}

	return utils.FetchModel[Sale](ctx, shopId, id, "Lines", "Lines.Article", "Customer")
}

type SaleFilter struct {
	State      *SaleState
	CustomerId *int
	From       *time.Time
	To         *time.Time
}

func PaginateSale(ctx context.Context, limit *int, after *string, filter *SaleFilter) (*SalesConnection, error) {
	shopId, ok := utils.GetShopIdFromContext(ctx)
	if !ok || shopId == "" {
		return nil, errors.New("shop id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Preload("Lines").Preload("Customer").Where("shop_id = ?", shopId)
	if filter != nil {
		if filter.State != nil {
			dbCtx.Where("state = ?", filter.State)
		}
		if filter.CustomerId != nil {
			dbCtx.Where("customer_id = ?", filter.CustomerId)
		}
		if filter.From != nil {
			dbCtx.Where("created_at >= ?", filter.From)
		}
		if filter.To != nil {
			dbCtx.Where("created_at < ?", filter.To)
		}
	}

	edges, pageInfo, err := FetchPageCompositeCursor[Sale](dbCtx, *limit, after, "created_at", "<")
	if err != nil {
		return nil, err
	}

	var salesConnection SalesConnection
	salesConnection.PageInfo = pageInfo
	for _, edge := range edges {
		saleEdge := SalesEdge(edge)
		salesConnection.Edges = append(salesConnection.Edges, &saleEdge)
	}

	return &salesConnection, err
}

// ListSalesForCustomer returns the full (unpaginated) sale history for
// one customer, newest first.
func ListSalesForCustomer(ctx context.Context, customerId int) ([]*Sale, error) {
	shopId, ok := utils.GetShopIdFromContext(ctx)
	if !ok || shopId == "" {
		return nil, errors.New("shop id is required")
	}

	if err := utils.ValidateResourceId[Customer](ctx, shopId, customerId); err != nil {
		return nil, err
	}

	db := config.GetDB()
	sales := make([]*Sale, 0)
	err := db.WithContext(ctx).Preload("Lines").Preload("Lines.Article").
		Where("shop_id = ? AND customer_id = ?", shopId, customerId).
		Order("created_at DESC, id DESC").
		Find(&sales).Error
	return sales, err
}

// DeleteSale removes a sale and its lines. Open sales (pending, debt)
// release their reservations first. Paid sales keep their cash entry
// and committed stock untouched; cancelled sales already released on
// cancellation, so nothing moves.
func DeleteSale(ctx context.Context, id int) error {
	shopId, ok := utils.GetShopIdFromContext(ctx)
	if !ok || shopId == "" {
		return errors.New("shop id is required")
	}

	sale, err := utils.FetchModel[Sale](ctx, shopId, id, "Lines")
	if err != nil {
		return err
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	if sale.State == SaleStatePending || sale.State == SaleStateDebt {
		for _, line := range sale.Lines {
			if err := releaseArticleStock(tx, shopId, line.ArticleId, line.Quantity); err != nil {
				tx.Rollback()
				return err
			}
		}
	}

	if err := tx.Where("sale_id = ?", sale.ID).Delete(&SaleLine{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Delete(&sale).Error; err != nil {
		tx.Rollback()
		return err
	}

	if err := createHistory(tx, shopId, "sale", sale.ID, "deleted", map[string]interface{}{
		"state": sale.State,
		"total": sale.Total,
	}); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return err
	}

	PublishSaleEvent(shopId, SaleEventDeleted, sale)

	return nil
}
