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

// CashMovement is one row of the append-only cash ledger. Rows are
// never updated or deleted; corrections are posted as compensating
// movements.
type CashMovement struct {
	ID            int              `gorm:"primary_key" json:"id"`
	ShopId        string           `gorm:"index;not null" json:"shop_id" binding:"required"`
	Type          CashMovementType `gorm:"size:10;not null;index" json:"type"`
	Amount        decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"amount"`
	Concept       string           `gorm:"size:255;not null" json:"concept"`
	PaymentMethod *PaymentMethod   `gorm:"size:30;index" json:"payment_method"`
	SaleId        *int             `gorm:"index" json:"sale_id"`
	PostedBy      string           `gorm:"size:255" json:"posted_by"`
	CreatedAt     time.Time        `gorm:"autoCreateTime;index" json:"created_at"`
}

type NewCashMovement struct {
	Type          CashMovementType `json:"type" binding:"required"`
	Amount        decimal.Decimal  `json:"amount" binding:"required"`
	Concept       string           `json:"concept" binding:"required"`
	PaymentMethod *PaymentMethod   `json:"payment_method"`
}

type CashMovementsEdge Edge[CashMovement]
type CashMovementsConnection struct {
	Edges    []*CashMovementsEdge `json:"edges"`
	PageInfo *PageInfo            `json:"pageInfo"`
}

type CashSummary struct {
	Entries decimal.Decimal `json:"entries"`
	Exits   decimal.Decimal `json:"exits"`
	Balance decimal.Decimal `json:"balance"`
}

type CashByMethodRow struct {
	PaymentMethod string          `json:"payment_method"`
	Entries       decimal.Decimal `json:"entries"`
	Movements     int             `json:"movements"`
}

func (m CashMovement) GetCursor() string {
	return m.CreatedAt.String()
}

func (m CashMovement) GetId() int {
	return m.ID
}

// postSaleCashEntry writes the ledger entry for a paid sale inside the
// caller's transaction, so payment and entry land atomically.
func postSaleCashEntry(tx *gorm.DB, shopId string, sale *Sale) error {
	if sale.PaymentMethod == nil {
		return fmt.Errorf("%w: paid sale needs a payment method", utils.ErrorValidation)
	}
	if !sale.Total.IsPositive() {
		return fmt.Errorf("%w: sale total must be positive to post", utils.ErrorValidation)
	}

	movement := CashMovement{
		ShopId:        shopId,
		Type:          CashMovementTypeEntry,
		Amount:        sale.Total,
		Concept:       fmt.Sprintf("Sale #%d", sale.ID),
		PaymentMethod: sale.PaymentMethod,
		SaleId:        &sale.ID,
	}
	return tx.Create(&movement).Error
}

// PostCashMovement records a manual entry or exit outside the sale
// flow (supplier payment, till adjustment, owner draw).
func PostCashMovement(ctx context.Context, input *NewCashMovement) (*CashMovement, error) {
	shopId, ok := utils.GetShopIdFromContext(ctx)
	if !ok || shopId == "" {
		return nil, errors.New("shop id is required")
	}

	if !input.Type.IsValid() {
		return nil, fmt.Errorf("%w: unknown movement type %s", utils.ErrorValidation, input.Type)
	}
	if !input.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", utils.ErrorValidation)
	}
	if input.Concept == "" {
		return nil, fmt.Errorf("%w: concept is required", utils.ErrorValidation)
	}
	if input.PaymentMethod != nil && !input.PaymentMethod.IsValid() {
		return nil, fmt.Errorf("%w: unknown payment method %s", utils.ErrorValidation, *input.PaymentMethod)
	}

	userName, _ := utils.GetUserNameFromContext(ctx)

	movement := CashMovement{
		ShopId:        shopId,
		Type:          input.Type,
		Amount:        input.Amount,
		Concept:       input.Concept,
		PaymentMethod: input.PaymentMethod,
		PostedBy:      userName,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&movement).Error; err != nil {
		return nil, err
	}

	return &movement, nil
}

type CashMovementFilter struct {
	Type          *CashMovementType
	PaymentMethod *PaymentMethod
	From          *time.Time
	To            *time.Time
}

func PaginateCashMovement(ctx context.Context, limit *int, after *string, filter *CashMovementFilter) (*CashMovementsConnection, error) {
	shopId, ok := utils.GetShopIdFromContext(ctx)
	if !ok || shopId == "" {
		return nil, errors.New("shop id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("shop_id = ?", shopId)
	if filter != nil {
		if filter.Type != nil {
			dbCtx.Where("type = ?", filter.Type)
		}
		if filter.PaymentMethod != nil {
			dbCtx.Where("payment_method = ?", filter.PaymentMethod)
		}
		if filter.From != nil {
			dbCtx.Where("created_at >= ?", filter.From)
		}
		if filter.To != nil {
			dbCtx.Where("created_at < ?", filter.To)
		}
	}

	edges, pageInfo, err := FetchPageCompositeCursor[CashMovement](dbCtx, *limit, after, "created_at", "<")
	if err != nil {
		return nil, err
	}

	var movementsConnection CashMovementsConnection
	movementsConnection.PageInfo = pageInfo
	for _, edge := range edges {
		movementEdge := CashMovementsEdge(edge)
		movementsConnection.Edges = append(movementsConnection.Edges, &movementEdge)
	}

	return &movementsConnection, err
}

// GetCashSummary totals entries and exits over a window. Balance is
// entries minus exits; a nil window means all time.
func GetCashSummary(ctx context.Context, from *time.Time, to *time.Time) (*CashSummary, error) {
	shopId, ok := utils.GetShopIdFromContext(ctx)
	if !ok || shopId == "" {
		return nil, errors.New("shop id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&CashMovement{}).Where("shop_id = ?", shopId)
	if from != nil {
		dbCtx.Where("created_at >= ?", from)
	}
	if to != nil {
		dbCtx.Where("created_at < ?", to)
	}

	var row struct {
		Entries decimal.Decimal
		Exits   decimal.Decimal
	}
	err := dbCtx.Select(`COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE 0 END), 0) AS entries,
		COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE 0 END), 0) AS exits`,
		CashMovementTypeEntry, CashMovementTypeExit).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	return &CashSummary{
		Entries: row.Entries,
		Exits:   row.Exits,
		Balance: row.Entries.Sub(row.Exits),
	}, nil
}

// GetCashByPaymentMethod breaks entries down per payment method over a
// window. Movements with no method are grouped under "unspecified".
func GetCashByPaymentMethod(ctx context.Context, from *time.Time, to *time.Time) ([]*CashByMethodRow, error) {
	shopId, ok := utils.GetShopIdFromContext(ctx)
	if !ok || shopId == "" {
		return nil, errors.New("shop id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&CashMovement{}).
		Where("shop_id = ? AND type = ?", shopId, CashMovementTypeEntry)
	if from != nil {
		dbCtx.Where("created_at >= ?", from)
	}
	if to != nil {
		dbCtx.Where("created_at < ?", to)
	}

	rows := make([]*CashByMethodRow, 0)
	err := dbCtx.Select(`COALESCE(payment_method, 'unspecified') AS payment_method,
		COALESCE(SUM(amount), 0) AS entries,
		COUNT(*) AS movements`).
		Group("payment_method").
		Order("entries DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	return rows, nil
}
