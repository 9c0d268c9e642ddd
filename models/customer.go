package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atelierpos/boutique_backend/config"
	"github.com/atelierpos/boutique_backend/utils"
	"github.com/shopspring/decimal"
)

type Customer struct {
	ID         int       `gorm:"primary_key" json:"id"`
	ShopId     string    `gorm:"index;not null" json:"shop_id" binding:"required"`
	Name       string    `gorm:"size:255;not null" json:"name" binding:"required"`
	Surname    string    `gorm:"size:255" json:"surname"`
	NationalId string    `gorm:"size:50;index" json:"national_id"`
	Phone      string    `gorm:"size:50" json:"phone"`
	Email      string    `gorm:"size:255" json:"email"`
	Address    string    `gorm:"size:255" json:"address"`
	Notes      string    `gorm:"type:text" json:"notes"`
	IsActive   *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCustomer struct {
	Name       string `json:"name" binding:"required"`
	Surname    string `json:"surname"`
	NationalId string `json:"national_id"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Address    string `json:"address"`
	Notes      string `json:"notes"`
}

// CustomerBalance carries a customer plus the money still owed across
// open sales.
type CustomerBalance struct {
	Customer
	PendingTotal decimal.Decimal `json:"pending_total"`
	DebtTotal    decimal.Decimal `json:"debt_total"`
	PaidTotal    decimal.Decimal `json:"paid_total"`
	OpenSales    int             `json:"open_sales"`
}

type CustomersEdge Edge[Customer]
type CustomersConnection struct {
	Edges    []*CustomersEdge `json:"edges"`
	PageInfo *PageInfo        `json:"pageInfo"`
}

func (c Customer) GetCursor() string {
	return c.CreatedAt.String()
}

func (c Customer) GetId() int {
	return c.ID
}

func (input *NewCustomer) validate(ctx context.Context, shopId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Customer](ctx, shopId, id); err != nil {
			return err
		}
	}
	if input.Name == "" {
		return fmt.Errorf("%w: name is required", utils.ErrorValidation)
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return fmt.Errorf("%w: %s is not a valid phone number", utils.ErrorValidation, input.Phone)
		}
	}
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return fmt.Errorf("%w: %s is not a valid email", utils.ErrorValidation, input.Email)
	}
	return nil
}

func CreateCustomer(ctx context.Context, input *NewCustomer) (*Customer, error) {
	shopId, ok := utils.GetShopIdFromContext(ctx)
	if !ok || shopId == "" {
		return nil, errors.New("shop id is required")
	}

	if err := input.validate(ctx, shopId, 0); err != nil {
		return nil, err
	}

	customer := Customer{
		ShopId:     shopId,
		Name:       input.Name,
		Surname:    input.Surname,
		NationalId: input.NationalId,
		Phone:      input.Phone,
		Email:      input.Email,
		Address:    input.Address,
		Notes:      input.Notes,
		IsActive:   utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&customer).Error; err != nil {
		return nil, err
	}

	if err := utils.RemoveRedisBoth[Customer](customer.ID, shopId); err != nil {
		return nil, err
	}

	return &customer, nil
}

// ListCustomers returns every customer of the shop, cached; the till
// uses it for the checkout dropdown.
func ListCustomers(ctx context.Context) ([]*Customer, error) {
	shopId, ok := utils.GetShopIdFromContext(ctx)
	if !ok || shopId == "" {
		return nil, errors.New("shop id is required")
	}

	cached, err := utils.RetrieveRedisList[Customer](shopId)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	customers, err := utils.FetchAllModels[Customer](ctx, shopId)
	if err != nil {
		return nil, err
	}
	if err := utils.StoreRedisList[Customer](customers, shopId); err != nil {
		return nil, err
	}
	return customers, nil
}

func UpdateCustomer(ctx context.Context, id int, input *NewCustomer) (*Customer, error) {
	shopId, ok := utils.GetShopIdFromContext(ctx)
	if !ok || shopId == "" {
		return nil, errors.New("shop id is required")
	}

	if err := input.validate(ctx, shopId, id); err != nil {
		return nil, err
	}

	customer, err := utils.FetchModel[Customer](ctx, shopId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&customer).Updates(map[string]interface{}{
		"Name":       input.Name,
		"Surname":    input.Surname,
		"NationalId": input.NationalId,
		"Phone":      input.Phone,
		"Email":      input.Email,
		"Address":    input.Address,
		"Notes":      input.Notes,
	}).Error
	if err != nil {
		return nil, err
	}

	if err := utils.RemoveRedisBoth[Customer](id, shopId); err != nil {
		return nil, err
	}

	return customer, nil
}

// ToggleActiveCustomer deactivates or reactivates a customer; rows are
// never hard-deleted so sale history keeps its reference. Deactivation
// refuses while the customer still has open sales.
func ToggleActiveCustomer(ctx context.Context, id int, isActive bool) (*Customer, error) {
	shopId, ok := utils.GetShopIdFromContext(ctx)
	if !ok || shopId == "" {
		return nil, errors.New("shop id is required")
	}

	customer, err := utils.FetchModel[Customer](ctx, shopId, id)
	if err != nil {
		return nil, err
	}

	if !isActive {
		openCount, err := utils.ResourceCountWhere[Sale](ctx, shopId,
			"customer_id = ? AND state IN (?, ?)", id, SaleStatePending, SaleStateDebt)
		if err != nil {
			return nil, err
		}
		if openCount > 0 {
			return nil, fmt.Errorf("%w: customer has %d open sales", utils.ErrorValidation, openCount)
		}
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&customer).UpdateColumn("IsActive", isActive).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisBoth[Customer](id, shopId); err != nil {
		return nil, err
	}
	return customer, nil
}

func GetCustomer(ctx context.Context, id int) (*Customer, error) {
	shopId, ok := utils.GetShopIdFromContext(ctx)
	if !ok || shopId == "" {
		return nil, errors.New("shop id is required")
	}

	cached, err := utils.RetrieveRedis[Customer](id)
	if err != nil {
		return nil, err
	}
	if cached != nil && cached.ShopId == shopId {
		return cached, nil
	}

	customer, err := utils.FetchModel[Customer](ctx, shopId, id)
	if err != nil {
		return nil, err
	}
	if err := utils.StoreRedis[Customer](customer, customer.ID); err != nil {
		return nil, err
	}
	return customer, nil
}

func PaginateCustomer(ctx context.Context, limit *int, after *string, search *string, isActive *bool) (*CustomersConnection, error) {
	shopId, ok := utils.GetShopIdFromContext(ctx)
	if !ok || shopId == "" {
		return nil, errors.New("shop id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("shop_id = ?", shopId)
	if search != nil && *search != "" {
		like := "%" + *search + "%"
		dbCtx.Where("name LIKE ? OR surname LIKE ? OR national_id LIKE ? OR phone LIKE ?", like, like, like, like)
	}
	if isActive != nil {
		dbCtx.Where("is_active = ?", isActive)
	}

	edges, pageInfo, err := FetchPageCompositeCursor[Customer](dbCtx, *limit, after, "created_at", "<")
	if err != nil {
		return nil, err
	}

	var customersConnection CustomersConnection
	customersConnection.PageInfo = pageInfo
	for _, edge := range edges {
		customerEdge := CustomersEdge(edge)
		customersConnection.Edges = append(customersConnection.Edges, &customerEdge)
	}

	return &customersConnection, err
}

// GetCustomerBalance sums what a customer still owes on pending and
// debt sales, alongside their all-time paid total.
func GetCustomerBalance(ctx context.Context, id int) (*CustomerBalance, error) {
	shopId, ok := utils.GetShopIdFromContext(ctx)
	if !ok || shopId == "" {
		return nil, errors.New("shop id is required")
	}

	customer, err := utils.FetchModel[Customer](ctx, shopId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var row struct {
		PendingTotal decimal.Decimal
		DebtTotal    decimal.Decimal
		PaidTotal    decimal.Decimal
		OpenSales    int
	}
	err = db.WithContext(ctx).Model(&Sale{}).
		Select(`COALESCE(SUM(CASE WHEN state = ? THEN total ELSE 0 END), 0) AS pending_total,
			COALESCE(SUM(CASE WHEN state = ? THEN total ELSE 0 END), 0) AS debt_total,
			COALESCE(SUM(CASE WHEN state = ? THEN total ELSE 0 END), 0) AS paid_total,
			COALESCE(SUM(CASE WHEN state IN (?, ?) THEN 1 ELSE 0 END), 0) AS open_sales`,
			SaleStatePending, SaleStateDebt, SaleStatePaid, SaleStatePending, SaleStateDebt).
		Where("shop_id = ? AND customer_id = ?", shopId, id).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	return &CustomerBalance{
		Customer:     *customer,
		PendingTotal: row.PendingTotal,
		DebtTotal:    row.DebtTotal,
		PaidTotal:    row.PaidTotal,
		OpenSales:    row.OpenSales,
	}, nil
}
