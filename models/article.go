package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atelierpos/boutique_backend/config"
	"github.com/atelierpos/boutique_backend/utils"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
)

type Article struct {
	ID             int             `gorm:"primary_key" json:"id"`
	ShopId         string          `gorm:"index;not null;uniqueIndex:ux_articles_shop_code" json:"shop_id" binding:"required"`
	Code           int             `gorm:"not null;uniqueIndex:ux_articles_shop_code" json:"code" binding:"required"`
	Name           string          `gorm:"size:255;not null" json:"name" binding:"required"`
	Description    string          `gorm:"type:text" json:"description"`
	Size           string          `gorm:"size:50" json:"size"`
	Color          string          `gorm:"size:50" json:"color"`
	Season         string          `gorm:"size:50" json:"season"`
	Category       string          `gorm:"size:100;index" json:"category"`
	CostPrice      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cost_price"`
	SalePrice      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sale_price"`
	StockAvailable int             `gorm:"not null;default:0" json:"stock_available"`
	StockReserved  int             `gorm:"not null;default:0" json:"stock_reserved"`
	IsActive       *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewArticle struct {
	Code           int             `json:"code"`
	Name           string          `json:"name" binding:"required"`
	Description    string          `json:"description"`
	Size           string          `json:"size"`
	Color          string          `json:"color"`
	Season         string          `json:"season"`
	Category       string          `json:"category"`
	CostPrice      decimal.Decimal `json:"cost_price"`
	SalePrice      decimal.Decimal `json:"sale_price"`
	StockAvailable int             `json:"stock_available"`
}

type ArticlesEdge Edge[Article]
type ArticlesConnection struct {
	Edges    []*ArticlesEdge `json:"edges"`
	PageInfo *PageInfo       `json:"pageInfo"`
}

// returns decoded cursor string
func (a Article) GetCursor() string {
	return a.CreatedAt.String()
}

func (a Article) GetId() int {
	return a.ID
}

// detect MySQL duplicate-entry (1062) on the shop+code unique index
func isDuplicateKeyError(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

// validate input for both create & update. (id = 0 for create)
func (input *NewArticle) validate(ctx context.Context, shopId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Article](ctx, shopId, id); err != nil {
			return err
		}
	}
	if input.Code <= 0 {
		return fmt.Errorf("%w: code must be positive", utils.ErrorValidation)
	}
	if input.Name == "" {
		return fmt.Errorf("%w: name is required", utils.ErrorValidation)
	}
	if input.CostPrice.IsNegative() || input.SalePrice.IsNegative() {
		return fmt.Errorf("%w: prices cannot be negative", utils.ErrorValidation)
	}
	if input.StockAvailable < 0 {
		return fmt.Errorf("%w: stock cannot be negative", utils.ErrorValidation)
	}
	// code collision surfaces its own error so the caller can prompt for
	// a different code
	if err := utils.ValidateUnique[Article](ctx, shopId, "code", input.Code, id); err != nil {
		if errors.Is(err, utils.ErrorValidation) {
			return fmt.Errorf("%w: %d", utils.ErrorDuplicateCode, input.Code)
		}
		return err
	}
	return nil
}

func CreateArticle(ctx context.Context, input *NewArticle) (*Article, error) {
	shopId, ok := utils.GetShopIdFromContext(ctx)
	if !ok || shopId == "" {
		return nil, errors.New("shop id is required")
	}

	if err := input.validate(ctx, shopId, 0); err != nil {
		return nil, err
	}

	article := Article{
		ShopId:         shopId,
		Code:           input.Code,
		Name:           input.Name,
		Description:    input.Description,
		Size:           input.Size,
		Color:          input.Color,
		Season:         input.Season,
		Category:       input.Category,
		CostPrice:      input.CostPrice,
		SalePrice:      input.SalePrice,
		StockAvailable: input.StockAvailable,
		IsActive:       utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&article).Error; err != nil {
		if isDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: %d", utils.ErrorDuplicateCode, input.Code)
		}
		return nil, err
	}

	// new category invalidates the cached list
	if article.Category != "" {
		_ = config.RemoveRedisKey("ArticleCategories:" + shopId)
	}

	return &article, nil
}

// UpdateArticle never touches the stock counters; use AdjustArticleStock for that.
func UpdateArticle(ctx context.Context, id int, input *NewArticle) (*Article, error) {
	shopId, ok := utils.GetShopIdFromContext(ctx)
	if !ok || shopId == "" {
		return nil, errors.New("shop id is required")
	}

	if err := input.validate(ctx, shopId, id); err != nil {
		return nil, err
	}

	article, err := utils.FetchModel[Article](ctx, shopId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&article).Updates(map[string]interface{}{
		"Code":        input.Code,
		"Name":        input.Name,
		"Description": input.Description,
		"Size":        input.Size,
		"Color":       input.Color,
		"Season":      input.Season,
		"Category":    input.Category,
		"CostPrice":   input.CostPrice,
		"SalePrice":   input.SalePrice,
	}).Error
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: %d", utils.ErrorDuplicateCode, input.Code)
		}
		return nil, err
	}

	_ = config.RemoveRedisKey("ArticleCategories:" + shopId)

	return article, nil
}

// articles are never hard-deleted; deactivate instead
func ToggleActiveArticle(ctx context.Context, id int, isActive bool) (*Article, error) {
	shopId, ok := utils.GetShopIdFromContext(ctx)
	if !ok || shopId == "" {
		return nil, errors.New("shop id is required")
	}

	article, err := utils.FetchModel[Article](ctx, shopId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&article).UpdateColumn("IsActive", isActive).Error; err != nil {
		return nil, err
	}

	return article, nil
}

func GetArticle(ctx context.Context, id int) (*Article, error) {
	shopId, ok := utils.GetShopIdFromContext(ctx)
	if !ok || shopId == "" {
		return nil, errors.New("shop id is required")
	}

	return utils.FetchModel[Article](ctx, shopId, id)
}

// NextArticleCode suggests max(code)+1 for manual entry and bulk import.
func NextArticleCode(ctx context.Context) (int, error) {
	shopId, ok := utils.GetShopIdFromContext(ctx)
	if !ok || shopId == "" {
		return 0, errors.New("shop id is required")
	}

	db := config.GetDB()
	var maxCode int
	if err := db.WithContext(ctx).Model(&Article{}).
		Where("shop_id = ?", shopId).
		Select("COALESCE(MAX(code), 0)").Scan(&maxCode).Error; err != nil {
		return 0, err
	}
	return maxCode + 1, nil
}

func PaginateArticle(ctx context.Context, limit *int, after *string,
	search *string, category *string, isActive *bool) (*ArticlesConnection, error) {

	shopId, ok := utils.GetShopIdFromContext(ctx)
	if !ok || shopId == "" {
		return nil, errors.New("shop id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("shop_id = ?", shopId)
	if search != nil && *search != "" {
		dbCtx.Where("name LIKE ? OR CAST(code AS CHAR) LIKE ?", "%"+*search+"%", "%"+*search+"%")
	}
	if category != nil && *category != "" {
		dbCtx.Where("category = ?", *category)
	}
	if isActive != nil {
		dbCtx.Where("is_active = ?", isActive)
	}

	edges, pageInfo, err := FetchPageCompositeCursor[Article](dbCtx, *limit, after, "created_at", "<")
	if err != nil {
		return nil, err
	}

	var articlesConnection ArticlesConnection
	articlesConnection.PageInfo = pageInfo
	for _, edge := range edges {
		articleEdge := ArticlesEdge(edge)
		articlesConnection.Edges = append(articlesConnection.Edges, &articleEdge)
	}

	return &articlesConnection, err
}

// GetArticleCategories lists distinct categories, redis first then db.
func GetArticleCategories(ctx context.Context) ([]string, error) {
	shopId, ok := utils.GetShopIdFromContext(ctx)
	if !ok || shopId == "" {
		return nil, errors.New("shop id is required")
	}

	categories := make([]string, 0)
	redisKey := "ArticleCategories:" + shopId
	exists, err := config.GetRedisObject(redisKey, &categories)
	if err != nil {
		return nil, err
	}
	if !exists {
		db := config.GetDB()
		if err := db.WithContext(ctx).Model(&Article{}).
			Where("shop_id = ? AND category <> ''", shopId).
			Distinct("category").Order("category").
			Pluck("category", &categories).Error; err != nil {
			return nil, err
		}
		if err := config.SetRedisObject(redisKey, &categories, utils.GetCacheLifespan()); err != nil {
			return nil, err
		}
	}

	return categories, nil
}
