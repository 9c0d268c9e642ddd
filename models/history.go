package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/atelierpos/boutique_backend/config"
	"github.com/atelierpos/boutique_backend/utils"
)

// History is a light audit row written inside the same transaction as
// the change it records.
type History struct {
	ID         int       `gorm:"primary_key" json:"id"`
	ShopId     string    `gorm:"index;not null" json:"shop_id"`
	EntityType string    `gorm:"size:50;not null;index:idx_histories_entity" json:"entity_type"`
	EntityId   int       `gorm:"not null;index:idx_histories_entity" json:"entity_id"`
	Action     string    `gorm:"size:50;not null" json:"action"`
	Detail     string    `gorm:"type:text" json:"detail"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func createHistory(tx *gorm.DB, shopId string, entityType string, entityId int, action string, detail map[string]interface{}) error {
	detailJson := ""
	if detail != nil {
		b, err := json.Marshal(detail)
		if err != nil {
			return err
		}
		detailJson = string(b)
	}

	history := History{
		ShopId:     shopId,
		EntityType: entityType,
		EntityId:   entityId,
		Action:     action,
		Detail:     detailJson,
	}
	return tx.Create(&history).Error
}

// GetEntityHistory lists audit rows for one entity, newest first.
func GetEntityHistory(ctx context.Context, entityType string, entityId int, limit int) ([]*History, error) {
	shopId, ok := utils.GetShopIdFromContext(ctx)
	if !ok || shopId == "" {
		return nil, errors.New("shop id is required")
	}
	if limit <= 0 {
		limit = 50
	}

	db := config.GetDB()
	histories := make([]*History, 0)
	err := db.WithContext(ctx).
		Where("shop_id = ? AND entity_type = ? AND entity_id = ?", shopId, entityType, entityId).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&histories).Error
	return histories, err
}
