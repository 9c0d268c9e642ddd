package utils

import (
	"context"
	"fmt"
	"reflect"

	"github.com/atelierpos/boutique_backend/config"
)

// check if id exists, using ctx's shop_id in WHERE, return RecordNotFound error
func ValidateResourceId[T any](ctx context.Context, shopId string, id interface{}) error {

	count, err := ResourceCountWhere[T](ctx, shopId, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}

	return nil
}

func ValidateUnique[T any](ctx context.Context, shopId string, column string, value interface{}, exceptId interface{}) error {
	var count int64
	var err error
	if reflect.ValueOf(exceptId).IsZero() {
		count, err = ResourceCountWhere[T](ctx, shopId, column+" = ?", value)
	} else {
		count, err = ResourceCountWhere[T](ctx, shopId, column+" = ? AND NOT id = ?", value, exceptId)
	}

	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: duplicate %s", ErrorValidation, column)
	}
	return nil
}

// count records, using WHERE shop_id = ? AND $condition
// shop_id can be blank for maintenance commands
func ResourceCountWhere[T any](ctx context.Context, shopId string, condition string, value ...interface{}) (int64, error) {
	var model T

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&model)
	var count int64
	if shopId != "" {
		dbCtx.Where("shop_id = ?", shopId)
	}
	dbCtx.Where(condition, value...)
	if err := dbCtx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
