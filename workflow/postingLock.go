package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireShopPostingLock serializes sale transitions per shop across instances using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same *gorm.DB that will do the posting transaction.
func AcquireShopPostingLock(tx *gorm.DB, shopId string) error {
	lockName := fmt.Sprintf("posting:%s", shopId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire posting lock for shop_id=%s", shopId)
	}
	return nil
}

func ReleaseShopPostingLock(tx *gorm.DB, shopId string) {
	lockName := fmt.Sprintf("posting:%s", shopId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}
