package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atelierpos/boutique_backend/config"
	"github.com/atelierpos/boutique_backend/models"
	"github.com/atelierpos/boutique_backend/utils"
	"github.com/bsm/redislock"
	"gorm.io/gorm"
)

// TransitionSale drives a sale through the state machine. Two layers of
// locking: a best-effort redis lock keeps competing app instances from
// piling onto the database, and the MySQL advisory lock is the real
// gate so correctness never depends on redis being up.
func TransitionSale(ctx context.Context, saleId int, target models.SaleState, method *models.PaymentMethod) (*models.Sale, error) {
	shopId, ok := utils.GetShopIdFromContext(ctx)
	if !ok || shopId == "" {
		return nil, errors.New("shop id is required")
	}

	locker := config.GetRedisLock()
	if locker != nil {
		redisLock, err := locker.Obtain(ctx, fmt.Sprintf("sale-transition:%s", shopId), 30*time.Second, &redislock.Options{
			RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(200*time.Millisecond), 10),
		})
		if err == nil {
			defer redisLock.Release(context.Background())
		} else if !errors.Is(err, redislock.ErrNotObtained) {
			config.LogError(config.GetLogger(), "workflow", "TransitionSale", "redis lock", shopId, err)
		}
	}

	db := config.GetDB()
	var (
		sale    *models.Sale
		changed bool
	)
	// RELEASE_LOCK must run on the still-open transaction; a committed or
	// rolled-back handle can no longer execute SQL, and a stranded GET_LOCK
	// blocks every later transition on that shop until the pooled
	// connection dies. The deferred release inside the closure fires
	// before gorm commits.
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireShopPostingLock(tx, shopId); err != nil {
			return err
		}
		defer ReleaseShopPostingLock(tx, shopId)

		var err error
		sale, changed, err = models.ApplySaleTransition(tx, shopId, saleId, target, method)
		return err
	})
	if err != nil {
		return nil, err
	}

	if changed {
		models.PublishSaleEvent(shopId, models.SaleEventStateChanged, sale)
		if target == models.SaleStatePaid {
			models.PublishSaleEvent(shopId, models.SaleEventPaid, sale)
		}
	}

	return sale, nil
}
