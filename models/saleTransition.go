package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/atelierpos/boutique_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// allowedTransitions is the sale state machine. Paid and cancelled are
// terminal; the only way out of paid is deleting the sale, which keeps
// the ledger entry.
var allowedTransitions = map[SaleState][]SaleState{
	SaleStatePending: {SaleStatePaid, SaleStateDebt, SaleStateCancelled},
	SaleStateDebt:    {SaleStatePaid, SaleStateCancelled},
}

func CanTransition(from SaleState, to SaleState) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ApplySaleTransition moves a sale to a target state inside the
// caller's transaction: the state change, stock movement, ledger entry
// and audit row all commit or roll back together. The sale row is
// locked for the duration so a concurrent transition on the same sale
// serializes here. A target equal to the current state is a no-op
// (changed=false) so a retried request cannot post the ledger twice.
func ApplySaleTransition(tx *gorm.DB, shopId string, saleId int, target SaleState, method *PaymentMethod) (*Sale, bool, error) {
	var sale Sale
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Lines").
		Where("shop_id = ? AND id = ?", shopId, saleId).
		First(&sale).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, fmt.Errorf("%w: sale %d", utils.ErrorRecordNotFound, saleId)
		}
		return nil, false, err
	}

	if sale.State == target {
		return &sale, false, nil
	}

	if !CanTransition(sale.State, target) {
		return nil, false, fmt.Errorf("%w: %s -> %s", utils.ErrorInvalidTransition, sale.State, target)
	}

	previousState := sale.State
	updates := map[string]interface{}{"state": target}

	switch target {
	case SaleStatePaid:
		if method == nil || !method.IsValid() {
			return nil, false, fmt.Errorf("%w: paying a sale needs a payment method", utils.ErrorValidation)
		}
		for _, line := range sale.Lines {
			if err := commitSaleArticleStock(tx, shopId, line.ArticleId, line.Quantity); err != nil {
				return nil, false, err
			}
		}
		now := time.Now()
		sale.PaymentMethod = method
		sale.PaidAt = &now
		updates["payment_method"] = method
		updates["paid_at"] = now
	case SaleStateDebt:
		if sale.CustomerId == nil {
			return nil, false, fmt.Errorf("%w: debt sale needs a customer", utils.ErrorValidation)
		}
	case SaleStateCancelled:
		for _, line := range sale.Lines {
			if err := releaseArticleStock(tx, shopId, line.ArticleId, line.Quantity); err != nil {
				return nil, false, err
			}
		}
	}

	if err := tx.Model(&Sale{}).Where("id = ?", sale.ID).Updates(updates).Error; err != nil {
		return nil, false, err
	}
	sale.State = target

	if target == SaleStatePaid {
		if err := postSaleCashEntry(tx, shopId, &sale); err != nil {
			return nil, false, err
		}
	}

	if err := createHistory(tx, shopId, "sale", sale.ID, "state_changed", map[string]interface{}{
		"from": previousState,
		"to":   target,
	}); err != nil {
		return nil, false, err
	}

	return &sale, true, nil
}
