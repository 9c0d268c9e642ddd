package models_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atelierpos/boutique_backend/config"
	"github.com/atelierpos/boutique_backend/models"
	"github.com/atelierpos/boutique_backend/utils"
	"github.com/atelierpos/boutique_backend/workflow"
	"github.com/shopspring/decimal"
)

func mustCreateArticle(t *testing.T, ctx context.Context, code int, stock int, price int64) *models.Article {
	t.Helper()
	article, err := models.CreateArticle(ctx, &models.NewArticle{
		Code:           code,
		Name:           "Test Garment",
		Size:           "M",
		Color:          "black",
		Category:       "shirts",
		SalePrice:      decimal.NewFromInt(price),
		StockAvailable: stock,
	})
	if err != nil {
		t.Fatalf("CreateArticle: %v", err)
	}
	return article
}

// Regression: creating a pending sale must move stock from available to
// reserved, and cancelling must move it back.
func TestSaleReserveAndCancelRoundTrip(t *testing.T) {
	ctx := setupIntegration(t)

	article := mustCreateArticle(t, ctx, 100, 5, 9000)

	sale, err := models.CreateSale(ctx, &models.NewSale{
		Lines: []models.NewSaleLine{{ArticleId: article.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}
	if sale.State != models.SaleStatePending {
		t.Fatalf("expected pending, got %s", sale.State)
	}
	if !sale.Total.Equal(decimal.NewFromInt(18000)) {
		t.Fatalf("expected total 18000, got %s", sale.Total)
	}

	after, err := models.GetArticle(ctx, article.ID)
	if err != nil {
		t.Fatalf("GetArticle: %v", err)
	}
	if after.StockAvailable != 3 || after.StockReserved != 2 {
		t.Fatalf("after reserve: available=%d reserved=%d, want 3/2", after.StockAvailable, after.StockReserved)
	}

	if _, err := workflow.TransitionSale(ctx, sale.ID, models.SaleStateCancelled, nil); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	after, err = models.GetArticle(ctx, article.ID)
	if err != nil {
		t.Fatalf("GetArticle: %v", err)
	}
	if after.StockAvailable != 5 || after.StockReserved != 0 {
		t.Fatalf("after cancel: available=%d reserved=%d, want 5/0", after.StockAvailable, after.StockReserved)
	}
}

// Regression: paying a sale must consume the reservation and post
// exactly one ledger entry for the sale total, atomically.
func TestSalePaymentPostsLedgerEntry(t *testing.T) {
	ctx := setupIntegration(t)

	article := mustCreateArticle(t, ctx, 200, 4, 12500)

	sale, err := models.CreateSale(ctx, &models.NewSale{
		Lines: []models.NewSaleLine{{ArticleId: article.ID, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}

	method := models.PaymentMethodCash
	paid, err := workflow.TransitionSale(ctx, sale.ID, models.SaleStatePaid, &method)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if paid.PaidAt == nil {
		t.Fatalf("expected paid_at to be set")
	}

	after, err := models.GetArticle(ctx, article.ID)
	if err != nil {
		t.Fatalf("GetArticle: %v", err)
	}
	if after.StockAvailable != 1 || after.StockReserved != 0 {
		t.Fatalf("after pay: available=%d reserved=%d, want 1/0", after.StockAvailable, after.StockReserved)
	}

	shopId, _ := utils.GetShopIdFromContext(ctx)
	db := config.GetDB()
	var movements []models.CashMovement
	if err := db.Where("shop_id = ? AND sale_id = ?", shopId, sale.ID).Find(&movements).Error; err != nil {
		t.Fatalf("load movements: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(movements))
	}
	if movements[0].Type != models.CashMovementTypeEntry {
		t.Fatalf("expected entry, got %s", movements[0].Type)
	}
	if !movements[0].Amount.Equal(decimal.NewFromInt(37500)) {
		t.Fatalf("expected amount 37500, got %s", movements[0].Amount)
	}

	summary, err := models.GetCashSummary(ctx, nil, nil)
	if err != nil {
		t.Fatalf("GetCashSummary: %v", err)
	}
	if !summary.Balance.Equal(decimal.NewFromInt(37500)) {
		t.Fatalf("expected balance 37500, got %s", summary.Balance)
	}

	// A retried pay request is a no-op and must not post a second entry.
	if _, err := workflow.TransitionSale(ctx, sale.ID, models.SaleStatePaid, &method); err != nil {
		t.Fatalf("repeat pay: %v", err)
	}
	if err := db.Where("shop_id = ? AND sale_id = ?", shopId, sale.ID).Find(&movements).Error; err != nil {
		t.Fatalf("reload movements: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("expected ledger entry count to stay at 1, got %d", len(movements))
	}
}

// Regression: the shop's advisory posting lock must be free again after
// every transition, successful or failed. A stranded GET_LOCK blocks
// all later transitions for the shop until the pooled connection dies.
func TestPostingLockReleasedAfterTransition(t *testing.T) {
	ctx := setupIntegration(t)

	article := mustCreateArticle(t, ctx, 250, 4, 6000)
	sale, err := models.CreateSale(ctx, &models.NewSale{
		Lines: []models.NewSaleLine{{ArticleId: article.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}

	shopId, _ := utils.GetShopIdFromContext(ctx)
	db := config.GetDB()
	assertLockFree := func(stage string) {
		t.Helper()
		var free int
		if err := db.Raw("SELECT IS_FREE_LOCK(?)", "posting:"+shopId).Scan(&free).Error; err != nil {
			t.Fatalf("%s: IS_FREE_LOCK: %v", stage, err)
		}
		if free != 1 {
			t.Fatalf("%s: posting lock still held", stage)
		}
	}

	method := models.PaymentMethodCash
	if _, err := workflow.TransitionSale(ctx, sale.ID, models.SaleStatePaid, &method); err != nil {
		t.Fatalf("pay: %v", err)
	}
	assertLockFree("after successful transition")

	if _, err := workflow.TransitionSale(ctx, sale.ID, models.SaleStateCancelled, nil); !errors.Is(err, utils.ErrorInvalidTransition) {
		t.Fatalf("paid->cancelled: expected ErrorInvalidTransition, got %v", err)
	}
	assertLockFree("after failed transition")

	// a second sale on the same shop must not stall on the lock
	sale2, err := models.CreateSale(ctx, &models.NewSale{
		Lines: []models.NewSaleLine{{ArticleId: article.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("CreateSale (second): %v", err)
	}
	start := time.Now()
	if _, err := workflow.TransitionSale(ctx, sale2.ID, models.SaleStatePaid, &method); err != nil {
		t.Fatalf("pay second sale: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("second transition took %s, lock contention suspected", elapsed)
	}
}

// Regression: a paid sale is terminal and a cancelled sale cannot be
// revived.
func TestInvalidTransitionsRejected(t *testing.T) {
	ctx := setupIntegration(t)

	article := mustCreateArticle(t, ctx, 300, 10, 5000)
	method := models.PaymentMethodTransfer

	paidSale, err := models.CreateSale(ctx, &models.NewSale{
		State:         models.SaleStatePaid,
		PaymentMethod: &method,
		Lines:         []models.NewSaleLine{{ArticleId: article.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("CreateSale (paid): %v", err)
	}
	if _, err := workflow.TransitionSale(ctx, paidSale.ID, models.SaleStateCancelled, nil); !errors.Is(err, utils.ErrorInvalidTransition) {
		t.Fatalf("paid->cancelled: expected ErrorInvalidTransition, got %v", err)
	}

	pendingSale, err := models.CreateSale(ctx, &models.NewSale{
		Lines: []models.NewSaleLine{{ArticleId: article.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("CreateSale (pending): %v", err)
	}
	if _, err := workflow.TransitionSale(ctx, pendingSale.ID, models.SaleStateCancelled, nil); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := workflow.TransitionSale(ctx, pendingSale.ID, models.SaleStatePaid, &method); !errors.Is(err, utils.ErrorInvalidTransition) {
		t.Fatalf("cancelled->paid: expected ErrorInvalidTransition, got %v", err)
	}

	// paying without a method is rejected before any stock moves
	pendingSale2, err := models.CreateSale(ctx, &models.NewSale{
		Lines: []models.NewSaleLine{{ArticleId: article.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("CreateSale (pending 2): %v", err)
	}
	if _, err := workflow.TransitionSale(ctx, pendingSale2.ID, models.SaleStatePaid, nil); !errors.Is(err, utils.ErrorValidation) {
		t.Fatalf("pay without method: expected ErrorValidation, got %v", err)
	}
}

// Regression: overselling must fail the whole sale and leave all
// counters untouched, including lines reserved before the failing one.
func TestInsufficientStockRollsBackWholeSale(t *testing.T) {
	ctx := setupIntegration(t)

	plenty := mustCreateArticle(t, ctx, 400, 10, 3000)
	scarce := mustCreateArticle(t, ctx, 401, 1, 8000)

	_, err := models.CreateSale(ctx, &models.NewSale{
		Lines: []models.NewSaleLine{
			{ArticleId: plenty.ID, Quantity: 5},
			{ArticleId: scarce.ID, Quantity: 2},
		},
	})
	if !errors.Is(err, utils.ErrorInsufficientStock) {
		t.Fatalf("expected ErrorInsufficientStock, got %v", err)
	}

	for _, article := range []*models.Article{plenty, scarce} {
		after, err := models.GetArticle(ctx, article.ID)
		if err != nil {
			t.Fatalf("GetArticle: %v", err)
		}
		if after.StockAvailable != article.StockAvailable || after.StockReserved != 0 {
			t.Fatalf("article %d: available=%d reserved=%d, want %d/0",
				article.ID, after.StockAvailable, after.StockReserved, article.StockAvailable)
		}
	}
}

// Regression: debt requires a customer, and debt totals show up on the
// customer balance until the sale is paid.
func TestDebtLifecycle(t *testing.T) {
	ctx := setupIntegration(t)

	article := mustCreateArticle(t, ctx, 500, 3, 20000)

	sale, err := models.CreateSale(ctx, &models.NewSale{
		Lines: []models.NewSaleLine{{ArticleId: article.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}
	if _, err := workflow.TransitionSale(ctx, sale.ID, models.SaleStateDebt, nil); !errors.Is(err, utils.ErrorValidation) {
		t.Fatalf("debt without customer: expected ErrorValidation, got %v", err)
	}

	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{Name: "Ana", Surname: "Gomez"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	debtSale, err := models.CreateSale(ctx, &models.NewSale{
		CustomerId: &customer.ID,
		State:      models.SaleStateDebt,
		Lines:      []models.NewSaleLine{{ArticleId: article.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("CreateSale (debt): %v", err)
	}

	balance, err := models.GetCustomerBalance(ctx, customer.ID)
	if err != nil {
		t.Fatalf("GetCustomerBalance: %v", err)
	}
	if !balance.DebtTotal.Equal(decimal.NewFromInt(20000)) {
		t.Fatalf("expected debt total 20000, got %s", balance.DebtTotal)
	}

	// customer with open sales cannot be deactivated
	if _, err := models.ToggleActiveCustomer(ctx, customer.ID, false); !errors.Is(err, utils.ErrorValidation) {
		t.Fatalf("deactivate customer with open sales: expected ErrorValidation, got %v", err)
	}

	method := models.PaymentMethodMercadoPago
	if _, err := workflow.TransitionSale(ctx, debtSale.ID, models.SaleStatePaid, &method); err != nil {
		t.Fatalf("pay debt: %v", err)
	}

	balance, err = models.GetCustomerBalance(ctx, customer.ID)
	if err != nil {
		t.Fatalf("GetCustomerBalance: %v", err)
	}
	if !balance.DebtTotal.IsZero() {
		t.Fatalf("expected zero debt after payment, got %s", balance.DebtTotal)
	}
}

// Regression: deleting an open sale releases its reservation; deleting
// a paid sale keeps the ledger entry and the committed stock.
func TestDeleteSalePolicies(t *testing.T) {
	ctx := setupIntegration(t)

	article := mustCreateArticle(t, ctx, 600, 6, 7000)

	pending, err := models.CreateSale(ctx, &models.NewSale{
		Lines: []models.NewSaleLine{{ArticleId: article.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("CreateSale (pending): %v", err)
	}
	if err := models.DeleteSale(ctx, pending.ID); err != nil {
		t.Fatalf("DeleteSale (pending): %v", err)
	}
	after, err := models.GetArticle(ctx, article.ID)
	if err != nil {
		t.Fatalf("GetArticle: %v", err)
	}
	if after.StockAvailable != 6 || after.StockReserved != 0 {
		t.Fatalf("after deleting pending sale: available=%d reserved=%d, want 6/0", after.StockAvailable, after.StockReserved)
	}

	method := models.PaymentMethodDebitCard
	paid, err := models.CreateSale(ctx, &models.NewSale{
		State:         models.SaleStatePaid,
		PaymentMethod: &method,
		Lines:         []models.NewSaleLine{{ArticleId: article.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("CreateSale (paid): %v", err)
	}
	if err := models.DeleteSale(ctx, paid.ID); err != nil {
		t.Fatalf("DeleteSale (paid): %v", err)
	}

	after, err = models.GetArticle(ctx, article.ID)
	if err != nil {
		t.Fatalf("GetArticle: %v", err)
	}
	if after.StockAvailable != 5 || after.StockReserved != 0 {
		t.Fatalf("after deleting paid sale: available=%d reserved=%d, want 5/0", after.StockAvailable, after.StockReserved)
	}

	shopId, _ := utils.GetShopIdFromContext(ctx)
	db := config.GetDB()
	var count int64
	if err := db.Model(&models.CashMovement{}).Where("shop_id = ? AND sale_id = ?", shopId, paid.ID).Count(&count).Error; err != nil {
		t.Fatalf("count movements: %v", err)
	}
	if count != 1 {
		t.Fatalf("ledger entry must survive sale deletion, got %d rows", count)
	}
}

// Regression: manual stock adjustments obey the same no-negative
// guards as the sale flow, in both additive and replace modes.
func TestAdjustArticleStock(t *testing.T) {
	ctx := setupIntegration(t)

	article := mustCreateArticle(t, ctx, 800, 5, 2500)

	adjusted, err := models.AdjustArticleStock(ctx, &models.StockAdjustment{
		ArticleId: article.ID,
		Mode:      models.StockAdjustModeAdditive,
		Quantity:  -3,
	})
	if err != nil {
		t.Fatalf("additive -3: %v", err)
	}
	if adjusted.StockAvailable != 2 {
		t.Fatalf("after additive -3: available=%d, want 2", adjusted.StockAvailable)
	}

	// a downward delta past zero is rejected and the counter stays put
	_, err = models.AdjustArticleStock(ctx, &models.StockAdjustment{
		ArticleId: article.ID,
		Mode:      models.StockAdjustModeAdditive,
		Quantity:  -5,
	})
	if !errors.Is(err, utils.ErrorInsufficientStock) {
		t.Fatalf("additive -5: expected ErrorInsufficientStock, got %v", err)
	}
	after, err := models.GetArticle(ctx, article.ID)
	if err != nil {
		t.Fatalf("GetArticle: %v", err)
	}
	if after.StockAvailable != 2 {
		t.Fatalf("after rejected adjustment: available=%d, want 2", after.StockAvailable)
	}

	adjusted, err = models.AdjustArticleStock(ctx, &models.StockAdjustment{
		ArticleId: article.ID,
		Mode:      models.StockAdjustModeReplace,
		Quantity:  9,
	})
	if err != nil {
		t.Fatalf("replace 9: %v", err)
	}
	if adjusted.StockAvailable != 9 {
		t.Fatalf("after replace: available=%d, want 9", adjusted.StockAvailable)
	}

	_, err = models.AdjustArticleStock(ctx, &models.StockAdjustment{
		ArticleId: article.ID,
		Mode:      models.StockAdjustModeReplace,
		Quantity:  -1,
	})
	if !errors.Is(err, utils.ErrorValidation) {
		t.Fatalf("replace -1: expected ErrorValidation, got %v", err)
	}

	_, err = models.AdjustArticleStock(ctx, &models.StockAdjustment{
		ArticleId: article.ID,
		Mode:      "swap",
		Quantity:  1,
	})
	if !errors.Is(err, utils.ErrorValidation) {
		t.Fatalf("unknown mode: expected ErrorValidation, got %v", err)
	}
}

// Regression: customers carry surname and national id, are searchable
// by both, and are deactivated instead of deleted so sale history
// keeps its reference.
func TestCustomerSearchAndDeactivation(t *testing.T) {
	ctx := setupIntegration(t)

	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{
		Name:       "Maria",
		Surname:    "Fernandez",
		NationalId: "28456789",
	})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}

	limit := 10
	for _, term := range []string{"Fernandez", "28456789"} {
		connection, err := models.PaginateCustomer(ctx, &limit, nil, &term, nil)
		if err != nil {
			t.Fatalf("PaginateCustomer(%q): %v", term, err)
		}
		if len(connection.Edges) != 1 || connection.Edges[0].Node.ID != customer.ID {
			t.Fatalf("search %q: expected the customer, got %d edges", term, len(connection.Edges))
		}
	}

	deactivated, err := models.ToggleActiveCustomer(ctx, customer.ID, false)
	if err != nil {
		t.Fatalf("ToggleActiveCustomer: %v", err)
	}
	if deactivated.IsActive == nil || *deactivated.IsActive {
		t.Fatal("customer must be inactive after deactivation")
	}

	// the row survives and the active filter hides it
	if _, err := models.GetCustomer(ctx, customer.ID); err != nil {
		t.Fatalf("GetCustomer after deactivation: %v", err)
	}
	active := true
	connection, err := models.PaginateCustomer(ctx, &limit, nil, nil, &active)
	if err != nil {
		t.Fatalf("PaginateCustomer(active): %v", err)
	}
	for _, edge := range connection.Edges {
		if edge.Node.ID == customer.ID {
			t.Fatal("deactivated customer must not appear in the active listing")
		}
	}

	reactivated, err := models.ToggleActiveCustomer(ctx, customer.ID, true)
	if err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if reactivated.IsActive == nil || !*reactivated.IsActive {
		t.Fatal("customer must be active after reactivation")
	}
}

// Regression: duplicate codes are rejected per shop, and next-code
// always suggests above the maximum.
func TestArticleCodesAreUniquePerShop(t *testing.T) {
	ctx := setupIntegration(t)

	mustCreateArticle(t, ctx, 700, 1, 1000)

	_, err := models.CreateArticle(ctx, &models.NewArticle{
		Code:           700,
		Name:           "Duplicate",
		StockAvailable: 1,
	})
	if !errors.Is(err, utils.ErrorDuplicateCode) {
		t.Fatalf("expected ErrorDuplicateCode, got %v", err)
	}

	next, err := models.NextArticleCode(ctx)
	if err != nil {
		t.Fatalf("NextArticleCode: %v", err)
	}
	if next != 701 {
		t.Fatalf("expected next code 701, got %d", next)
	}
}
