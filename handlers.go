package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/atelierpos/boutique_backend/config"
	"github.com/atelierpos/boutique_backend/models"
	"github.com/atelierpos/boutique_backend/models/reports"
	"github.com/atelierpos/boutique_backend/utils"
	"github.com/atelierpos/boutique_backend/workflow"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("boutique-backend")

// statusForError maps the domain sentinels onto HTTP status codes so
// handlers stay thin.
func statusForError(err error) int {
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, utils.ErrorInsufficientStock),
		errors.Is(err, utils.ErrorInvalidTransition),
		errors.Is(err, utils.ErrorDuplicateCode):
		return http.StatusConflict
	case errors.Is(err, utils.ErrorValidation):
		return http.StatusBadRequest
	case errors.Is(err, utils.ErrorStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusForError(err), gin.H{"error": err.Error()})
}

// bindJSON decodes the body and turns validator failures into a
// per-field error map.
func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": utils.ProcessValidationErrors(err)})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return false
	}
	return true
}

func queryInt(c *gin.Context, name string, def int) int {
	if v := c.Query(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func queryIntPtr(c *gin.Context, name string) *int {
	if v := c.Query(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return &n
		}
	}
	return nil
}

func queryStrPtr(c *gin.Context, name string) *string {
	return utils.NilIfEmpty(c.Query(name))
}

func queryBoolPtr(c *gin.Context, name string) *bool {
	if v := c.Query(name); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return &b
		}
	}
	return nil
}

// queryDate reads a yyyy-mm-dd query param at the shop's day boundary.
func queryDate(c *gin.Context, name string) (*time.Time, error) {
	v := c.Query(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be yyyy-mm-dd", utils.ErrorValidation, name)
	}
	return &t, nil
}

// dateWindow resolves from/to query params, defaulting to the last 30
// days ending today. "to" is exclusive at the next midnight, computed
// in SHOP_TIMEZONE so day boundaries match the till.
func dateWindow(c *gin.Context) (time.Time, time.Time, error) {
	from, err := queryDate(c, "from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := queryDate(c, "to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	if to == nil {
		today, err := utils.ConvertToDate(time.Now(), os.Getenv("SHOP_TIMEZONE"))
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = &today
	}
	next := to.AddDate(0, 0, 1)
	to = &next
	if from == nil {
		t := to.AddDate(0, 0, -30)
		from = &t
	}
	return *from, *to, nil
}

// ---- articles ----

func createArticleHandler(c *gin.Context) {
	var input models.NewArticle
	if !bindJSON(c, &input) {
		return
	}
	article, err := models.CreateArticle(c.Request.Context(), &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, article)
}

func updateArticleHandler(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid article id"})
		return
	}
	var input models.NewArticle
	if !bindJSON(c, &input) {
		return
	}
	article, err := models.UpdateArticle(c.Request.Context(), id, &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, article)
}

func getArticleHandler(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid article id"})
		return
	}
	article, err := models.GetArticle(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, article)
}

func paginateArticleHandler(c *gin.Context) {
	limit := queryInt(c, "limit", config.SearchLimit)
	connection, err := models.PaginateArticle(c.Request.Context(), &limit,
		queryStrPtr(c, "after"), queryStrPtr(c, "search"),
		queryStrPtr(c, "category"), queryBoolPtr(c, "is_active"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, connection)
}

func toggleActiveArticleHandler(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid article id"})
		return
	}
	var input struct {
		IsActive *bool `json:"is_active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "is_active is required"})
		return
	}
	article, err := models.ToggleActiveArticle(c.Request.Context(), id, *input.IsActive)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, article)
}

func adjustArticleStockHandler(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid article id"})
		return
	}
	var input struct {
		Mode     models.StockAdjustMode `json:"mode" binding:"required"`
		Quantity int                    `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	article, err := models.AdjustArticleStock(c.Request.Context(), &models.StockAdjustment{
		ArticleId: id,
		Mode:      input.Mode,
		Quantity:  input.Quantity,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, article)
}

func articleCategoriesHandler(c *gin.Context) {
	categories, err := models.GetArticleCategories(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

func nextArticleCodeHandler(c *gin.Context) {
	code, err := models.NextArticleCode(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"next_code": code})
}

func importArticlesHandler(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	defer file.Close()

	// imports can be thousands of rows; trace them separately from the
	// request span
	ctx, span := tracer.Start(c.Request.Context(), "articles.import")
	defer span.End()

	result, err := models.CreateArticlesFromImport(ctx, file)
	if err != nil {
		span.RecordError(err)
		abortWithError(c, err)
		return
	}
	span.SetAttributes(attribute.Int("articles.created", result.ArticlesCreated))
	c.JSON(http.StatusCreated, result)
}

// entityHistoryHandler serves the audit trail for one entity; the
// entity type is fixed per route.
func entityHistoryHandler(entityType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		rows, err := models.GetEntityHistory(c.Request.Context(), entityType, id, queryInt(c, "limit", 50))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"history": rows})
	}
}

// ---- customers ----

func createCustomerHandler(c *gin.Context) {
	var input models.NewCustomer
	if !bindJSON(c, &input) {
		return
	}
	customer, err := models.CreateCustomer(c.Request.Context(), &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

func updateCustomerHandler(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid customer id"})
		return
	}
	var input models.NewCustomer
	if !bindJSON(c, &input) {
		return
	}
	customer, err := models.UpdateCustomer(c.Request.Context(), id, &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func toggleActiveCustomerHandler(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid customer id"})
		return
	}
	var input struct {
		IsActive *bool `json:"is_active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "is_active is required"})
		return
	}
	customer, err := models.ToggleActiveCustomer(c.Request.Context(), id, *input.IsActive)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func getCustomerHandler(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid customer id"})
		return
	}
	customer, err := models.GetCustomer(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func listCustomersHandler(c *gin.Context) {
	customers, err := models.ListCustomers(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customers": customers})
}

func paginateCustomerHandler(c *gin.Context) {
	limit := queryInt(c, "limit", config.SearchLimit)
	connection, err := models.PaginateCustomer(c.Request.Context(), &limit,
		queryStrPtr(c, "after"), queryStrPtr(c, "search"), queryBoolPtr(c, "is_active"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, connection)
}

func customerBalanceHandler(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid customer id"})
		return
	}
	balance, err := models.GetCustomerBalance(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

func customerSalesHandler(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid customer id"})
		return
	}
	sales, err := models.ListSalesForCustomer(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales": sales})
}

// ---- sales ----

func createSaleHandler(c *gin.Context) {
	var input models.NewSale
	if !bindJSON(c, &input) {
		return
	}
	sale, err := models.CreateSale(c.Request.Context(), &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sale)
}

func getSaleHandler(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sale id"})
		return
	}
	sale, err := models.GetSale(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

func paginateSaleHandler(c *gin.Context) {
	limit := queryInt(c, "limit", config.SearchLimit)

	filter := models.SaleFilter{CustomerId: queryIntPtr(c, "customer_id")}
	if v := c.Query("state"); v != "" {
		state, err := models.ParseSaleState(v)
		if err != nil {
			abortWithError(c, err)
			return
		}
		filter.State = &state
	}
	from, err := queryDate(c, "from")
	if err != nil {
		abortWithError(c, err)
		return
	}
	filter.From = from
	to, err := queryDate(c, "to")
	if err != nil {
		abortWithError(c, err)
		return
	}
	if to != nil {
		next := to.AddDate(0, 0, 1)
		filter.To = &next
	}

	connection, err := models.PaginateSale(c.Request.Context(), &limit, queryStrPtr(c, "after"), &filter)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, connection)
}

func transitionSaleHandler(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sale id"})
		return
	}
	var input struct {
		State         string  `json:"state" binding:"required"`
		PaymentMethod *string `json:"payment_method"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "state is required"})
		return
	}
	target, err := models.ParseSaleState(input.State)
	if err != nil {
		abortWithError(c, err)
		return
	}
	var method *models.PaymentMethod
	if input.PaymentMethod != nil {
		m, err := models.ParsePaymentMethod(*input.PaymentMethod)
		if err != nil {
			abortWithError(c, err)
			return
		}
		method = &m
	}

	sale, err := workflow.TransitionSale(c.Request.Context(), id, target, method)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

func deleteSaleHandler(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sale id"})
		return
	}
	if err := models.DeleteSale(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// saleEventsHandler streams sale lifecycle events over SSE until the
// client hangs up.
func saleEventsHandler(c *gin.Context) {
	shopId, ok := utils.GetShopIdFromContext(c.Request.Context())
	if !ok || shopId == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "shop id is required"})
		return
	}

	events, cancel := models.SubscribeSaleEvents(shopId)
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	keepAlive := time.NewTicker(25 * time.Second)
	defer keepAlive.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, open := <-events:
			if !open {
				return false
			}
			c.SSEvent(string(event.Type), event)
			return true
		case <-keepAlive.C:
			c.SSEvent("ping", gin.H{"time": time.Now().Format(time.RFC3339)})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// ---- cash ledger ----

func postCashMovementHandler(c *gin.Context) {
	var input models.NewCashMovement
	if !bindJSON(c, &input) {
		return
	}
	movement, err := models.PostCashMovement(c.Request.Context(), &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, movement)
}

func paginateCashMovementHandler(c *gin.Context) {
	limit := queryInt(c, "limit", config.SearchLimit)

	filter := models.CashMovementFilter{}
	if v := c.Query("type"); v != "" {
		movementType, err := models.ParseCashMovementType(v)
		if err != nil {
			abortWithError(c, err)
			return
		}
		filter.Type = &movementType
	}
	if v := c.Query("payment_method"); v != "" {
		method, err := models.ParsePaymentMethod(v)
		if err != nil {
			abortWithError(c, err)
			return
		}
		filter.PaymentMethod = &method
	}
	from, err := queryDate(c, "from")
	if err != nil {
		abortWithError(c, err)
		return
	}
	filter.From = from
	to, err := queryDate(c, "to")
	if err != nil {
		abortWithError(c, err)
		return
	}
	if to != nil {
		next := to.AddDate(0, 0, 1)
		filter.To = &next
	}

	connection, err := models.PaginateCashMovement(c.Request.Context(), &limit, queryStrPtr(c, "after"), &filter)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, connection)
}

func cashSummaryHandler(c *gin.Context) {
	from, to, err := dateWindow(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	summary, err := models.GetCashSummary(c.Request.Context(), &from, &to)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func cashByMethodHandler(c *gin.Context) {
	from, to, err := dateWindow(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	rows, err := models.GetCashByPaymentMethod(c.Request.Context(), &from, &to)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"methods": rows})
}

// ---- reports ----

func topArticlesReportHandler(c *gin.Context) {
	from, to, err := dateWindow(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	rows, err := reports.GetTopArticlesReport(c.Request.Context(), from, to,
		queryStrPtr(c, "category"), queryInt(c, "limit", 10))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"articles": rows})
}

func topCustomersReportHandler(c *gin.Context) {
	from, to, err := dateWindow(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	rows, err := reports.GetTopCustomersReport(c.Request.Context(), from, to, queryInt(c, "limit", 10))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customers": rows})
}

func revenueByCategoryReportHandler(c *gin.Context) {
	from, to, err := dateWindow(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	rows, err := reports.GetRevenueByCategoryReport(c.Request.Context(), from, to)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": rows})
}

func dailyRevenueReportHandler(c *gin.Context) {
	from, to, err := dateWindow(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	rows, err := reports.GetDailyRevenueReport(c.Request.Context(), from, to)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": rows})
}

func exportSalesHandler(c *gin.Context) {
	from, to, err := dateWindow(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	f, err := reports.ExportSalesExcel(c.Request.Context(), from, to)
	if err != nil {
		abortWithError(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=sales.xlsx")
	if err := f.Write(c.Writer); err != nil {
		config.LogError(config.GetLogger(), "server", "exportSalesHandler", "write workbook", nil, err)
	}
}

func exportTopArticlesHandler(c *gin.Context) {
	from, to, err := dateWindow(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	f, err := reports.ExportTopArticlesExcel(c.Request.Context(), from, to,
		queryStrPtr(c, "category"), queryInt(c, "limit", 50))
	if err != nil {
		abortWithError(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=top-articles.xlsx")
	if err := f.Write(c.Writer); err != nil {
		config.LogError(config.GetLogger(), "server", "exportTopArticlesHandler", "write workbook", nil, err)
	}
}

func exportCashMovementsHandler(c *gin.Context) {
	from, to, err := dateWindow(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	f, err := reports.ExportCashMovementsExcel(c.Request.Context(), from, to)
	if err != nil {
		abortWithError(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=cash-movements.xlsx")
	if err := f.Write(c.Writer); err != nil {
		config.LogError(config.GetLogger(), "server", "exportCashMovementsHandler", "write workbook", nil, err)
	}
}
