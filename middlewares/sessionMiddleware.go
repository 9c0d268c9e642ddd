package middlewares

import (
	"net/http"

	"github.com/atelierpos/boutique_backend/appctx"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionMiddleware lifts the shop and user headers into the request
// context. Requests without a shop are rejected up front so handlers
// never see an unscoped context.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		shopId := c.Request.Header.Get("X-Shop-Id")
		if shopId == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "X-Shop-Id header is required"})
			c.Abort()
			return
		}

		correlationId := c.Request.Header.Get("X-Correlation-Id")
		if correlationId == "" {
			correlationId = uuid.NewString()
		}

		ctx := appctx.Set(c.Request.Context(), appctx.ContextKeyShopId, shopId)
		ctx = appctx.Set(ctx, appctx.ContextKeyUserName, c.Request.Header.Get("X-User-Name"))
		ctx = appctx.Set(ctx, appctx.ContextKeyCorrelationId, correlationId)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Correlation-Id", correlationId)
		c.Next()
	}
}
