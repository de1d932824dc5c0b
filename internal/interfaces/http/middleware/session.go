package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/etribe/portal/internal/infrastructure/logger"
	"github.com/etribe/portal/internal/infrastructure/session"
)

// SessionUser puts the signed-in uid on the request context so request
// logs carry it. It never rejects a request.
func SessionUser(store session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if uid := session.GetString(ctx, store, session.KeyUID); uid != "" {
			c.Request = c.Request.WithContext(logger.WithUserID(ctx, uid))
		}
		c.Next()
	}
}
