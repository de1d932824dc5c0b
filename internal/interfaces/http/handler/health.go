package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/etribe/portal/internal/infrastructure/logger"
	"github.com/etribe/portal/internal/infrastructure/session"
)

// HealthHandler reports whether the session backend is reachable
func HealthHandler(store session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, _, err := store.Get(c.Request.Context(), session.KeyToken); err != nil {
			logger.GetGinLogger(c).Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"time":    time.Now().Format(time.RFC3339),
				"session": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"time":    time.Now().Format(time.RFC3339),
			"session": "ok",
		})
	}
}
