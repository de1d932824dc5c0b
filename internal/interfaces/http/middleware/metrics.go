package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// GatewayObserver records served gateway requests
type GatewayObserver interface {
	ObserveGateway(method, route string, status int, d time.Duration)
}

// Metrics records request count and latency per route template. Unmatched
// paths are reported as "unmatched" to keep label cardinality bounded.
func Metrics(observer GatewayObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if observer == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		observer.ObserveGateway(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
