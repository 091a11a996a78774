package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"product-user-services/internal/core/metrics"
)

func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics.HTTPInFlight.Inc()
		start := time.Now()
		defer func() {
			metrics.HTTPInFlight.Dec()
			// 未匹配的路径合并成一个 label
			route := c.FullPath()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request.Method
			metrics.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(c.Writer.Status())).Inc()
			metrics.HTTPLatency.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
		}()
		c.Next()
	}
}
