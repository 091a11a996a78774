package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"

	resp "product-user-services/internal/transport/http/response"
)

// MaxBodyBytes 超限时 ez 解码失败，这里兜底返回 400
func MaxBodyBytes(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			resp.Abort(c, resp.CodeBadRequest, "request body too large")
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
		if c.Err() != nil && !c.Writer.Written() {
			resp.Abort(c, resp.CodeBadRequest, "request body too large")
		}
	}
}

// ConcurrencyLimit 同时处理的请求数上限；排队超过 wait 返回 503
func ConcurrencyLimit(limit int64, wait time.Duration) gin.HandlerFunc {
	sem := semaphore.NewWeighted(limit)
	return func(c *gin.Context) {
		ok := sem.TryAcquire(1)
		if !ok && wait > 0 {
			ctx, cancel := context.WithTimeout(c.Request.Context(), wait)
			ok = sem.Acquire(ctx, 1) == nil
			cancel()
		}
		if !ok {
			resp.Abort(c, resp.CodeUnavailable, "server busy")
			return
		}
		defer sem.Release(1)
		c.Next()
	}
}

// Timeout 给请求上下文挂截止时间；下游（DB、商品服务调用）超时后仍未写响应则回 504
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		if c.Writer.Written() {
			return
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			resp.Abort(c, resp.CodeTimeout, "timeout")
		}
	}
}
