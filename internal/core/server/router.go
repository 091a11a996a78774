package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	"product-user-services/internal/core/logger"
	mdw "product-user-services/internal/transport/http/middleware"
	resp "product-user-services/internal/transport/http/response"
)

// Check 健康检查项，返回 nil 表示正常
type Check func(ctx context.Context) error

type Options struct {
	Name           string
	Mode           string // gin mode: debug / release / test
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	RPSPerIP       float64
	BurstPerIP     int
	MaxInFlight    int64
	Checks         map[string]Check
}

func (o *Options) defaults() {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 10 * time.Second
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = 1 << 20
	}
	if o.RPSPerIP <= 0 {
		o.RPSPerIP = 50
	}
	if o.BurstPerIP <= 0 {
		o.BurstPerIP = 100
	}
	if o.MaxInFlight <= 0 {
		o.MaxInFlight = 300
	}
}

// NewRouter 公共中间件链 + /health + /metrics；业务路由由调用方挂到返回的 engine 上
func NewRouter(o Options, l *zap.Logger) *gin.Engine {
	o.defaults()
	if o.Mode != "" {
		gin.SetMode(o.Mode)
	}
	gin.DefaultWriter = logger.ToWriter(l, zapcore.DebugLevel)
	gin.DefaultErrorWriter = logger.ToWriter(l, zapcore.ErrorLevel)

	r := gin.New()
	r.Use(
		mdw.RequestID(),
		mdw.Recovery(l),
		cors.New(corsConfig()),
		mdw.RateLimitPerIP(rate.Limit(o.RPSPerIP), o.BurstPerIP),
		mdw.ConcurrencyLimit(o.MaxInFlight, 100*time.Millisecond),
		mdw.MaxBodyBytes(o.MaxBodyBytes),
		mdw.Timeout(o.RequestTimeout),
		mdw.Metrics(),
		mdw.AccessLog(l),
	)
	r.NoRoute(func(c *gin.Context) { resp.Abort(c, resp.CodeNotFound, "route not found") })

	r.GET("/health", health(o.Name, o.Checks))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

func corsConfig() cors.Config {
	c := cors.DefaultConfig()
	c.AllowAllOrigins = true
	c.AllowHeaders = append(c.AllowHeaders, "Authorization", mdw.KeyRequestID)
	c.ExposeHeaders = []string{mdw.KeyRequestID}
	return c
}

func health(name string, checks map[string]Check) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for k, chk := range checks {
			if err := chk(ctx); err != nil {
				results[k] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[k] = "ok"
		}
		if status != http.StatusOK {
			c.JSON(status, resp.ErrorWith(resp.CodeUnavailable, "unhealthy", gin.H{"service": name, "checks": results}))
			return
		}
		c.JSON(status, resp.OK(gin.H{"service": name, "checks": results}))
	}
}
