package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"product-user-services/internal/core/auth"
	"product-user-services/internal/core/cache"
	"product-user-services/internal/core/config"
	"product-user-services/internal/core/database"
	"product-user-services/internal/core/logger"
	"product-user-services/internal/core/server"
	"product-user-services/internal/domain"
	"product-user-services/internal/feature/product"
	"product-user-services/internal/repo"
	"product-user-services/internal/service"
	"product-user-services/internal/transport/http/router"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load("", "./configs/products.local.yaml")
	log, cleanup := logger.NewFromConfig(cfg.Log)
	defer cleanup()
	defer logger.RedirectStdLog(log, zap.InfoLevel)()

	// 数据库（失败会直接 Fatal）
	db := mustOpenDB(cfg, log)
	log.Info("database connected", zap.String("driver", cfg.DB.Driver))
	if cfg.DB.AutoMigrate {
		if err := repo.MigrateProducts(db); err != nil {
			log.Fatal("automigrate failed", zap.Error(err))
		}
		log.Info("automigrate done")
	}

	jwter := &auth.JWTer{
		Secret: []byte(cfg.JWT.Secret),
		Issuer: cfg.JWT.Issuer,
		TTL:    time.Duration(cfg.JWT.AccessTokenTTLMin) * time.Minute,
	}

	checks := map[string]server.Check{"db": pingDB(db)}

	// 配了 redis 才启用商品读缓存
	var store domain.ProductStore = repo.NewProductRepo(db)
	if cfg.Redis.Addr != "" {
		rc := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		rc.Prefix = cfg.App.Name + ":"
		defer rc.Close()
		store = repo.NewCachedProductStore(store, rc, time.Duration(cfg.Redis.TTLSeconds)*time.Second, log)
		checks["redis"] = rc.Ping
		log.Info("product cache enabled", zap.String("redis", cfg.Redis.Addr))
	}
	svc := service.NewProductService(store, log)

	r := server.NewRouter(server.Options{
		Name:           cfg.App.Name,
		Mode:           ginMode(cfg.App.Env),
		RequestTimeout: time.Duration(cfg.App.HTTP.RequestTimeoutSec) * time.Second,
		Checks:         checks,
	}, log)
	router.NewRegistry(product.NewModule(svc, log)).Mount(r.Group("/api/v1"), jwter)

	addr := server.Addr(cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	srv := server.BuildServer(
		addr, r,
		time.Duration(cfg.App.HTTP.ReadTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.WriteTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.IdleTimeoutSec)*time.Second,
	)

	host4human := cfg.App.HTTP.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(cfg.App.HTTP.Port)
	log.Info("products api starting",
		zap.String("addr", addr),
		zap.String("health", baseURL+"/health"),
		zap.String("api_v1", baseURL+"/api/v1"),
	)

	// 优雅关闭
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := server.Run(ctx, srv, log, 10*time.Second); err != nil {
		log.Error("products api stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func ginMode(env string) string {
	if env == "prod" || env == "production" {
		return "release"
	}
	return "debug"
}

func pingDB(db *gorm.DB) server.Check {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

func mustOpenDB(cfg *config.Config, l *zap.Logger) *gorm.DB {
	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
	}, l)
	if err != nil {
		l.Fatal("db open", zap.Error(err))
	}
	return db
}
