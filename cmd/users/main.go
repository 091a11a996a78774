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
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"product-user-services/internal/client/productapi"
	"product-user-services/internal/core/auth"
	"product-user-services/internal/core/config"
	"product-user-services/internal/core/database"
	"product-user-services/internal/core/logger"
	"product-user-services/internal/core/server"
	"product-user-services/internal/feature/user"
	"product-user-services/internal/mail"
	"product-user-services/internal/repo"
	"product-user-services/internal/retry"
	"product-user-services/internal/service"
	"product-user-services/internal/transport/http/router"
	"product-user-services/internal/worker"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load("", "./configs/users.local.yaml")
	log, cleanup := logger.NewFromConfig(cfg.Log)
	defer cleanup()
	defer logger.RedirectStdLog(log, zap.InfoLevel)()

	db := mustOpenDB(cfg, log)
	log.Info("database connected", zap.String("driver", cfg.DB.Driver))
	if cfg.DB.AutoMigrate {
		if err := repo.MigrateUsers(db); err != nil {
			log.Fatal("automigrate failed", zap.Error(err))
		}
		log.Info("automigrate done")
	}

	jwter := &auth.JWTer{
		Secret: []byte(cfg.JWT.Secret),
		Issuer: cfg.JWT.Issuer,
		TTL:    time.Duration(cfg.JWT.AccessTokenTTLMin) * time.Minute,
	}

	// 依赖
	users := repo.NewUserRepo(db)
	jobs := repo.NewCascadeJobRepo(db)
	products := productapi.New(cfg.Upstream.ProductsBaseURL, cfg.UpstreamTimeout(), jwter, log.Named("productapi"))
	dispatcher := service.NewCascadeDispatcher(products, jobs, service.DispatcherOptions{
		Attempts:  cfg.Cascade.RetryAttempts,
		BaseDelay: cfg.CascadeRetryDelay(),
		Timeout:   retry.Budget(cfg.Cascade.RetryAttempts, cfg.UpstreamTimeout(), cfg.CascadeRetryDelay()),
	}, log.Named("cascade"))
	svc := service.NewUserService(users, dispatcher, mail.NewSender(cfg.Mail, log.Named("mail")), jwter,
		service.UserServiceOptions{
			ActionTokenTTL: time.Duration(cfg.JWT.ActionTokenTTLMin) * time.Minute,
			PublicBaseURL:  cfg.Mail.PublicBaseURL,
		}, log)

	seedCtx, seedCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if _, err := svc.SeedAdmin(seedCtx, cfg.Seed.Admin.Email, cfg.Seed.Admin.Password, cfg.Seed.Admin.Name); err != nil {
		log.Fatal("seed admin failed", zap.Error(err))
	}
	seedCancel()

	r := server.NewRouter(server.Options{
		Name:           cfg.App.Name,
		Mode:           ginMode(cfg.App.Env),
		RequestTimeout: time.Duration(cfg.App.HTTP.RequestTimeoutSec) * time.Second,
		Checks:         map[string]server.Check{"db": pingDB(db)},
	}, log)
	router.NewRegistry(user.NewModule(svc, log)).Mount(r.Group("/api/v1"), jwter)

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
	log.Info("users api starting",
		zap.String("addr", addr),
		zap.String("health", baseURL+"/health"),
		zap.String("api_v1", baseURL+"/api/v1"),
		zap.String("products", cfg.Upstream.ProductsBaseURL),
	)

	cw := worker.NewCascadeWorker(jobs, dispatcher, worker.Options{
		Interval:    cfg.CascadePollInterval(),
		BatchSize:   cfg.Cascade.BatchSize,
		Parallelism: cfg.Cascade.Parallelism,
	}, log.Named("worker"))

	// HTTP 与补偿 worker 同生共死
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cw.Run(gctx)
		return nil
	})
	g.Go(func() error { return server.Run(gctx, srv, log, 10*time.Second) })
	if err := g.Wait(); err != nil {
		log.Error("users api stopped with error", zap.Error(err))
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
