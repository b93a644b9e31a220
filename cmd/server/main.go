package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"burnmail/backend/internal/auth"
	"burnmail/backend/internal/config"
	"burnmail/backend/internal/health"
	"burnmail/backend/internal/logger"
	"burnmail/backend/internal/middleware"
	"burnmail/backend/internal/monitoring"
	"burnmail/backend/internal/service"
	"burnmail/backend/internal/smtp"
	"burnmail/backend/internal/storage"
	"burnmail/backend/internal/storage/memory"
	"burnmail/backend/internal/storage/redis"
	sqlstore "burnmail/backend/internal/storage/sql"
	httptransport "burnmail/backend/internal/transport/http"
)

// main 启动同时包含 HTTP API、SMTP 收信与定时清理的综合服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if cfg.Log.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting burnmail server",
		zap.String("domain", cfg.Mailbox.Domain),
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize storage", zap.Error(err))
	}
	defer store.Close()

	// 建表与管理员初始化都是幂等的，与 cmd/migrate 重复执行没有副作用
	if err := store.Migrate(ctx); err != nil {
		log.Fatal("failed to migrate schema", zap.Error(err))
	}

	metrics := monitoring.NewMetrics(nil)

	authService := auth.NewService(store, store, auth.Options{
		AllowRegistration: cfg.Auth.AllowRegistration,
		SessionTTL:        cfg.Auth.SessionTTL(),
	}, log.Named("auth"))

	if err := service.EnsureAdmin(ctx, store, authService, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword, log); err != nil {
		log.Fatal("failed to bootstrap admin", zap.Error(err))
	}

	mailboxService := service.NewMailboxService(store, store, service.MailboxOptions{
		Domain:         cfg.Mailbox.Domain,
		Retention:      cfg.Mailbox.Retention(),
		MaxPerUser:     cfg.Mailbox.MaxPerUser,
		AllowAnonymous: cfg.Mailbox.AllowAnonymous,
	}, metrics, log.Named("mailbox"))
	userService := service.NewUserService(store, store)
	adminService := service.NewAdminService(store, authService, metrics, log.Named("admin"))
	sweeper := service.NewSweeper(store, cfg.Mailbox.Retention(), metrics, log.Named("sweeper"))

	// 限流计数后端
	readiness := map[string]health.Pinger{}
	var counter storage.RateLimitRepository = memory.NewRateLimitCounter()
	if cfg.RateLimit.Backend == "redis" {
		redisClient, err := redis.New(&cfg.Redis, log.Named("redis"))
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()
		counter = redisClient
		readiness["redis"] = redisClient
	}
	rateLimiter := middleware.NewRateLimiter(counter, cfg.RateLimit.PerMinute, metrics, log.Named("ratelimit"))

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:         cfg,
		AuthService:    authService,
		MailboxService: mailboxService,
		UserService:    userService,
		AdminService:   adminService,
		RateLimiter:    rateLimiter,
		Metrics:        metrics,
		Health:         health.NewChecker(store, readiness, log.Named("health")),
		Logger:         log.Named("http"),
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	intake := smtp.NewIntake(store, store, metrics, log.Named("intake"))
	smtpBackend := smtp.NewBackend(
		cfg.SMTP.Domain,
		intake,
		smtp.NewConnectionLimiter(cfg.SMTP.MaxConnections, cfg.SMTP.SessionsPerSec),
		metrics,
		log.Named("smtp"),
	)
	smtpServer := smtp.NewServer(cfg.SMTP, smtpBackend)

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// SMTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting SMTP server",
			zap.String("address", cfg.SMTP.BindAddr),
			zap.String("domain", cfg.SMTP.Domain),
		)
		if err := smtpServer.ListenAndServe(); err != nil && groupCtx.Err() == nil {
			log.Error("SMTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 定时清理 goroutine
	group.Go(func() error {
		log.Info("starting retention sweeper", zap.Duration("interval", cfg.Sweeper.Interval))
		return sweeper.Start(groupCtx, cfg.Sweeper.Interval)
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}
		if err := smtpServer.Close(); err != nil {
			log.Warn("SMTP server close warning", zap.Error(err))
		}

		log.Info("servers stopped")
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// openStore 按配置选择存储：未配置数据库类型时使用内存存储
func openStore(cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	if cfg.Database.Type == "" {
		log.Warn("using memory storage, data is lost on restart")
		return memory.NewStore(), nil
	}

	store, err := sqlstore.Open(sqlstore.Options{
		Type:            cfg.Database.Type,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		Logger:          log.Named("gorm"),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Database.Type, err)
	}

	log.Info("database storage initialized", zap.String("type", cfg.Database.Type))
	return store, nil
}
