package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"whisperflow/backend/internal/auth"
	jwtpkg "whisperflow/backend/internal/auth/jwt"
	"whisperflow/backend/internal/config"
	"whisperflow/backend/internal/domain"
	"whisperflow/backend/internal/health"
	"whisperflow/backend/internal/logger"
	"whisperflow/backend/internal/moderation"
	"whisperflow/backend/internal/monitoring"
	"whisperflow/backend/internal/service"
	"whisperflow/backend/internal/smtp"
	"whisperflow/backend/internal/storage"
	"whisperflow/backend/internal/storage/memory"
	"whisperflow/backend/internal/storage/redis"
	sqlstore "whisperflow/backend/internal/storage/sql"
	httptransport "whisperflow/backend/internal/transport/http"
	"whisperflow/backend/internal/websocket"
)

// main 启动同时包含 HTTP API 与可选 SMTP 投递入口的综合服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     "",
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting whisperflow server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化存储层
	var store storage.Store

	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		store, err = sqlstore.NewStore(
			cfg.Database.Type,
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
			cfg.Database.ConnMaxLifetime,
		)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize database storage: %v", err))
		}
		log.Info("using database storage", zap.String("type", cfg.Database.Type))
	} else {
		// 内存存储（开发环境）
		store = memory.NewStore()
		log.Info("using memory storage (development mode)")
	}

	// 初始化 Redis 缓存（可选）
	var cache *redis.Cache
	if cfg.Redis.Enabled {
		cache, err = redis.NewCache(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			panic(fmt.Sprintf("failed to connect to redis: %v", err))
		}
		log.Info("redis cache enabled", zap.String("address", cfg.Redis.Address))
	}

	// 初始化监控系统
	metrics := monitoring.NewMetrics()

	// 初始化健康检查
	healthChecker := health.NewChecker(store, cache, log)

	// 初始化服务层
	linkService := service.NewLinkService(store, log)
	linkService.SetMaxNicknameLength(cfg.Link.MaxNicknameLength)
	messageService := service.NewMessageService(linkService, store, log)
	messageService.SetMaxContentLength(cfg.Link.MaxContentLength)
	adminService := service.NewAdminService(store, log)
	if cache != nil {
		linkService.SetCache(cache, cfg.Link.CacheTTL)
		messageService.SetCache(cache)
		adminService.SetCache(cache, cfg.Link.CacheTTL)
	}

	// 初始化认证服务
	authService := auth.NewService(store)
	jwtManager := jwtpkg.NewManager(
		cfg.JWT.Secret,
		cfg.JWT.Issuer,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)

	log.Info("JWT configuration",
		zap.String("issuer", cfg.JWT.Issuer),
		zap.Duration("access_expiry", cfg.JWT.AccessExpiry),
		zap.Duration("refresh_expiry", cfg.JWT.RefreshExpiry),
	)

	// 创建 WebSocket Hub（收件令牌即凭证）
	wsHub := websocket.NewHub(linkService, cfg.CORS.AllowedOrigins, log)
	messageService.SetNotifier(wsHub)

	// 初始化切换控制器并载入已有信箱状态
	controller := moderation.NewController(linkService, log)
	controller.SetNotifier(&toggleNotifier{hub: wsHub, metrics: metrics, log: log})
	controller.Load(linkService.List())

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:         cfg,
		LinkService:    linkService,
		MessageService: messageService,
		AdminService:   adminService,
		AuthService:    authService,
		Controller:     controller,
		JWTManager:     jwtManager,
		WebSocketHub:   wsHub,
		Store:          store,
		Metrics:        metrics,
		Health:         healthChecker,
		Logger:         log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 创建 SMTP 服务器（可选的邮件投递入口）
	var smtpServer *gosmtp.Server
	if cfg.SMTP.Enabled {
		smtpBackend := smtp.NewBackend(linkService, messageService, cfg.SMTP.Domain, metrics, log)
		smtpServer = gosmtp.NewServer(smtpBackend)
		smtpServer.Addr = cfg.SMTP.BindAddr
		smtpServer.Domain = cfg.SMTP.Domain
		smtpServer.ReadTimeout = 10 * time.Second
		smtpServer.WriteTimeout = 10 * time.Second
		smtpServer.MaxMessageBytes = 1 * 1024 * 1024
		smtpServer.MaxRecipients = 10
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// SMTP 服务器 goroutine
	if smtpServer != nil {
		group.Go(func() error {
			log.Info("starting SMTP server",
				zap.String("address", cfg.SMTP.BindAddr),
				zap.String("domain", cfg.SMTP.Domain),
			)
			if err := smtpServer.ListenAndServe(); err != nil {
				log.Error("SMTP server error", zap.Error(err))
				return err
			}
			return nil
		})
	}

	// WebSocket Hub goroutine
	group.Go(func() error {
		log.Info("starting WebSocket hub")
		wsHub.Run(groupCtx)
		return nil
	})

	// 定时刷新总量指标 goroutine
	group.Go(func() error {
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				stats, err := store.GetSystemStatistics()
				if err != nil {
					log.Warn("failed to refresh gauge metrics", zap.Error(err))
					continue
				}
				metrics.UpdateLinksActive(stats.ActiveLinks)
				metrics.UpdateMessagesTotal(stats.TotalMessages)
				metrics.UpdateWebSocketConnections(wsHub.ConnectionCount())
			}
		}
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

		if smtpServer != nil {
			if err := smtpServer.Close(); err != nil {
				log.Warn("SMTP server close warning", zap.Error(err))
			}
		}

		if cache != nil {
			if err := cache.Close(); err != nil {
				log.Warn("redis close warning", zap.Error(err))
			}
		}
		if err := store.Close(); err != nil {
			log.Warn("storage close warning", zap.Error(err))
		}

		log.Info("servers stopped")
		return nil
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// toggleNotifier 把封禁切换结果转发到 WebSocket 推送和监控指标。
type toggleNotifier struct {
	hub     *websocket.Hub
	metrics *monitoring.Metrics
	log     *zap.Logger
}

func (n *toggleNotifier) ToggleSucceeded(link *domain.Link) {
	n.metrics.RecordLinkToggle(!link.IsActive)
	n.hub.NotifyLinkUpdate(link)
}

func (n *toggleNotifier) ToggleFailed(linkID string, intended bool, err error) {
	n.log.Warn("信箱状态切换失败",
		zap.String("link_id", linkID),
		zap.Bool("intended_active", intended),
		zap.Error(err))
}
