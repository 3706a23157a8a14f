package httptransport

import (
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"whisperflow/backend/internal/auth"
	jwtpkg "whisperflow/backend/internal/auth/jwt"
	"whisperflow/backend/internal/config"
	"whisperflow/backend/internal/health"
	"whisperflow/backend/internal/middleware"
	"whisperflow/backend/internal/moderation"
	"whisperflow/backend/internal/monitoring"
	"whisperflow/backend/internal/service"
	"whisperflow/backend/internal/storage"
	"whisperflow/backend/internal/websocket"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config         *config.Config
	LinkService    *service.LinkService
	MessageService *service.MessageService
	AdminService   *service.AdminService
	AuthService    *auth.Service
	Controller     *moderation.Controller
	JWTManager     *jwtpkg.Manager
	WebSocketHub   *websocket.Hub
	Store          storage.Store
	Metrics        *monitoring.Metrics
	Health         *health.Checker
	Logger         *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	// 使用自定义中间件替代默认中间件
	monitoringMW := middleware.NewMonitoringMiddleware(deps.Metrics, deps.Logger)
	router.Use(monitoringMW.PanicRecovery())
	router.Use(monitoringMW.HTTPMetrics())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	// 创建处理器
	linkHandler := NewLinkHandler(deps.LinkService, deps.MessageService, deps.Metrics)
	authHandler := NewAuthHandler(deps.AuthService, deps.JWTManager)
	adminHandler := NewAdminHandler(deps.AdminService, deps.LinkService, deps.Store, deps.Controller, deps.Metrics)

	// 创建中间件
	jwtAuth := middleware.NewJWTAuth(deps.JWTManager, deps.Logger)
	adminAuth := middleware.NewAdminAuth(deps.AuthService)

	// 健康检查与监控
	if deps.Health != nil {
		router.GET("/health", gin.WrapF(deps.Health.LiveEndpoint))
		router.GET("/ready", gin.WrapF(deps.Health.ReadyEndpoint))
	}
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	// V1 API
	v1 := router.Group("/v1")
	{
		// ========== Link Routes（能力令牌路径，无需账号） ==========
		linkRoutes := v1.Group("/links")
		{
			linkRoutes.POST("", linkHandler.CreateLink)

			// 公开令牌：只能看昵称和投递
			linkRoutes.GET("/public/:publicId", linkHandler.GetPublicLink)
			linkRoutes.POST("/public/:publicId/messages",
				middleware.BodySizeLimit(middleware.SubmitBodyLimit),
				linkHandler.SubmitMessage)

			// 收件令牌：读取全部留言并管理
			linkRoutes.GET("/inbox/:inboxId", linkHandler.GetInbox)
			linkRoutes.DELETE("/inbox/:inboxId/messages/:messageId", linkHandler.DeleteMessage)
		}

		// ========== WebSocket Routes ==========
		if deps.WebSocketHub != nil {
			v1.GET("/ws/inbox/:inboxId", websocket.HandleWebSocket(deps.WebSocketHub))
		}

		// ========== Auth Routes ==========
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh", authHandler.Refresh)
			authRoutes.GET("/me", jwtAuth.RequireAuth(), authHandler.Me)
		}

		// ========== Admin Routes ==========
		adminRoutes := v1.Group("/admin")
		adminRoutes.Use(jwtAuth.RequireAuth(), adminAuth.RequireAdmin())
		{
			adminRoutes.GET("/statistics", adminHandler.GetStatistics)
			adminRoutes.GET("/links", adminHandler.ListLinks)

			// 一步式切换
			adminRoutes.POST("/links/:id/toggle", adminHandler.ToggleLink)

			// 两步式切换（乐观更新协议）
			adminRoutes.POST("/links/:id/toggle/request", adminHandler.RequestToggle)
			adminRoutes.POST("/toggles/:pendingId/confirm", adminHandler.ConfirmToggle)
			adminRoutes.DELETE("/toggles/:pendingId", adminHandler.CancelToggle)

			// 留言治理
			adminRoutes.GET("/messages", adminHandler.ListMessages)
			adminRoutes.GET("/messages/by-sender", adminHandler.MessagesBySender)
			adminRoutes.GET("/messages/by-nickname", adminHandler.MessagesByNickname)
			adminRoutes.DELETE("/messages/:id", adminHandler.DeleteMessage)
		}
	}

	return router
}
