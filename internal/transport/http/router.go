package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"burnmail/backend/internal/auth"
	"burnmail/backend/internal/config"
	"burnmail/backend/internal/domain"
	"burnmail/backend/internal/health"
	"burnmail/backend/internal/middleware"
	"burnmail/backend/internal/monitoring"
	"burnmail/backend/internal/service"
	"burnmail/backend/internal/transport/http/response"
)

// maxRequestBody 请求体大小上限
const maxRequestBody = 1 << 20

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config         *config.Config
	AuthService    *auth.Service
	MailboxService *service.MailboxService
	UserService    *service.UserService
	AdminService   *service.AdminService
	RateLimiter    *middleware.RateLimiter
	Metrics        *monitoring.Metrics
	Health         *health.Checker // 为 nil 时不注册 /health/live 与 /health/ready
	Logger         *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
//
// 业务路由同时挂载在根路径和 /api 下；健康检查与指标接口不受限流影响。
func NewRouter(deps RouterDependencies) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()
	if err := router.SetTrustedProxies(deps.Config.Server.TrustedProxies); err != nil {
		log.Warn("可信代理配置无效，忽略转发头", zap.Error(err))
		_ = router.SetTrustedProxies(nil)
	}

	monitor := middleware.NewMonitoringMiddleware(deps.Metrics, log)
	router.Use(monitor.PanicRecovery())
	router.Use(newCORS(deps.Config.CORS.AllowedOrigins))
	router.Use(middleware.RequestLogger(log))
	router.Use(monitor.HTTPMetrics())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestSizeLimit(maxRequestBody))

	router.NoRoute(func(c *gin.Context) {
		response.Error(c, domain.NotFound(response.MsgNotFound), log)
	})

	publicHandler := NewPublicHandler(deps.Config)
	authHandler := NewAuthHandler(deps.AuthService, deps.Metrics, log)
	userHandler := NewUserHandler(deps.UserService, deps.AuthService, log)
	mailboxHandler := NewMailboxHandler(deps.MailboxService, log)
	adminHandler := NewAdminHandler(deps.AdminService, log)
	access := middleware.NewAccess(deps.AuthService, log)

	// 健康检查与监控
	router.GET("/health", publicHandler.Health)
	if deps.Health != nil {
		router.GET("/health/live", gin.WrapH(deps.Health.LiveHandler()))
		router.GET("/health/ready", gin.WrapH(deps.Health.ReadyHandler()))
	}
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	// 创建邮箱：匿名模式下允许未登录
	createMailboxAuth := access.RequireAuth()
	if deps.Config.Mailbox.AllowAnonymous {
		createMailboxAuth = access.OptionalAuth()
	}

	register := func(r *gin.RouterGroup) {
		r.GET("/config", publicHandler.GetConfig)

		authRoutes := r.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/logout", authHandler.Logout)
		}

		userRoutes := r.Group("/user", access.RequireAuth())
		{
			userRoutes.GET("/profile", userHandler.Profile)
			userRoutes.PUT("/password", userHandler.ChangePassword)
			userRoutes.PUT("/username", userHandler.ChangeUsername)
		}

		r.POST("/mailbox", createMailboxAuth, mailboxHandler.Create)
		r.GET("/mailboxes", access.RequireAuth(), mailboxHandler.List)
		r.DELETE("/mailbox/:id", access.RequireAuth(), mailboxHandler.Delete)

		emailRoutes := r.Group("/mailbox/:address/emails", access.ResolveMailboxCredential())
		{
			emailRoutes.GET("", mailboxHandler.ListEmails)
			emailRoutes.GET("/:id", mailboxHandler.GetEmail)
		}

		adminRoutes := r.Group("/admin", access.RequireAdmin())
		{
			adminRoutes.GET("/stats", adminHandler.Stats)
			adminRoutes.GET("/users", adminHandler.ListUsers)
			adminRoutes.PUT("/users/:id/status", adminHandler.UpdateUserStatus)
			adminRoutes.DELETE("/users/:id", adminHandler.DeleteUser)
			adminRoutes.GET("/mailboxes", adminHandler.ListMailboxes)
			adminRoutes.DELETE("/mailboxes/:id", adminHandler.DeleteMailbox)
		}
	}

	limited := router.Group("")
	if deps.RateLimiter != nil {
		limited.Use(deps.RateLimiter.Middleware())
	}
	register(limited)
	register(limited.Group("/api"))

	return router
}

// newCORS 宽松的跨域配置，预检请求返回 204
func newCORS(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsConfig := gincors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{
			"Content-Length",
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
			"Retry-After",
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 允许所有来源时不能同时携带凭证
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	return gincors.New(corsConfig)
}
