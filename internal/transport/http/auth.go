package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"burnmail/backend/internal/auth"
	"burnmail/backend/internal/domain"
	"burnmail/backend/internal/middleware"
	"burnmail/backend/internal/monitoring"
	"burnmail/backend/internal/transport/http/response"
)

// AuthHandler 处理注册、登录与登出
type AuthHandler struct {
	authService *auth.Service
	metrics     *monitoring.Metrics
	log         *zap.Logger
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(authService *auth.Service, metrics *monitoring.Metrics, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		metrics:     metrics,
		log:         log,
	}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register 处理用户注册请求
//
// 成功返回 201 和用户公开信息；注册关闭时返回 403，用户名已存在返回 409。
func (h *AuthHandler) Register(c *gin.Context) {
	if !h.authService.AllowRegistration() {
		response.Error(c, domain.ErrRegistrationClosed, h.log)
		return
	}

	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domain.BadRequest(response.MsgInvalidJSON, nil), h.log)
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.Error(c, err, h.log)
		return
	}

	h.metrics.RecordUserRegistered()
	h.log.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("username", user.Username),
	)
	response.Created(c, user)
}

// Login 处理用户登录请求
func (h *AuthHandler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domain.BadRequest(response.MsgInvalidJSON, nil), h.log)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.metrics.RecordLogin(loginResult(err))
		response.Error(c, err, h.log)
		return
	}

	h.metrics.RecordLogin("success")
	response.Success(c, result)
}

// Logout 作废当前会话，重复登出不会报错
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context(), middleware.ExtractToken(c)); err != nil {
		response.Error(c, err, h.log)
		return
	}
	response.OK(c)
}

func loginResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrAccountDisabled):
		return "disabled"
	case domain.CodeOf(err) == domain.CodeInternal:
		return "error"
	default:
		return "invalid"
	}
}
