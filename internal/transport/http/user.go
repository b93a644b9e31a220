package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"burnmail/backend/internal/auth"
	"burnmail/backend/internal/domain"
	"burnmail/backend/internal/middleware"
	"burnmail/backend/internal/service"
	"burnmail/backend/internal/transport/http/response"
)

// UserHandler 当前用户的资料与账户设置
type UserHandler struct {
	users       *service.UserService
	authService *auth.Service
	log         *zap.Logger
}

// NewUserHandler 创建用户处理器
func NewUserHandler(users *service.UserService, authService *auth.Service, log *zap.Logger) *UserHandler {
	return &UserHandler{users: users, authService: authService, log: log}
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type changeUsernameRequest struct {
	NewUsername string `json:"newUsername"`
}

// Profile 返回当前用户资料
func (h *UserHandler) Profile(c *gin.Context) {
	profile, err := h.users.Profile(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err, h.log)
		return
	}
	response.Success(c, profile)
}

// ChangePassword 修改密码，需要提供当前密码
func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domain.BadRequest(response.MsgInvalidJSON, nil), h.log)
		return
	}

	err := h.authService.ChangePassword(c.Request.Context(), middleware.CurrentUserID(c), req.CurrentPassword, req.NewPassword)
	if err != nil {
		response.Error(c, err, h.log)
		return
	}
	response.OK(c)
}

// ChangeUsername 修改用户名
func (h *UserHandler) ChangeUsername(c *gin.Context) {
	var req changeUsernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domain.BadRequest(response.MsgInvalidJSON, nil), h.log)
		return
	}

	if err := h.authService.ChangeUsername(c.Request.Context(), middleware.CurrentUserID(c), req.NewUsername); err != nil {
		response.Error(c, err, h.log)
		return
	}
	response.OK(c)
}
