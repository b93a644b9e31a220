package httptransport

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"burnmail/backend/internal/domain"
	"burnmail/backend/internal/middleware"
	"burnmail/backend/internal/service"
	"burnmail/backend/internal/transport/http/response"
)

// AdminHandler 管理后台接口，所有路由都要求管理员会话
type AdminHandler struct {
	admin *service.AdminService
	log   *zap.Logger
}

// NewAdminHandler 创建管理处理器
func NewAdminHandler(admin *service.AdminService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, log: log}
}

type updateStatusRequest struct {
	Status domain.UserStatus `json:"status"`
}

// Stats 系统统计
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.admin.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err, h.log)
		return
	}
	response.Success(c, stats)
}

// ListUsers 分页列出用户
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, ok := h.pageRequest(c)
	if !ok {
		return
	}

	users, err := h.admin.ListUsers(c.Request.Context(), page)
	if err != nil {
		response.Error(c, err, h.log)
		return
	}
	response.Success(c, users)
}

// UpdateUserStatus 启用或禁用用户，禁用时立即作废其全部会话
func (h *AdminHandler) UpdateUserStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domain.BadRequest(response.MsgInvalidJSON, nil), h.log)
		return
	}

	err := h.admin.SetUserStatus(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), req.Status)
	if err != nil {
		response.Error(c, err, h.log)
		return
	}
	response.OK(c)
}

// DeleteUser 删除用户及其会话、邮箱和邮件
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	if err := h.admin.DeleteUser(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err, h.log)
		return
	}
	response.OK(c)
}

// ListMailboxes 分页列出全部邮箱及其所有者
func (h *AdminHandler) ListMailboxes(c *gin.Context) {
	page, ok := h.pageRequest(c)
	if !ok {
		return
	}

	mailboxes, err := h.admin.ListMailboxes(c.Request.Context(), page)
	if err != nil {
		response.Error(c, err, h.log)
		return
	}
	response.Success(c, mailboxes)
}

// DeleteMailbox 删除任意邮箱
func (h *AdminHandler) DeleteMailbox(c *gin.Context) {
	if err := h.admin.DeleteMailbox(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err, h.log)
		return
	}
	response.OK(c)
}

// pageRequest 解析 page 与 pageSize 查询参数，缺省时使用默认值，超出范围时修正
func (h *AdminHandler) pageRequest(c *gin.Context) (domain.PageRequest, bool) {
	var page domain.PageRequest
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"page", &page.Page},
		{"pageSize", &page.PageSize},
	} {
		raw := c.Query(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, domain.BadRequest(response.MsgInvalidPageArg, map[string][]string{
				p.name: {response.MsgInvalidPageArg},
			}), h.log)
			return page, false
		}
		*p.dst = n
	}
	return page.Normalize(), true
}
