package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"burnmail/backend/internal/middleware"
	"burnmail/backend/internal/service"
	"burnmail/backend/internal/transport/http/response"
)

// MailboxHandler 邮箱与邮件相关接口
type MailboxHandler struct {
	mailboxes *service.MailboxService
	log       *zap.Logger
}

// NewMailboxHandler 创建邮箱处理器
func NewMailboxHandler(mailboxes *service.MailboxService, log *zap.Logger) *MailboxHandler {
	return &MailboxHandler{mailboxes: mailboxes, log: log}
}

// Create 创建邮箱。
// 已登录时邮箱归属当前用户；开启匿名模式时未登录请求创建无主邮箱。
func (h *MailboxHandler) Create(c *gin.Context) {
	var owner *string
	if userID := middleware.CurrentUserID(c); userID != "" {
		owner = &userID
	}

	created, err := h.mailboxes.Create(c.Request.Context(), owner)
	if err != nil {
		response.Error(c, err, h.log)
		return
	}
	response.Created(c, created)
}

// List 列出当前用户的邮箱
func (h *MailboxHandler) List(c *gin.Context) {
	mailboxes, err := h.mailboxes.ListForUser(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err, h.log)
		return
	}
	response.Success(c, mailboxes)
}

// Delete 删除当前用户的邮箱及其邮件
func (h *MailboxHandler) Delete(c *gin.Context) {
	if err := h.mailboxes.Delete(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err, h.log)
		return
	}
	response.OK(c)
}

// ListEmails 列出邮箱中的邮件摘要，最新的在前
func (h *MailboxHandler) ListEmails(c *gin.Context) {
	emails, err := h.mailboxes.ListEmails(c.Request.Context(), middleware.Credential(c), c.Param("address"))
	if err != nil {
		response.Error(c, err, h.log)
		return
	}
	response.Success(c, emails)
}

// GetEmail 返回单封邮件详情
func (h *MailboxHandler) GetEmail(c *gin.Context) {
	email, err := h.mailboxes.GetEmail(c.Request.Context(), middleware.Credential(c), c.Param("address"), c.Param("id"))
	if err != nil {
		response.Error(c, err, h.log)
		return
	}
	response.Success(c, email)
}
