package httptransport

import (
	"time"

	"github.com/gin-gonic/gin"

	"burnmail/backend/internal/config"
	"burnmail/backend/internal/transport/http/response"
)

// PublicHandler 公开API处理器（无需认证）
type PublicHandler struct {
	cfg *config.Config
}

// NewPublicHandler 创建公开API处理器
func NewPublicHandler(cfg *config.Config) *PublicHandler {
	return &PublicHandler{cfg: cfg}
}

type publicConfig struct {
	Domain              string `json:"domain"`
	AllowRegistration   bool   `json:"allowRegistration"`
	AllowAnonymous      bool   `json:"allowAnonymous"`
	RetentionHours      int    `json:"retentionHours"`
	MaxMailboxesPerUser int    `json:"maxMailboxesPerUser"`
}

// GetConfig 返回前端需要的公开配置
func (h *PublicHandler) GetConfig(c *gin.Context) {
	response.Success(c, publicConfig{
		Domain:              h.cfg.Mailbox.Domain,
		AllowRegistration:   h.cfg.Auth.AllowRegistration,
		AllowAnonymous:      h.cfg.Mailbox.AllowAnonymous,
		RetentionHours:      h.cfg.Mailbox.RetentionHours,
		MaxMailboxesPerUser: h.cfg.Mailbox.MaxPerUser,
	})
}

// Health 简单存活探测
func (h *PublicHandler) Health(c *gin.Context) {
	response.Success(c, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
