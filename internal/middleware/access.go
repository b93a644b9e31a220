package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"burnmail/backend/internal/auth"
	"burnmail/backend/internal/domain"
	"burnmail/backend/internal/transport/http/response"
)

// 上下文键
const (
	ContextUser       = "user"
	ContextUserID     = "userID"
	ContextCredential = "credential"
)

// SessionValidator 校验会话令牌
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*auth.Identity, error)
}

// Access 会话认证与邮箱访问凭证中间件
type Access struct {
	sessions SessionValidator
	log      *zap.Logger
}

// NewAccess 创建访问控制中间件
func NewAccess(sessions SessionValidator, log *zap.Logger) *Access {
	if log == nil {
		log = zap.NewNop()
	}
	return &Access{sessions: sessions, log: log}
}

// ExtractToken 从 Authorization 头提取令牌，支持裸令牌与 "Bearer <token>" 两种格式
func ExtractToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return ""
	}
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return header
}

// RequireAuth 要求有效会话
func (a *Access) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := a.authenticate(c); !ok {
			return
		}
		c.Next()
	}
}

// RequireAdmin 要求有效会话且用户为管理员
func (a *Access) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := a.authenticate(c)
		if !ok {
			return
		}
		if !identity.User.IsAdmin() {
			a.log.Warn("非管理员访问管理接口",
				zap.String("user_id", identity.User.ID),
				zap.String("path", c.Request.URL.Path),
			)
			response.Abort(c, domain.ErrAdminRequired, a.log)
			return
		}
		c.Next()
	}
}

// OptionalAuth 携带有效会话时设置用户信息，否则按匿名请求放行
func (a *Access) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c)
		if token == "" {
			c.Next()
			return
		}

		identity, err := a.sessions.ValidateSession(c.Request.Context(), token)
		switch {
		case err == nil:
			setIdentity(c, identity)
		case !errors.Is(err, domain.ErrSessionInvalid):
			response.Abort(c, err, a.log)
			return
		}
		c.Next()
	}
}

// ResolveMailboxCredential 为 /mailbox/:address 下的路由解析访问凭证。
// Authorization 中的令牌先按会话令牌校验，失败时再作为该邮箱的访问令牌。
func (a *Access) ResolveMailboxCredential() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c)
		if token == "" {
			response.Abort(c, domain.ErrLoginRequired, a.log)
			return
		}

		identity, err := a.sessions.ValidateSession(c.Request.Context(), token)
		switch {
		case err == nil:
			setIdentity(c, identity)
			c.Set(ContextCredential, domain.AccessCredential(domain.OwnedSession{UserID: identity.User.ID}))
		case errors.Is(err, domain.ErrSessionInvalid):
			c.Set(ContextCredential, domain.AccessCredential(domain.AnonymousCapability{
				Address: c.Param("address"),
				Token:   token,
			}))
		default:
			response.Abort(c, err, a.log)
			return
		}
		c.Next()
	}
}

// authenticate 校验会话，失败时写入错误响应
func (a *Access) authenticate(c *gin.Context) (*auth.Identity, bool) {
	token := ExtractToken(c)
	if token == "" {
		response.Abort(c, domain.ErrLoginRequired, a.log)
		return nil, false
	}

	identity, err := a.sessions.ValidateSession(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, domain.ErrSessionInvalid) {
			a.log.Debug("会话无效", zap.String("ip", c.ClientIP()))
		}
		response.Abort(c, err, a.log)
		return nil, false
	}

	setIdentity(c, identity)
	return identity, true
}

func setIdentity(c *gin.Context, identity *auth.Identity) {
	c.Set(ContextUser, identity.User)
	c.Set(ContextUserID, identity.User.ID)
}

// CurrentUser 返回当前登录用户，未登录时返回 nil
func CurrentUser(c *gin.Context) *domain.User {
	if v, ok := c.Get(ContextUser); ok {
		if user, ok := v.(*domain.User); ok {
			return user
		}
	}
	return nil
}

// CurrentUserID 返回当前登录用户 ID
func CurrentUserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// Credential 返回 ResolveMailboxCredential 解析出的访问凭证
func Credential(c *gin.Context) domain.AccessCredential {
	if v, ok := c.Get(ContextCredential); ok {
		if cred, ok := v.(domain.AccessCredential); ok {
			return cred
		}
	}
	return nil
}
