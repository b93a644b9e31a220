package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"burnmail/backend/internal/auth"
	"burnmail/backend/internal/domain"
	"burnmail/backend/internal/storage/memory"
	"burnmail/backend/internal/transport/http/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeSessions 以令牌映射用户的会话校验器
type fakeSessions map[string]*domain.User

func (f fakeSessions) ValidateSession(_ context.Context, token string) (*auth.Identity, error) {
	if token == "broken" {
		return nil, errors.New("database unavailable")
	}
	user, ok := f[token]
	if !ok {
		return nil, domain.ErrSessionInvalid
	}
	return &auth.Identity{User: user, Session: &domain.Session{Token: token, UserID: user.ID}}, nil
}

var (
	alice = &domain.User{ID: "u-alice", Username: "alice", Role: domain.RoleUser, Status: domain.StatusActive}
	root  = &domain.User{ID: "u-root", Username: "root", Role: domain.RoleAdmin, Status: domain.StatusActive}
)

func newAccess() *Access {
	return NewAccess(fakeSessions{"alice-token": alice, "root-token": root}, nil)
}

func do(engine *gin.Engine, method, path, authorization string) (*httptest.ResponseRecorder, response.Envelope) {
	req := httptest.NewRequest(method, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	var env response.Envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestExtractToken(t *testing.T) {
	cases := map[string]string{
		"":                 "",
		"abc":              "abc",
		"Bearer abc":       "abc",
		"bearer   abc  ":   "abc",
		"  rawtoken123   ": "rawtoken123",
	}
	for header, want := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Request.Header.Set("Authorization", header)
		assert.Equal(t, want, ExtractToken(c), header)
	}
}

func TestRequireAuth(t *testing.T) {
	engine := gin.New()
	engine.GET("/me", newAccess().RequireAuth(), func(c *gin.Context) {
		response.Success(c, gin.H{"id": CurrentUserID(c), "name": CurrentUser(c).Username})
	})

	t.Run("缺少令牌返回401", func(t *testing.T) {
		rec, env := do(engine, http.MethodGet, "/me", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, domain.CodeUnauthorized, env.Error.Code)
	})

	t.Run("无效令牌返回401", func(t *testing.T) {
		rec, env := do(engine, http.MethodGet, "/me", "Bearer nope")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, domain.ErrSessionInvalid.Message, env.Error.Message)
	})

	t.Run("存储故障返回500", func(t *testing.T) {
		rec, env := do(engine, http.MethodGet, "/me", "broken")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, domain.CodeInternal, env.Error.Code)
	})

	t.Run("有效令牌", func(t *testing.T) {
		rec, env := do(engine, http.MethodGet, "/me", "alice-token")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, env.Success)
	})
}

func TestRequireAdmin(t *testing.T) {
	engine := gin.New()
	engine.GET("/admin", newAccess().RequireAdmin(), func(c *gin.Context) { response.OK(c) })

	rec, env := do(engine, http.MethodGet, "/admin", "Bearer alice-token")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, domain.ErrAdminRequired.Message, env.Error.Message)

	rec, _ = do(engine, http.MethodGet, "/admin", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(engine, http.MethodGet, "/admin", "Bearer root-token")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestResolveMailboxCredential(t *testing.T) {
	var got domain.AccessCredential
	engine := gin.New()
	engine.GET("/mailbox/:address/emails", newAccess().ResolveMailboxCredential(), func(c *gin.Context) {
		got = Credential(c)
		response.OK(c)
	})

	t.Run("会话令牌解析为用户凭证", func(t *testing.T) {
		rec, _ := do(engine, http.MethodGet, "/mailbox/a@temp.mail/emails", "Bearer alice-token")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, domain.OwnedSession{UserID: "u-alice"}, got)
	})

	t.Run("其他令牌解析为邮箱访问令牌", func(t *testing.T) {
		rec, _ := do(engine, http.MethodGet, "/mailbox/a@temp.mail/emails", "mailboxtoken")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, domain.AnonymousCapability{Address: "a@temp.mail", Token: "mailboxtoken"}, got)
	})

	t.Run("缺少令牌", func(t *testing.T) {
		rec, _ := do(engine, http.MethodGet, "/mailbox/a@temp.mail/emails", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestOptionalAuth(t *testing.T) {
	engine := gin.New()
	engine.GET("/maybe", newAccess().OptionalAuth(), func(c *gin.Context) {
		response.Success(c, gin.H{"user": CurrentUserID(c)})
	})

	rec, _ := do(engine, http.MethodGet, "/maybe", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":{"user":""}}`, rec.Body.String())

	rec, _ = do(engine, http.MethodGet, "/maybe", "expired")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(engine, http.MethodGet, "/maybe", "alice-token")
	assert.JSONEq(t, `{"success":true,"data":{"user":"u-alice"}}`, rec.Body.String())
}

// failingCounter 始终失败的计数后端
type failingCounter struct{}

func (failingCounter) IncrementRateLimit(context.Context, string, time.Duration) (int64, time.Time, error) {
	return 0, time.Time{}, errors.New("redis down")
}

func TestRateLimiter(t *testing.T) {
	t.Run("超过限制返回429", func(t *testing.T) {
		engine := gin.New()
		engine.Use(NewRateLimiter(memory.NewRateLimitCounter(), 2, nil, nil).Middleware())
		engine.GET("/ping", func(c *gin.Context) { response.OK(c) })

		rec, _ := do(engine, http.MethodGet, "/ping", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))

		rec, _ = do(engine, http.MethodGet, "/ping", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

		rec, env := do(engine, http.MethodGet, "/ping", "")
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, domain.CodeRateLimited, env.Error.Code)
		assert.Equal(t, response.MsgRateLimited, env.Error.Message)
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	})

	t.Run("计数失败时放行", func(t *testing.T) {
		engine := gin.New()
		engine.Use(NewRateLimiter(failingCounter{}, 1, nil, nil).Middleware())
		engine.GET("/ping", func(c *gin.Context) { response.OK(c) })

		for i := 0; i < 3; i++ {
			rec, _ := do(engine, http.MethodGet, "/ping", "")
			assert.Equal(t, http.StatusOK, rec.Code)
		}
	})
}

func TestPanicRecovery(t *testing.T) {
	engine := gin.New()
	engine.Use(NewMonitoringMiddleware(nil, nil).PanicRecovery())
	engine.GET("/boom", func(c *gin.Context) { panic("boom") })

	rec, env := do(engine, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, domain.CodeInternal, env.Error.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}
